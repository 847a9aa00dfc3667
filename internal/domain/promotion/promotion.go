// Package promotion implements the tenant promotion and discount engine:
// catalog eligibility, per-kind discount math, and priority-based combination
// of concurrently valid promotions against an order's line items.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported promotion types.
type Kind string

const (
	KindHappyHour     Kind = "HAPPY_HOUR"
	KindBOGO          Kind = "BOGO"
	KindPercentageOff Kind = "PERCENTAGE_OFF"
	KindFixedOff      Kind = "FIXED_OFF"
	KindCartDiscount  Kind = "CART_DISCOUNT"
	KindItemDiscount  Kind = "ITEM_DISCOUNT"
	KindComboDeal     Kind = "COMBO_DEAL"
	KindFixedPrice    Kind = "FIXED_PRICE"
	KindTimeBased     Kind = "TIME_BASED"
	KindCoupon        Kind = "COUPON"
)

// ValueType disambiguates Value for kinds that support both interpretations
// (CART_DISCOUNT, COMBO_DEAL, ITEM_DISCOUNT, COUPON).
type ValueType string

const (
	ValuePercentage ValueType = "percentage"
	ValueFixed      ValueType = "fixed"
)

// TargetType selects how a promotion resolves the line items it may affect.
type TargetType string

const (
	TargetAll      TargetType = "all"
	TargetCategory TargetType = "category"
	TargetProducts TargetType = "products"
)

var (
	// ErrInvalidPromoCode is returned when an explicitly requested code does
	// not resolve to an active promotion for the tenant.
	ErrInvalidPromoCode = errors.New("invalid promo code")
	// ErrConditionsNotMet is returned when an explicitly requested code
	// resolves to a promotion that fails an eligibility check.
	ErrConditionsNotMet = errors.New("promotion conditions not met")
	// ErrUsageLimitReached is returned by the usage recorder when the atomic
	// counter guard rejects a redemption.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
)

// ValidationError indicates a malformed order context.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid order context: " + e.Field + ": " + e.Reason
}

// TargetSpec describes which line items a promotion targets.
type TargetSpec struct {
	Type       TargetType
	CategoryID string
	ItemIDs    []string
}

// Matches reports whether the given line item falls under this spec.
func (t TargetSpec) Matches(item LineItem) bool {
	switch t.Type {
	case TargetAll:
		return true
	case TargetCategory:
		return item.CategoryID == t.CategoryID
	case TargetProducts:
		for _, id := range t.ItemIDs {
			if item.MenuItemID == id {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (t TargetSpec) validate() error {
	switch t.Type {
	case TargetAll:
		return nil
	case TargetCategory:
		if t.CategoryID == "" {
			return errors.New("category target requires a category id")
		}
		return nil
	case TargetProducts:
		if len(t.ItemIDs) == 0 {
			return errors.New("products target requires at least one item id")
		}
		return nil
	default:
		return errors.Errorf("unknown target type %q", t.Type)
	}
}

// TimeWindow restricts a promotion to a daily time-of-day range. Start and
// End use "HH:MM" notation; Start > End denotes an overnight window that
// wraps past midnight (e.g. 22:00-02:00).
type TimeWindow struct {
	Start string
	End   string
}

// Contains reports whether the time-of-day of t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	start, err := parseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()

	if start > end {
		// Overnight window.
		return now >= start || now <= end
	}
	return now >= start && now <= end
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.Wrapf(err, "parse clock %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// RequiredItem names a constituent a COMBO_DEAL promotion demands to be in
// the order at or above the given quantity.
type RequiredItem struct {
	MenuItemID string
	Quantity   int
}

// Promotion is a tenant-scoped discount rule. Kind-specific fields are only
// meaningful for their variant: Buy*/Get* for BOGO, RequiredItems for
// COMBO_DEAL, ValueType for cart-style and per-item kinds.
type Promotion struct {
	ID       string
	TenantID string
	Name     string
	Kind     Kind

	// Value is a percentage for percentage-based kinds, a monetary amount
	// for fixed kinds, and the target price for FIXED_PRICE.
	Value     decimal.Decimal
	ValueType ValueType

	MinCartValue decimal.Decimal
	MinItems     int
	MaxItems     int
	// MaxDiscount caps the promotion's total discount. Zero means uncapped.
	MaxDiscount decimal.Decimal

	Target TargetSpec

	BuyQuantity int
	GetQuantity int
	BuyTarget   TargetSpec
	GetTarget   TargetSpec

	Window     *TimeWindow
	DaysOfWeek []int // 1=Monday .. 7=Sunday

	Priority    int
	ActiveFrom  *time.Time
	ActiveUntil *time.Time

	UsageLimit       int // global redemption cap, 0 = unlimited
	Uses             int // global counter loaded with the promotion
	PerCustomerLimit int

	RequiresCode bool
	Code         string
	Combinable   bool

	RequiredItems []RequiredItem

	CreatedAt time.Time
}

// ActiveAt reports whether t falls within the promotion's active date range.
// An absent bound is open on that side.
func (p *Promotion) ActiveAt(t time.Time) bool {
	if p.ActiveFrom != nil && t.Before(*p.ActiveFrom) {
		return false
	}
	if p.ActiveUntil != nil && t.After(*p.ActiveUntil) {
		return false
	}
	return true
}

// Validate checks structural invariants. It is invoked at the catalog-load
// boundary so calculation code can assume a well-formed promotion.
func (p *Promotion) Validate() error {
	if p.ID == "" {
		return errors.New("promotion id required")
	}
	if err := p.Target.validate(); err != nil {
		return errors.Wrapf(err, "promotion %s target", p.ID)
	}
	switch p.Kind {
	case KindBOGO:
		if p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
			return errors.Errorf("promotion %s: bogo requires positive buy and get quantities", p.ID)
		}
		if err := p.BuyTarget.validate(); err != nil {
			return errors.Wrapf(err, "promotion %s buy target", p.ID)
		}
		if err := p.GetTarget.validate(); err != nil {
			return errors.Wrapf(err, "promotion %s get target", p.ID)
		}
	case KindPercentageOff, KindHappyHour, KindTimeBased:
		if p.Value.IsNegative() || p.Value.GreaterThan(hundred) {
			return errors.Errorf("promotion %s: percentage out of range", p.ID)
		}
	case KindFixedOff, KindFixedPrice:
		if p.Value.IsNegative() {
			return errors.Errorf("promotion %s: negative value", p.ID)
		}
	case KindCartDiscount, KindComboDeal, KindItemDiscount, KindCoupon:
		if p.ValueType != ValuePercentage && p.ValueType != ValueFixed {
			return errors.Errorf("promotion %s: unknown value type %q", p.ID, p.ValueType)
		}
		if p.ValueType == ValuePercentage && p.Value.GreaterThan(hundred) {
			return errors.Errorf("promotion %s: percentage out of range", p.ID)
		}
	default:
		return errors.Errorf("promotion %s: unknown kind %q", p.ID, p.Kind)
	}
	if p.Window != nil {
		if _, err := parseClock(p.Window.Start); err != nil {
			return errors.Wrapf(err, "promotion %s window start", p.ID)
		}
		if _, err := parseClock(p.Window.End); err != nil {
			return errors.Wrapf(err, "promotion %s window end", p.ID)
		}
	}
	for _, d := range p.DaysOfWeek {
		if d < 1 || d > 7 {
			return errors.Errorf("promotion %s: day of week %d out of range", p.ID, d)
		}
	}
	if p.RequiresCode && p.Code == "" {
		return errors.Errorf("promotion %s: requires code but none configured", p.ID)
	}
	return nil
}

// LineItem is a single position of the order being priced. The engine works
// on its own copy; unit prices within that copy drop as promotions apply, so
// later promotions in the same pass see already-discounted prices.
type LineItem struct {
	MenuItemID string
	CategoryID string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// LineTotal returns UnitPrice * Quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderContext carries everything the engine needs to evaluate one order.
type OrderContext struct {
	TenantID   string
	Items      []LineItem
	CustomerID string
	Codes      []string
	// At is the evaluation instant. The engine substitutes its clock when zero.
	At time.Time
}

// Subtotal returns the sum of line totals.
func (c *OrderContext) Subtotal() decimal.Decimal {
	return subtotalOf(c.Items)
}

// Validate reports a ValidationError for a malformed context.
func (c *OrderContext) Validate() error {
	if c.TenantID == "" {
		return &ValidationError{Field: "tenantId", Reason: "required"}
	}
	if len(c.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one line item required"}
	}
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return &ValidationError{Field: "items", Reason: "quantity must be greater than 0 for item " + item.MenuItemID}
		}
		if item.UnitPrice.IsNegative() {
			return &ValidationError{Field: "items", Reason: "negative unit price for item " + item.MenuItemID}
		}
	}
	return nil
}

func (c *OrderContext) hasCode(code string) bool {
	for _, supplied := range c.Codes {
		if equalCode(supplied, code) {
			return true
		}
	}
	return false
}

// AppliedItem records the before/after unit price of one line item affected
// by a single promotion application.
type AppliedItem struct {
	MenuItemID      string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	Quantity        int
}

// Application is the contribution of one promotion to the final result.
type Application struct {
	PromotionID string
	Name        string
	Amount      decimal.Decimal
	Items       []AppliedItem
	Code        string
}

// Result aggregates all applied promotions for one calculation pass.
type Result struct {
	Applied       []Application
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
	Warnings      []string
}

// Usage is the audit record persisted after an order commits to a discount.
type Usage struct {
	PromotionID    string
	TenantID       string
	OrderID        string
	CustomerID     string
	Code           string
	DiscountAmount decimal.Decimal
	OriginalAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Items          []AppliedItem
}

// Repository is the persistence port of the engine. Implementations must keep
// RecordUsage's limit check-and-increment atomic; callers treat
// ErrUsageLimitReached from it as a rejected redemption.
type Repository interface {
	// ListActive returns structurally active promotions whose date range
	// covers asOf, ordered by priority descending then creation time.
	ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]Promotion, error)
	// FindByCode resolves a single active promotion by its code.
	// Returns ErrInvalidPromoCode when no match exists.
	FindByCode(ctx context.Context, tenantID, code string) (*Promotion, error)
	// CustomerUsageCount returns how many times the customer has redeemed
	// the promotion.
	CustomerUsageCount(ctx context.Context, promotionID, customerID, tenantID string) (int, error)
	// RecordUsage persists an audit row and increments global and
	// per-customer counters under their configured limits.
	RecordUsage(ctx context.Context, u Usage) error
}

func subtotalOf(items []LineItem) decimal.Decimal {
	sum := zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}
