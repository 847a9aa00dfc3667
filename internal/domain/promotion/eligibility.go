package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// EligibilityFilter decides which catalog promotions additionally satisfy the
// order's cart, time, usage, and code constraints. Automatic failures are
// silent exclusions; only persistence errors surface.
type EligibilityFilter struct {
	repo Repository
}

// NewEligibilityFilter creates a filter that resolves per-customer usage
// counts through the given repository.
func NewEligibilityFilter(repo Repository) *EligibilityFilter {
	return &EligibilityFilter{repo: repo}
}

// Filter returns the subset of promotions eligible for the order context.
func (f *EligibilityFilter) Filter(ctx context.Context, promos []Promotion, octx *OrderContext) ([]Promotion, error) {
	eligible := make([]Promotion, 0, len(promos))
	for i := range promos {
		ok, err := f.Eligible(ctx, &promos[i], octx)
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, promos[i])
		}
	}
	return eligible, nil
}

// Eligible runs the full check chain for one promotion. The checks run in a
// fixed order so the cheap, I/O-free ones reject first; only the per-customer
// usage lookup touches the repository.
func (f *EligibilityFilter) Eligible(ctx context.Context, p *Promotion, octx *OrderContext) (bool, error) {
	at := octx.At

	if p.Window != nil && !p.Window.Contains(at) {
		return false, nil
	}
	if !matchesDayOfWeek(p.DaysOfWeek, at) {
		return false, nil
	}
	if !f.meetsCartThresholds(p, octx) {
		return false, nil
	}

	ok, err := f.withinUsageLimits(ctx, p, octx)
	if err != nil || !ok {
		return false, err
	}

	if p.RequiresCode && !octx.hasCode(p.Code) {
		return false, nil
	}
	if !hasRequiredItems(p.RequiredItems, octx.Items) {
		return false, nil
	}
	return true, nil
}

func (f *EligibilityFilter) meetsCartThresholds(p *Promotion, octx *OrderContext) bool {
	if p.MinCartValue.IsPositive() && octx.Subtotal().LessThan(p.MinCartValue) {
		return false
	}
	count := 0
	for _, item := range octx.Items {
		count += item.Quantity
	}
	if p.MinItems > 0 && count < p.MinItems {
		return false
	}
	if p.MaxItems > 0 && count > p.MaxItems {
		return false
	}
	return true
}

func (f *EligibilityFilter) withinUsageLimits(ctx context.Context, p *Promotion, octx *OrderContext) (bool, error) {
	if p.UsageLimit > 0 && p.Uses >= p.UsageLimit {
		return false, nil
	}
	if p.PerCustomerLimit > 0 && octx.CustomerID != "" {
		used, err := f.repo.CustomerUsageCount(ctx, p.ID, octx.CustomerID, octx.TenantID)
		if err != nil {
			return false, errors.Wrapf(err, "customer usage count for promotion %s", p.ID)
		}
		if used >= p.PerCustomerLimit {
			return false, nil
		}
	}
	return true, nil
}

// matchesDayOfWeek checks membership using ISO numbering: 1=Monday..7=Sunday.
// Go's Weekday has Sunday=0, which normalizes to 7.
func matchesDayOfWeek(days []int, t time.Time) bool {
	if len(days) == 0 {
		return true
	}
	day := int(t.Weekday())
	if day == 0 {
		day = 7
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// hasRequiredItems verifies every combo constituent appears in the order at
// or above its required quantity.
func hasRequiredItems(required []RequiredItem, items []LineItem) bool {
	for _, req := range required {
		qty := 0
		for _, item := range items {
			if item.MenuItemID == req.MenuItemID {
				qty += item.Quantity
			}
		}
		need := req.Quantity
		if need <= 0 {
			need = 1
		}
		if qty < need {
			return false
		}
	}
	return true
}
