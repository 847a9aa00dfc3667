package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tably/promo-engine/internal/domain/promotion"
)

const promotionColumns = `id, tenant_id, name, kind, value, value_type,
	min_cart_value, min_items, max_items, max_discount, target_spec,
	buy_quantity, get_quantity, buy_target_spec, get_target_spec,
	window_start, window_end, days_of_week, priority,
	active_from, active_until, usage_limit, uses, per_customer_limit,
	requires_code, code, combinable, required_items, created_at`

const (
	listActivePromotionsSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE tenant_id = $1 AND active = TRUE
		  AND (active_from IS NULL OR active_from <= $2)
		  AND (active_until IS NULL OR active_until >= $2)
		ORDER BY priority DESC, created_at ASC`

	findPromotionByCodeSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE tenant_id = $1 AND UPPER(code) = UPPER($2) AND active = TRUE`

	customerUsageCountSQL = `SELECT COALESCE(
		(SELECT uses FROM promotion_customer_usage
		 WHERE promotion_id = $1 AND customer_id = $2 AND tenant_id = $3), 0)`

	// The uses guard makes the limit check-and-increment atomic: under
	// concurrent redemptions only usage_limit rows ever pass the predicate.
	incrementPromotionUsesSQL = `UPDATE promotions
		SET uses = uses + 1
		WHERE id = $1 AND (usage_limit = 0 OR uses < usage_limit)
		RETURNING uses`

	insertUsageSQL = `INSERT INTO promotion_usages
		(promotion_id, tenant_id, order_id, customer_id, code,
		 discount_amount, original_amount, final_amount, affected_items)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)`

	upsertCustomerUsageSQL = `INSERT INTO promotion_customer_usage
		(promotion_id, tenant_id, customer_id, uses)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (promotion_id, customer_id) DO UPDATE
		SET uses = promotion_customer_usage.uses + 1
		WHERE (SELECT per_customer_limit FROM promotions WHERE id = $1) = 0
		   OR promotion_customer_usage.uses < (SELECT per_customer_limit FROM promotions WHERE id = $1)`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListActive returns the tenant's structurally active promotions whose date
// range covers asOf, ordered by priority descending then creation time.
func (r *PromotionRepository) ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listActivePromotionsSQL, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("listing active promotions for tenant %q: %w", tenantID, err)
	}

	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("listing active promotions for tenant %q: %w", tenantID, err)
	}
	return promos, nil
}

// FindByCode looks up an active promotion by its code (case-insensitive).
// Returns promotion.ErrInvalidPromoCode when no matching row exists.
func (r *PromotionRepository) FindByCode(ctx context.Context, tenantID, code string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, findPromotionByCodeSQL, tenantID, code)
	if err != nil {
		return nil, fmt.Errorf("finding promotion by code %q: %w", code, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrInvalidPromoCode
		}
		return nil, fmt.Errorf("finding promotion by code %q: %w", code, err)
	}
	return &p, nil
}

// CustomerUsageCount returns the customer's historical redemption count for
// the promotion. Missing rows count as zero.
func (r *PromotionRepository) CustomerUsageCount(ctx context.Context, promotionID, customerID, tenantID string) (int, error) {
	var uses int32
	err := r.pool.QueryRow(ctx, customerUsageCountSQL, promotionID, customerID, tenantID).Scan(&uses)
	if err != nil {
		return 0, fmt.Errorf("customer usage count for promotion %q: %w", promotionID, err)
	}
	return int(uses), nil
}

// RecordUsage persists the audit row and increments the global and
// per-customer counters in one transaction. Either counter hitting its limit
// rolls everything back with promotion.ErrUsageLimitReached.
func (r *PromotionRepository) RecordUsage(ctx context.Context, u promotion.Usage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording usage for promotion %q: %w", u.PromotionID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var uses int32
	err = tx.QueryRow(ctx, incrementPromotionUsesSQL, u.PromotionID).Scan(&uses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(promotion.ErrUsageLimitReached, "promotion %q", u.PromotionID)
		}
		return fmt.Errorf("incrementing uses for promotion %q: %w", u.PromotionID, err)
	}

	_, err = tx.Exec(ctx, insertUsageSQL,
		u.PromotionID, u.TenantID, u.OrderID, u.CustomerID, u.Code,
		u.DiscountAmount, u.OriginalAmount, u.FinalAmount, encodeAppliedItems(u.Items),
	)
	if err != nil {
		return fmt.Errorf("inserting usage audit for promotion %q: %w", u.PromotionID, err)
	}

	if u.CustomerID != "" {
		tag, err := tx.Exec(ctx, upsertCustomerUsageSQL, u.PromotionID, u.TenantID, u.CustomerID)
		if err != nil {
			return fmt.Errorf("incrementing customer usage for promotion %q: %w", u.PromotionID, err)
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(promotion.ErrUsageLimitReached,
				"promotion %q customer %q", u.PromotionID, u.CustomerID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recording usage for promotion %q: %w", u.PromotionID, err)
	}
	return nil
}

// Create inserts a promotion. Used by the seeding and ingestion tools.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	const insertPromotionSQL = `INSERT INTO promotions
		(id, tenant_id, name, kind, value, value_type, min_cart_value,
		 min_items, max_items, max_discount, target_spec, buy_quantity,
		 get_quantity, buy_target_spec, get_target_spec, window_start,
		 window_end, days_of_week, priority, active, active_from,
		 active_until, usage_limit, per_customer_limit, requires_code,
		 code, combinable, required_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, TRUE, $20, $21, $22, $23,
		        $24, NULLIF($25, ''), $26, $27)
		ON CONFLICT (id) DO NOTHING`

	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "validate promotion")
	}

	var windowStart, windowEnd *string
	if p.Window != nil {
		windowStart = &p.Window.Start
		windowEnd = &p.Window.End
	}
	days := make([]int32, len(p.DaysOfWeek))
	for i, d := range p.DaysOfWeek {
		days[i] = int32(d)
	}

	_, err := r.pool.Exec(ctx, insertPromotionSQL,
		p.ID, p.TenantID, p.Name, string(p.Kind), p.Value, string(p.ValueType),
		p.MinCartValue, int32(p.MinItems), int32(p.MaxItems), p.MaxDiscount,
		encodeTargetSpec(p.Target), int32(p.BuyQuantity), int32(p.GetQuantity),
		nullableSpec(p.BuyTarget), nullableSpec(p.GetTarget),
		windowStart, windowEnd, days, int32(p.Priority),
		p.ActiveFrom, p.ActiveUntil, int32(p.UsageLimit), int32(p.PerCustomerLimit),
		p.RequiresCode, p.Code, p.Combinable, encodeRequiredItems(p.RequiredItems),
	)
	if err != nil {
		return fmt.Errorf("inserting promotion %q: %w", p.ID, err)
	}
	return nil
}

func nullableSpec(spec promotion.TargetSpec) []byte {
	if spec.Type == "" {
		return nil
	}
	return encodeTargetSpec(spec)
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p                      promotion.Promotion
		kind, valueType        string
		value, minCart, maxDis decimal.Decimal
		targetRaw, requiredRaw []byte
		buyRaw, getRaw         []byte
		windowStart, windowEnd *string
		code                   *string
		days                   []int32

		minItems, maxItems, buyQty, getQty   int32
		priority, usageLimit, uses, perLimit int32
	)

	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &kind, &value, &valueType,
		&minCart, &minItems, &maxItems, &maxDis, &targetRaw,
		&buyQty, &getQty, &buyRaw, &getRaw,
		&windowStart, &windowEnd, &days, &priority,
		&p.ActiveFrom, &p.ActiveUntil, &usageLimit, &uses, &perLimit,
		&p.RequiresCode, &code, &p.Combinable, &requiredRaw, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}

	p.Kind = promotion.Kind(kind)
	p.ValueType = promotion.ValueType(valueType)
	p.Value = value
	p.MinCartValue = minCart
	p.MaxDiscount = maxDis
	p.MinItems = int(minItems)
	p.MaxItems = int(maxItems)
	p.BuyQuantity = int(buyQty)
	p.GetQuantity = int(getQty)
	p.Priority = int(priority)
	p.UsageLimit = int(usageLimit)
	p.Uses = int(uses)
	p.PerCustomerLimit = int(perLimit)
	if code != nil {
		p.Code = *code
	}
	if windowStart != nil && windowEnd != nil {
		p.Window = &promotion.TimeWindow{Start: *windowStart, End: *windowEnd}
	}
	p.DaysOfWeek = make([]int, 0, len(days))
	for _, d := range days {
		p.DaysOfWeek = append(p.DaysOfWeek, int(d))
	}

	if p.Target, err = decodeTargetSpec(targetRaw); err != nil {
		return p, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	if p.BuyTarget, err = decodeTargetSpec(buyRaw); err != nil {
		return p, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	if p.GetTarget, err = decodeTargetSpec(getRaw); err != nil {
		return p, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	if p.RequiredItems, err = decodeRequiredItems(requiredRaw); err != nil {
		return p, fmt.Errorf("promotion %q: %w", p.ID, err)
	}

	return p, nil
}
