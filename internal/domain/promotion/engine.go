package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Engine is the calculation entry point exposed to the order-processing
// layer. It is stateless between calls; calculations never write, and usage
// recording only happens through an explicit Commit.
type Engine struct {
	repo   Repository
	filter *EligibilityFilter
	lg     *zap.Logger
	now    func() time.Time

	tracer       trace.Tracer
	appliedTotal metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(lg *zap.Logger) Option {
	return func(e *Engine) { e.lg = lg }
}

// WithClock overrides the evaluation clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTracerProvider enables tracing of calculation calls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("promo-engine") }
}

// WithMeterProvider enables the applied-promotions counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		counter, err := mp.Meter("promo-engine").Int64Counter("promotions.applied")
		if err == nil {
			e.appliedTotal = counter
		}
	}
}

// NewEngine creates an Engine backed by the given repository.
func NewEngine(repo Repository, opts ...Option) *Engine {
	noopCounter, _ := metricnoop.NewMeterProvider().Meter("promo-engine").Int64Counter("promotions.applied")
	e := &Engine{
		repo:         repo,
		filter:       NewEligibilityFilter(repo),
		lg:           zap.NewNop(),
		now:          time.Now,
		tracer:       tracenoop.NewTracerProvider().Tracer("promo-engine"),
		appliedTotal: noopCounter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate loads the tenant's active catalog, filters it against the order
// context, and resolves the eligible promotions into a final result. Code
// gated promotions participate when their code appears in the context's
// supplied codes; otherwise they are silently excluded.
func (e *Engine) Calculate(ctx context.Context, octx *OrderContext) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "promotion.Calculate")
	defer span.End()

	if err := octx.Validate(); err != nil {
		return nil, err
	}
	oc := *octx
	if oc.At.IsZero() {
		oc.At = e.now()
	}

	promos, err := e.repo.ListActive(ctx, oc.TenantID, oc.At)
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}

	valid := make([]Promotion, 0, len(promos))
	for i := range promos {
		// The repository already scopes by date range; re-check in case a
		// caching layer served a stale catalog.
		if !promos[i].ActiveAt(oc.At) {
			continue
		}
		if err := promos[i].Validate(); err != nil {
			e.lg.Warn("skipping malformed promotion",
				zap.String("tenant_id", oc.TenantID),
				zap.String("promotion_id", promos[i].ID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, promos[i])
	}

	eligible, err := e.filter.Filter(ctx, valid, &oc)
	if err != nil {
		return nil, err
	}

	res := resolve(eligible, &oc)
	for _, w := range res.Warnings {
		e.lg.Warn("promotion skipped during resolution",
			zap.String("tenant_id", oc.TenantID),
			zap.String("warning", w),
		)
	}

	e.appliedTotal.Add(ctx, int64(len(res.Applied)),
		metric.WithAttributes(attribute.String("tenant_id", oc.TenantID)))
	return res, nil
}

// ApplyCode applies exactly one explicitly requested promo code.
// Fails with ErrInvalidPromoCode when the code does not resolve to an active
// promotion, and with ErrConditionsNotMet when it fails an eligibility check.
func (e *Engine) ApplyCode(ctx context.Context, code string, octx *OrderContext) (*Result, error) {
	return e.ApplyCodes(ctx, []string{code}, octx)
}

// ApplyCodes applies the given codes sequentially. Each code is evaluated
// against the remaining subtotal and the already-discounted line item prices,
// so the same item is never discounted twice from its original price.
// Unlike the automatic pass, a failing code is a loud error: the caller asked
// for a specific outcome by name.
func (e *Engine) ApplyCodes(ctx context.Context, codes []string, octx *OrderContext) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "promotion.ApplyCodes")
	defer span.End()

	if err := octx.Validate(); err != nil {
		return nil, err
	}
	oc := *octx
	if oc.At.IsZero() {
		oc.At = e.now()
	}

	subtotal := oc.Subtotal()
	state := cloneItems(oc.Items)
	running := subtotal

	var (
		applied  []Application
		warnings []string
	)
	for _, code := range codes {
		p, err := e.lookupByCode(ctx, oc.TenantID, code, oc.At)
		if err != nil {
			return nil, err
		}

		cur := oc
		cur.Items = state
		cur.Codes = []string{code}
		ok, err := e.filter.Eligible(ctx, p, &cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(ErrConditionsNotMet, "code %q", code)
		}

		calc, err := safeCalculate(p, state, running)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		if !calc.amount.IsPositive() {
			continue
		}
		applied = append(applied, applyCalculation(p, state, calc))
		running = running.Sub(calc.amount)
	}

	total := zero
	for _, a := range applied {
		total = total.Add(a.Amount)
	}
	res := &Result{
		Applied:       applied,
		Subtotal:      subtotal,
		TotalDiscount: total,
		FinalAmount:   floorAtZero(subtotal.Sub(total)).Round(2),
		Warnings:      warnings,
	}

	e.appliedTotal.Add(ctx, int64(len(applied)),
		metric.WithAttributes(attribute.String("tenant_id", oc.TenantID)))
	return res, nil
}

// Preview runs the same computation as Calculate. Nothing is ever recorded,
// so previews are safe to run with unlimited concurrency.
func (e *Engine) Preview(ctx context.Context, tenantID string, items []LineItem, codes []string, customerID string) (*Result, error) {
	return e.Calculate(ctx, &OrderContext{
		TenantID:   tenantID,
		Items:      items,
		Codes:      codes,
		CustomerID: customerID,
	})
}

// Commit records usage for every applied promotion of a result. Invoke it
// only once the caller has committed to charging the order with these
// discounts, never during a preview.
func (e *Engine) Commit(ctx context.Context, orderID string, octx *OrderContext, res *Result) error {
	for _, app := range res.Applied {
		u := Usage{
			PromotionID:    app.PromotionID,
			TenantID:       octx.TenantID,
			OrderID:        orderID,
			CustomerID:     octx.CustomerID,
			Code:           app.Code,
			DiscountAmount: app.Amount,
			OriginalAmount: res.Subtotal,
			FinalAmount:    res.FinalAmount,
			Items:          app.Items,
		}
		if err := e.repo.RecordUsage(ctx, u); err != nil {
			return errors.Wrapf(err, "record usage for promotion %s", app.PromotionID)
		}
	}
	return nil
}

func (e *Engine) lookupByCode(ctx context.Context, tenantID, code string, at time.Time) (*Promotion, error) {
	p, err := e.repo.FindByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, ErrInvalidPromoCode) {
			return nil, errors.Wrapf(ErrInvalidPromoCode, "code %q", code)
		}
		return nil, errors.Wrapf(err, "find promotion by code %q", code)
	}
	if err := p.Validate(); err != nil {
		e.lg.Warn("malformed promotion behind code",
			zap.String("promotion_id", p.ID),
			zap.Error(err),
		)
		return nil, errors.Wrapf(ErrInvalidPromoCode, "code %q", code)
	}
	if !p.ActiveAt(at) {
		return nil, errors.Wrapf(ErrInvalidPromoCode, "code %q", code)
	}
	return p, nil
}
