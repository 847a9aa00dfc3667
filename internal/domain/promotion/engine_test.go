package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	}
}

func TestEngineCalculate(t *testing.T) {
	items := []LineItem{
		{MenuItemID: "m1", Quantity: 2, UnitPrice: d("10")},
		{MenuItemID: "m2", Quantity: 1, UnitPrice: d("30")},
	}

	t.Run("capped percentage scenario", func(t *testing.T) {
		repo := &mockRepo{promos: []Promotion{
			{
				ID: "p1", Kind: KindPercentageOff, Value: d("10"), MaxDiscount: d("3"),
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
		}}
		e := NewEngine(repo, WithClock(fixedClock()))

		res, err := e.Calculate(context.Background(), &OrderContext{TenantID: "t1", Items: items})
		require.NoError(t, err)
		require.Len(t, res.Applied, 1)
		// Subtotal $50, 10% capped at $3.
		assert.True(t, res.TotalDiscount.Equal(d("3")))
		assert.True(t, res.FinalAmount.Equal(d("47")))
	})

	t.Run("validation errors on malformed context", func(t *testing.T) {
		e := NewEngine(&mockRepo{}, WithClock(fixedClock()))

		var verr *ValidationError
		_, err := e.Calculate(context.Background(), &OrderContext{TenantID: "t1"})
		require.Error(t, err)
		assert.ErrorAs(t, err, &verr)

		_, err = e.Calculate(context.Background(), &OrderContext{Items: items})
		require.Error(t, err)
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("persistence errors propagate", func(t *testing.T) {
		repo := &mockRepo{listErr: errors.New("db down")}
		e := NewEngine(repo, WithClock(fixedClock()))

		_, err := e.Calculate(context.Background(), &OrderContext{TenantID: "t1", Items: items})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("inactive date range never applies", func(t *testing.T) {
		past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		repo := &mockRepo{promos: []Promotion{
			{
				ID: "expired", Kind: KindPercentageOff, Value: d("50"),
				Combinable: true, Target: TargetSpec{Type: TargetAll},
				ActiveUntil: &past,
			},
		}}
		e := NewEngine(repo, WithClock(fixedClock()))

		res, err := e.Calculate(context.Background(), &OrderContext{TenantID: "t1", Items: items})
		require.NoError(t, err)
		assert.Empty(t, res.Applied)
	})

	t.Run("code gated promotion excluded without its code", func(t *testing.T) {
		repo := &mockRepo{promos: []Promotion{
			{
				ID: "gated", Kind: KindPercentageOff, Value: d("10"),
				Combinable: true, Target: TargetSpec{Type: TargetAll},
				RequiresCode: true, Code: "SAVE10",
			},
		}}
		e := NewEngine(repo, WithClock(fixedClock()))

		res, err := e.Calculate(context.Background(), &OrderContext{TenantID: "t1", Items: items})
		require.NoError(t, err)
		assert.Empty(t, res.Applied)

		res, err = e.Calculate(context.Background(),
			&OrderContext{TenantID: "t1", Items: items, Codes: []string{"SAVE10"}})
		require.NoError(t, err)
		assert.Len(t, res.Applied, 1)
	})

	t.Run("malformed catalog row skipped with remaining promotions intact", func(t *testing.T) {
		repo := &mockRepo{promos: []Promotion{
			{ID: "bad", Kind: Kind("MYSTERY"), Target: TargetSpec{Type: TargetAll}},
			{
				ID: "good", Kind: KindPercentageOff, Value: d("10"),
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
		}}
		e := NewEngine(repo, WithClock(fixedClock()))

		res, err := e.Calculate(context.Background(), &OrderContext{TenantID: "t1", Items: items})
		require.NoError(t, err)
		require.Len(t, res.Applied, 1)
		assert.Equal(t, "good", res.Applied[0].PromotionID)
	})

	t.Run("idempotent for identical contexts", func(t *testing.T) {
		repo := &mockRepo{promos: []Promotion{
			{
				ID: "p1", Kind: KindPercentageOff, Value: d("15"), Priority: 10,
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
			{
				ID: "p2", Kind: KindFixedOff, Value: d("2"), Priority: 5,
				Combinable: true, Target: TargetSpec{Type: TargetProducts, ItemIDs: []string{"m2"}},
			},
		}}
		e := NewEngine(repo, WithClock(fixedClock()))
		octx := &OrderContext{TenantID: "t1", Items: items}

		first, err := e.Calculate(context.Background(), octx)
		require.NoError(t, err)
		second, err := e.Calculate(context.Background(), octx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}

func TestEngineApplyCode(t *testing.T) {
	items := []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("100")}}
	octx := &OrderContext{TenantID: "t1", Items: items}

	save10 := &Promotion{
		ID: "p1", Kind: KindCoupon, ValueType: ValuePercentage, Value: d("10"),
		Target: TargetSpec{Type: TargetAll}, RequiresCode: true, Code: "SAVE10",
	}

	t.Run("unknown code", func(t *testing.T) {
		e := NewEngine(&mockRepo{byCode: map[string]*Promotion{}}, WithClock(fixedClock()))
		_, err := e.ApplyCode(context.Background(), "BOGUS", octx)
		assert.ErrorIs(t, err, ErrInvalidPromoCode)
	})

	t.Run("expired code is invalid", func(t *testing.T) {
		past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		expired := *save10
		expired.ActiveUntil = &past
		e := NewEngine(&mockRepo{byCode: map[string]*Promotion{"SAVE10": &expired}}, WithClock(fixedClock()))

		_, err := e.ApplyCode(context.Background(), "SAVE10", octx)
		assert.ErrorIs(t, err, ErrInvalidPromoCode)
	})

	t.Run("conditions not met", func(t *testing.T) {
		picky := *save10
		picky.MinCartValue = d("500")
		e := NewEngine(&mockRepo{byCode: map[string]*Promotion{"SAVE10": &picky}}, WithClock(fixedClock()))

		_, err := e.ApplyCode(context.Background(), "SAVE10", octx)
		assert.ErrorIs(t, err, ErrConditionsNotMet)
	})

	t.Run("eligible code returns single-promotion result", func(t *testing.T) {
		e := NewEngine(&mockRepo{byCode: map[string]*Promotion{"SAVE10": save10}}, WithClock(fixedClock()))

		res, err := e.ApplyCode(context.Background(), "SAVE10", octx)
		require.NoError(t, err)
		require.Len(t, res.Applied, 1)
		assert.Equal(t, "SAVE10", res.Applied[0].Code)
		assert.True(t, res.TotalDiscount.Equal(d("10")))
		assert.True(t, res.FinalAmount.Equal(d("90")))
	})
}

func TestEngineApplyCodesSequential(t *testing.T) {
	items := []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("100")}}

	half := &Promotion{
		ID: "half", Kind: KindCoupon, ValueType: ValuePercentage, Value: d("50"),
		Target: TargetSpec{Type: TargetAll}, RequiresCode: true, Code: "HALF",
	}
	ten := &Promotion{
		ID: "ten", Kind: KindCoupon, ValueType: ValuePercentage, Value: d("10"),
		Target: TargetSpec{Type: TargetAll}, RequiresCode: true, Code: "TEN",
	}
	e := NewEngine(&mockRepo{byCode: map[string]*Promotion{"HALF": half, "TEN": ten}},
		WithClock(fixedClock()))

	res, err := e.ApplyCodes(context.Background(), []string{"HALF", "TEN"},
		&OrderContext{TenantID: "t1", Items: items})
	require.NoError(t, err)
	require.Len(t, res.Applied, 2)

	// Second code works against the already-discounted prices: 10% of $50,
	// not 10% of $100.
	assert.True(t, res.Applied[0].Amount.Equal(d("50")))
	assert.True(t, res.Applied[1].Amount.Equal(d("5")), "amount = %s", res.Applied[1].Amount)
	assert.True(t, res.FinalAmount.Equal(d("45")))
}

func TestEnginePreviewHasNoSideEffects(t *testing.T) {
	repo := &mockRepo{promos: []Promotion{
		{
			ID: "p1", Kind: KindPercentageOff, Value: d("10"),
			Combinable: true, Target: TargetSpec{Type: TargetAll},
		},
	}}
	e := NewEngine(repo, WithClock(fixedClock()))

	res, err := e.Preview(context.Background(), "t1",
		[]LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("20")}}, nil, "")
	require.NoError(t, err)
	assert.Len(t, res.Applied, 1)
	assert.Empty(t, repo.recorded)
}

func TestEngineCommit(t *testing.T) {
	repo := &mockRepo{promos: []Promotion{
		{
			ID: "p1", Kind: KindPercentageOff, Value: d("10"),
			Combinable: true, Target: TargetSpec{Type: TargetAll},
		},
	}}
	e := NewEngine(repo, WithClock(fixedClock()))
	octx := &OrderContext{
		TenantID:   "t1",
		CustomerID: "cust1",
		Items:      []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("20")}},
	}

	res, err := e.Calculate(context.Background(), octx)
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)

	require.NoError(t, e.Commit(context.Background(), "order-1", octx, res))
	require.Len(t, repo.recorded, 1)

	u := repo.recorded[0]
	assert.Equal(t, "p1", u.PromotionID)
	assert.Equal(t, "order-1", u.OrderID)
	assert.Equal(t, "cust1", u.CustomerID)
	assert.True(t, u.DiscountAmount.Equal(d("2")))
	assert.True(t, u.OriginalAmount.Equal(d("20")))
	assert.True(t, u.FinalAmount.Equal(d("18")))
}

func TestEngineCommitSurfacesLimitError(t *testing.T) {
	repo := &mockRepo{
		promos: []Promotion{
			{
				ID: "p1", Kind: KindPercentageOff, Value: d("10"),
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
		},
		recordErr: ErrUsageLimitReached,
	}
	e := NewEngine(repo, WithClock(fixedClock()))
	octx := &OrderContext{
		TenantID: "t1",
		Items:    []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("20")}},
	}

	res, err := e.Calculate(context.Background(), octx)
	require.NoError(t, err)

	err = e.Commit(context.Background(), "order-1", octx, res)
	assert.ErrorIs(t, err, ErrUsageLimitReached)
}
