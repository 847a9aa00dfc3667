package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCombinableStacking(t *testing.T) {
	octx := &OrderContext{
		TenantID: "t1",
		Items: []LineItem{
			{MenuItemID: "m1", Quantity: 1, UnitPrice: d("100")},
		},
	}
	eligible := []Promotion{
		{
			ID: "second", Kind: KindPercentageOff, Value: d("10"), Priority: 5,
			Combinable: true, Target: TargetSpec{Type: TargetAll},
		},
		{
			ID: "first", Kind: KindPercentageOff, Value: d("50"), Priority: 10,
			Combinable: true, Target: TargetSpec{Type: TargetAll},
		},
	}

	res := resolve(eligible, octx)

	// 50% off $100 = $50, then 10% off the discounted $50 = $5.
	require.Len(t, res.Applied, 2)
	assert.Equal(t, "first", res.Applied[0].PromotionID)
	assert.Equal(t, "second", res.Applied[1].PromotionID)
	assert.True(t, res.Applied[0].Amount.Equal(d("50")))
	assert.True(t, res.Applied[1].Amount.Equal(d("5")), "amount = %s", res.Applied[1].Amount)
	assert.True(t, res.TotalDiscount.Equal(d("55")))
	assert.True(t, res.FinalAmount.Equal(d("45")))
}

func TestResolveNonCombinable(t *testing.T) {
	items := []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("100")}}

	t.Run("exclusive promotion applies alone", func(t *testing.T) {
		eligible := []Promotion{
			{
				ID: "a", Kind: KindPercentageOff, Value: d("20"), Priority: 10,
				Combinable: false, Target: TargetSpec{Type: TargetAll},
			},
			{
				ID: "b", Kind: KindPercentageOff, Value: d("10"), Priority: 5,
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
		}
		res := resolve(eligible, &OrderContext{TenantID: "t1", Items: items})

		require.Len(t, res.Applied, 1)
		assert.Equal(t, "a", res.Applied[0].PromotionID)
		assert.True(t, res.TotalDiscount.Equal(d("20")))
	})

	t.Run("lower priority exclusive is skipped", func(t *testing.T) {
		eligible := []Promotion{
			{
				ID: "high", Kind: KindPercentageOff, Value: d("20"), Priority: 10,
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
			{
				ID: "low", Kind: KindPercentageOff, Value: d("50"), Priority: 5,
				Combinable: false, Target: TargetSpec{Type: TargetAll},
			},
		}
		res := resolve(eligible, &OrderContext{TenantID: "t1", Items: items})

		require.Len(t, res.Applied, 1)
		assert.Equal(t, "high", res.Applied[0].PromotionID)
	})

	t.Run("exclusive wins priority sort and excludes the rest", func(t *testing.T) {
		eligible := []Promotion{
			{
				ID: "small", Kind: KindPercentageOff, Value: d("10"), Priority: 5,
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
			{
				ID: "big", Kind: KindPercentageOff, Value: d("30"), Priority: 10,
				Combinable: false, Target: TargetSpec{Type: TargetAll},
			},
		}
		res := resolve(eligible, &OrderContext{TenantID: "t1", Items: items})

		require.Len(t, res.Applied, 1)
		assert.Equal(t, "big", res.Applied[0].PromotionID)
		assert.True(t, res.Applied[0].Amount.Equal(d("30")))
	})

	t.Run("exclusive displacement compares against the maximum applied priority", func(t *testing.T) {
		eligible := []Promotion{
			{
				ID: "c1", Kind: KindPercentageOff, Value: d("10"), Priority: 20,
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
			{
				ID: "c2", Kind: KindPercentageOff, Value: d("10"), Priority: 3,
				Combinable: true, Target: TargetSpec{Type: TargetAll},
			},
			{
				ID: "ex", Kind: KindPercentageOff, Value: d("50"), Priority: 5,
				Combinable: false, Target: TargetSpec{Type: TargetAll},
			},
		}
		res := resolve(eligible, &OrderContext{TenantID: "t1", Items: items})

		// "ex" outranks c2 but not the maximum applied priority (c1's 20),
		// so it must not displace the applied set.
		ids := make([]string, len(res.Applied))
		for i, a := range res.Applied {
			ids[i] = a.PromotionID
		}
		assert.NotContains(t, ids, "ex")
		assert.Contains(t, ids, "c1")
		assert.Contains(t, ids, "c2")
	})
}

func TestResolvePanicIsolation(t *testing.T) {
	octx := &OrderContext{
		TenantID: "t1",
		Items:    []LineItem{{MenuItemID: "m1", Quantity: 4, UnitPrice: d("10")}},
	}
	eligible := []Promotion{
		{
			// Zero buy quantity forces a division-by-zero panic inside the
			// BOGO calculator.
			ID: "broken", Kind: KindBOGO, BuyQuantity: 0, GetQuantity: 1, Priority: 10,
			Combinable: true,
			BuyTarget:  TargetSpec{Type: TargetAll},
			GetTarget:  TargetSpec{Type: TargetAll},
		},
		{
			ID: "ok", Kind: KindPercentageOff, Value: d("10"), Priority: 5,
			Combinable: true, Target: TargetSpec{Type: TargetAll},
		},
	}

	res := resolve(eligible, octx)

	require.Len(t, res.Applied, 1)
	assert.Equal(t, "ok", res.Applied[0].PromotionID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "broken")
}

func TestResolveInvariants(t *testing.T) {
	octx := &OrderContext{
		TenantID: "t1",
		Items: []LineItem{
			{MenuItemID: "m1", Quantity: 2, UnitPrice: d("12.50")},
			{MenuItemID: "m2", Quantity: 1, UnitPrice: d("25")},
		},
	}
	eligible := []Promotion{
		{
			ID: "p1", Kind: KindPercentageOff, Value: d("10"), Priority: 10,
			Combinable: true, Target: TargetSpec{Type: TargetAll},
		},
		{
			ID: "p2", Kind: KindFixedOff, Value: d("5"), Priority: 5,
			Combinable: true, Target: TargetSpec{Type: TargetProducts, ItemIDs: []string{"m2"}},
		},
	}

	res := resolve(eligible, octx)

	sum := d("0")
	for _, a := range res.Applied {
		sum = sum.Add(a.Amount)
		// Per-application bound: discount never exceeds the affected lines'
		// own pre-application subtotal.
		lineTotal := d("0")
		for _, it := range a.Items {
			lineTotal = lineTotal.Add(it.OriginalPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		assert.True(t, a.Amount.LessThanOrEqual(lineTotal))
	}
	assert.True(t, res.TotalDiscount.Equal(sum))
	assert.True(t, res.FinalAmount.Equal(floorAtZero(res.Subtotal.Sub(res.TotalDiscount)).Round(2)))
	assert.False(t, res.FinalAmount.IsNegative())

	// Resolution never mutates the caller's items.
	assert.True(t, octx.Items[0].UnitPrice.Equal(d("12.50")))
}
