package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculatePercentage(t *testing.T) {
	tests := []struct {
		name       string
		promo      *Promotion
		items      []LineItem
		wantAmount decimal.Decimal
	}{
		{
			name: "10 percent off all items",
			promo: &Promotion{
				ID: "p1", Kind: KindPercentageOff, Value: d("10"),
				Target: TargetSpec{Type: TargetAll},
			},
			items: []LineItem{
				{MenuItemID: "m1", Quantity: 2, UnitPrice: d("10")},
				{MenuItemID: "m2", Quantity: 1, UnitPrice: d("30")},
			},
			wantAmount: d("5"),
		},
		{
			name: "cap limits total discount not per item",
			promo: &Promotion{
				ID: "p2", Kind: KindPercentageOff, Value: d("10"), MaxDiscount: d("3"),
				Target: TargetSpec{Type: TargetAll},
			},
			items: []LineItem{
				{MenuItemID: "m1", Quantity: 1, UnitPrice: d("25")},
				{MenuItemID: "m2", Quantity: 1, UnitPrice: d("25")},
			},
			wantAmount: d("3"),
		},
		{
			name: "happy hour targets one category",
			promo: &Promotion{
				ID: "p3", Kind: KindHappyHour, Value: d("50"),
				Target: TargetSpec{Type: TargetCategory, CategoryID: "drinks"},
			},
			items: []LineItem{
				{MenuItemID: "beer", CategoryID: "drinks", Quantity: 2, UnitPrice: d("6")},
				{MenuItemID: "burger", CategoryID: "food", Quantity: 1, UnitPrice: d("12")},
			},
			wantAmount: d("6"),
		},
		{
			name: "no matching targets yields zero",
			promo: &Promotion{
				ID: "p4", Kind: KindPercentageOff, Value: d("20"),
				Target: TargetSpec{Type: TargetProducts, ItemIDs: []string{"absent"}},
			},
			items: []LineItem{
				{MenuItemID: "m1", Quantity: 1, UnitPrice: d("10")},
			},
			wantAmount: d("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := calculate(tt.promo, tt.items, subtotalOf(tt.items))
			require.NoError(t, err)
			assert.True(t, calc.amount.Equal(tt.wantAmount),
				"amount = %s, want %s", calc.amount, tt.wantAmount)
		})
	}
}

func TestCalculatePercentageCapNeverExceeded(t *testing.T) {
	promo := &Promotion{
		ID: "cap", Kind: KindPercentageOff, Value: d("10"), MaxDiscount: d("3"),
		Target: TargetSpec{Type: TargetAll},
	}
	for _, price := range []string{"50", "500", "50000"} {
		items := []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d(price)}}
		calc, err := calculate(promo, items, subtotalOf(items))
		require.NoError(t, err)
		assert.True(t, calc.amount.LessThanOrEqual(d("3")),
			"price %s: amount %s exceeds cap", price, calc.amount)
	}
}

func TestCalculateFixedOff(t *testing.T) {
	promo := &Promotion{
		ID: "f1", Kind: KindFixedOff, Value: d("5"),
		Target: TargetSpec{Type: TargetAll},
	}

	t.Run("discount bounded by line total", func(t *testing.T) {
		items := []LineItem{
			{MenuItemID: "cheap", Quantity: 1, UnitPrice: d("2")},
			{MenuItemID: "pricey", Quantity: 1, UnitPrice: d("20")},
		}
		calc, err := calculate(promo, items, subtotalOf(items))
		require.NoError(t, err)
		// $2 from the cheap line (its full price), $5 from the other.
		assert.True(t, calc.amount.Equal(d("7")), "amount = %s", calc.amount)
		assert.True(t, calc.lines[0].newUnitPrice.Equal(d("0")))
		assert.True(t, calc.lines[1].newUnitPrice.Equal(d("15")))
	})

	t.Run("never exceeds targeted subtotal", func(t *testing.T) {
		items := []LineItem{{MenuItemID: "m1", Quantity: 2, UnitPrice: d("1")}}
		calc, err := calculate(promo, items, subtotalOf(items))
		require.NoError(t, err)
		assert.True(t, calc.amount.LessThanOrEqual(subtotalOf(items)))
		assert.False(t, calc.lines[0].newUnitPrice.IsNegative())
	})
}

func TestCalculateBOGO(t *testing.T) {
	tests := []struct {
		name       string
		promo      *Promotion
		items      []LineItem
		wantAmount decimal.Decimal
	}{
		{
			name: "buy 2 get 1 with 3 buy items frees one get unit",
			promo: &Promotion{
				ID: "b1", Kind: KindBOGO, BuyQuantity: 2, GetQuantity: 1,
				BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"pizza"}},
				GetTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"soda"}},
			},
			items: []LineItem{
				{MenuItemID: "pizza", Quantity: 3, UnitPrice: d("10")},
				{MenuItemID: "soda", Quantity: 2, UnitPrice: d("3")},
			},
			wantAmount: d("3"),
		},
		{
			name: "buy 2 get 1 with 6 buy items frees three get units",
			promo: &Promotion{
				ID: "b2", Kind: KindBOGO, BuyQuantity: 2, GetQuantity: 1,
				BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"pizza"}},
				GetTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"soda"}},
			},
			items: []LineItem{
				{MenuItemID: "pizza", Quantity: 6, UnitPrice: d("10")},
				{MenuItemID: "soda", Quantity: 5, UnitPrice: d("3")},
			},
			wantAmount: d("9"),
		},
		{
			name: "free units bounded by get availability",
			promo: &Promotion{
				ID: "b3", Kind: KindBOGO, BuyQuantity: 2, GetQuantity: 1,
				BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"pizza"}},
				GetTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"soda"}},
			},
			items: []LineItem{
				{MenuItemID: "pizza", Quantity: 6, UnitPrice: d("10")},
				{MenuItemID: "soda", Quantity: 1, UnitPrice: d("3")},
			},
			wantAmount: d("3"),
		},
		{
			name: "buy one get one on the same item pool pairs units",
			promo: &Promotion{
				ID: "b4", Kind: KindBOGO, BuyQuantity: 1, GetQuantity: 1,
				BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"taco"}},
				GetTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"taco"}},
			},
			items: []LineItem{
				{MenuItemID: "taco", Quantity: 4, UnitPrice: d("5")},
			},
			wantAmount: d("10"),
		},
		{
			name: "no matching buy items contributes zero",
			promo: &Promotion{
				ID: "b5", Kind: KindBOGO, BuyQuantity: 2, GetQuantity: 1,
				BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"pizza"}},
				GetTarget: TargetSpec{Type: TargetAll},
			},
			items: []LineItem{
				{MenuItemID: "soda", Quantity: 4, UnitPrice: d("3")},
			},
			wantAmount: d("0"),
		},
		{
			name: "below buy threshold contributes zero",
			promo: &Promotion{
				ID: "b6", Kind: KindBOGO, BuyQuantity: 3, GetQuantity: 1,
				BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"pizza"}},
				GetTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"soda"}},
			},
			items: []LineItem{
				{MenuItemID: "pizza", Quantity: 2, UnitPrice: d("10")},
				{MenuItemID: "soda", Quantity: 1, UnitPrice: d("3")},
			},
			wantAmount: d("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := calculate(tt.promo, tt.items, subtotalOf(tt.items))
			require.NoError(t, err)
			assert.True(t, calc.amount.Equal(tt.wantAmount),
				"amount = %s, want %s", calc.amount, tt.wantAmount)
		})
	}
}

func TestCalculateCartLevel(t *testing.T) {
	items := []LineItem{
		{MenuItemID: "m1", Quantity: 2, UnitPrice: d("10")},
		{MenuItemID: "m2", Quantity: 1, UnitPrice: d("30")},
	}
	subtotal := subtotalOf(items) // 50

	t.Run("cart percentage with cap", func(t *testing.T) {
		promo := &Promotion{
			ID: "c1", Kind: KindCartDiscount, ValueType: ValuePercentage,
			Value: d("10"), MaxDiscount: d("3"), Target: TargetSpec{Type: TargetAll},
		}
		calc, err := calculate(promo, items, subtotal)
		require.NoError(t, err)
		assert.True(t, calc.amount.Equal(d("3")), "amount = %s", calc.amount)
	})

	t.Run("cart fixed bounded by subtotal", func(t *testing.T) {
		promo := &Promotion{
			ID: "c2", Kind: KindCartDiscount, ValueType: ValueFixed,
			Value: d("80"), Target: TargetSpec{Type: TargetAll},
		}
		calc, err := calculate(promo, items, subtotal)
		require.NoError(t, err)
		assert.True(t, calc.amount.Equal(subtotal))
	})

	t.Run("fixed price charges the difference", func(t *testing.T) {
		promo := &Promotion{
			ID: "c3", Kind: KindFixedPrice, Value: d("35"),
			Target: TargetSpec{Type: TargetAll},
		}
		calc, err := calculate(promo, items, subtotal)
		require.NoError(t, err)
		assert.True(t, calc.amount.Equal(d("15")), "amount = %s", calc.amount)
	})

	t.Run("fixed price above subtotal yields zero", func(t *testing.T) {
		promo := &Promotion{
			ID: "c4", Kind: KindFixedPrice, Value: d("120"),
			Target: TargetSpec{Type: TargetAll},
		}
		calc, err := calculate(promo, items, subtotal)
		require.NoError(t, err)
		assert.True(t, calc.amount.IsZero())
	})

	t.Run("cart discount spreads price reduction over all lines", func(t *testing.T) {
		promo := &Promotion{
			ID: "c5", Kind: KindCartDiscount, ValueType: ValuePercentage,
			Value: d("50"), Target: TargetSpec{Type: TargetAll},
		}
		calc, err := calculate(promo, items, subtotal)
		require.NoError(t, err)
		require.Len(t, calc.lines, 2)
		assert.True(t, calc.lines[0].newUnitPrice.Equal(d("5")))
		assert.True(t, calc.lines[1].newUnitPrice.Equal(d("15")))
	})
}

func TestCalculateItemDiscount(t *testing.T) {
	items := []LineItem{
		{MenuItemID: "m1", Quantity: 2, UnitPrice: d("10")},
	}

	t.Run("percentage form", func(t *testing.T) {
		promo := &Promotion{
			ID: "i1", Kind: KindItemDiscount, ValueType: ValuePercentage,
			Value: d("25"), Target: TargetSpec{Type: TargetProducts, ItemIDs: []string{"m1"}},
		}
		calc, err := calculate(promo, items, subtotalOf(items))
		require.NoError(t, err)
		assert.True(t, calc.amount.Equal(d("5")))
	})

	t.Run("fixed form", func(t *testing.T) {
		promo := &Promotion{
			ID: "i2", Kind: KindItemDiscount, ValueType: ValueFixed,
			Value: d("4"), Target: TargetSpec{Type: TargetProducts, ItemIDs: []string{"m1"}},
		}
		calc, err := calculate(promo, items, subtotalOf(items))
		require.NoError(t, err)
		assert.True(t, calc.amount.Equal(d("4")))
	})
}

func TestCalculateUnsupportedKind(t *testing.T) {
	promo := &Promotion{ID: "x", Kind: Kind("MYSTERY"), Target: TargetSpec{Type: TargetAll}}
	_, err := calculate(promo, []LineItem{{MenuItemID: "m1", Quantity: 1, UnitPrice: d("1")}}, d("1"))
	require.Error(t, err)
}
