package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTargets(t *testing.T) {
	items := []LineItem{
		{MenuItemID: "espresso", CategoryID: "drinks", Quantity: 1, UnitPrice: d("3")},
		{MenuItemID: "croissant", CategoryID: "bakery", Quantity: 2, UnitPrice: d("4")},
		{MenuItemID: "latte", CategoryID: "drinks", Quantity: 1, UnitPrice: d("5")},
	}

	tests := []struct {
		name string
		spec TargetSpec
		want []int
	}{
		{"all targets every line", TargetSpec{Type: TargetAll}, []int{0, 1, 2}},
		{"category matches by id", TargetSpec{Type: TargetCategory, CategoryID: "drinks"}, []int{0, 2}},
		{"category with no members", TargetSpec{Type: TargetCategory, CategoryID: "pizza"}, nil},
		{"products by id set", TargetSpec{Type: TargetProducts, ItemIDs: []string{"latte", "croissant"}}, []int{1, 2}},
		{"unknown type matches nothing", TargetSpec{Type: TargetType("weird")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveTargets(tt.spec, items))
		})
	}
}

func TestBOGOTargetOverlap(t *testing.T) {
	items := []LineItem{
		{MenuItemID: "taco", CategoryID: "food", Quantity: 4, UnitPrice: d("5")},
		{MenuItemID: "soda", CategoryID: "drinks", Quantity: 2, UnitPrice: d("2")},
	}

	disjoint := resolveBOGOTargets(&Promotion{
		BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"taco"}},
		GetTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"soda"}},
	}, items)
	assert.False(t, disjoint.overlaps())

	shared := resolveBOGOTargets(&Promotion{
		BuyTarget: TargetSpec{Type: TargetProducts, ItemIDs: []string{"taco"}},
		GetTarget: TargetSpec{Type: TargetAll},
	}, items)
	assert.True(t, shared.overlaps())
}
