package promotion

import (
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// resolve walks the eligible promotions in priority order and applies them one
// at a time against a mutable copy of the order's line items.
//
// Combinable promotions stack; each application lowers the working unit
// prices, so later promotions compound on the discounted values. A
// non-combinable promotion refuses to share the order in either direction:
// once one is applied nothing else joins, and a non-combinable candidate only
// enters a non-empty applied set by displacing it, allowed solely when its
// priority strictly exceeds the highest priority applied so far, restarting
// the price state from the original items.
//
// A calculator failure for one promotion is downgraded to a warning and the
// walk continues: one broken rule must not abort the whole order.
func resolve(eligible []Promotion, octx *OrderContext) *Result {
	subtotal := octx.Subtotal()

	candidates := make([]Promotion, len(eligible))
	copy(candidates, eligible)
	// Stable sort keeps the catalog's creation order for priority ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	var (
		state              = cloneItems(octx.Items)
		running            = subtotal
		applied            []Application
		warnings           []string
		maxAppliedPriority int
		exclusiveApplied   bool
	)

	for i := range candidates {
		p := &candidates[i]

		if len(applied) > 0 && (exclusiveApplied || !p.Combinable) {
			if p.Priority <= maxAppliedPriority {
				continue
			}
			// Candidate outranks everything applied so far: restart
			// pricing from the original items and apply it alone.
			applied = nil
			state = cloneItems(octx.Items)
			running = subtotal
			exclusiveApplied = false
		}

		calc, err := safeCalculate(p, state, running)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("promotion %s (%s) skipped: %v", p.ID, p.Name, err))
			continue
		}
		if !calc.amount.IsPositive() {
			continue
		}

		app := applyCalculation(p, state, calc)
		running = running.Sub(calc.amount)
		applied = append(applied, app)
		if len(applied) == 1 || p.Priority > maxAppliedPriority {
			maxAppliedPriority = p.Priority
		}
		if !p.Combinable {
			exclusiveApplied = true
		}
	}

	total := zero
	for _, a := range applied {
		total = total.Add(a.Amount)
	}

	return &Result{
		Applied:       applied,
		Subtotal:      subtotal,
		TotalDiscount: total,
		FinalAmount:   floorAtZero(subtotal.Sub(total)).Round(2),
		Warnings:      warnings,
	}
}

// safeCalculate shields the pass from a panicking calculator.
func safeCalculate(p *Promotion, state []LineItem, running decimal.Decimal) (c calculation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("calculation panic: %v", r)
		}
	}()
	return calculate(p, state, running)
}

// applyCalculation records the before/after unit prices for the affected
// lines and mutates the working state to the new prices.
func applyCalculation(p *Promotion, state []LineItem, c calculation) Application {
	items := make([]AppliedItem, 0, len(c.lines))
	for _, adj := range c.lines {
		li := &state[adj.index]
		items = append(items, AppliedItem{
			MenuItemID:      li.MenuItemID,
			OriginalPrice:   li.UnitPrice,
			DiscountedPrice: adj.newUnitPrice,
			Quantity:        li.Quantity,
		})
		li.UnitPrice = adj.newUnitPrice
	}

	code := ""
	if p.RequiresCode {
		code = p.Code
	}
	return Application{
		PromotionID: p.ID,
		Name:        p.Name,
		Amount:      c.amount.Round(2),
		Items:       items,
		Code:        code,
	}
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
