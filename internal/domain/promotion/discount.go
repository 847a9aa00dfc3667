package promotion

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// lineAdjustment is the new effective unit price a calculation assigns to one
// line of the working item state.
type lineAdjustment struct {
	index        int
	newUnitPrice decimal.Decimal
}

// calculation is the raw output of a per-kind calculator: the discount amount
// and the line-level price adjustments that realise it. Calculators are pure;
// they never touch state, I/O, or the clock.
type calculation struct {
	amount decimal.Decimal
	lines  []lineAdjustment
}

// calculate dispatches to the per-kind discount formula. state holds the
// current working copy of the order's line items (earlier promotions in the
// same pass may already have lowered unit prices in it) and subtotal is the
// matching running subtotal.
func calculate(p *Promotion, state []LineItem, subtotal decimal.Decimal) (calculation, error) {
	switch p.Kind {
	case KindPercentageOff, KindHappyHour, KindTimeBased:
		return calcPercentagePerItem(p, state), nil
	case KindItemDiscount:
		if p.ValueType == ValueFixed {
			return calcFixedPerItem(p, state), nil
		}
		return calcPercentagePerItem(p, state), nil
	case KindFixedOff:
		return calcFixedPerItem(p, state), nil
	case KindBOGO:
		return calcBOGO(p, state), nil
	case KindFixedPrice:
		return calcFixedPrice(p, state, subtotal), nil
	case KindCartDiscount, KindComboDeal, KindCoupon:
		return calcCartLevel(p, state, subtotal), nil
	default:
		return calculation{}, errors.Errorf("unsupported promotion kind %q", p.Kind)
	}
}

// calcPercentagePerItem discounts every targeted line by Value percent.
// MaxDiscount caps the promotion's total; when the cap bites, per-line
// discounts are scaled down proportionally so the adjusted unit prices stay
// consistent with the reported amount.
func calcPercentagePerItem(p *Promotion, state []LineItem) calculation {
	targets := resolveTargets(p.Target, state)
	if len(targets) == 0 {
		return calculation{amount: zero}
	}

	rate := p.Value.Div(hundred)
	discounts := make([]decimal.Decimal, len(targets))
	total := zero
	for i, idx := range targets {
		d := state[idx].LineTotal().Mul(rate)
		discounts[i] = d
		total = total.Add(d)
	}

	if p.MaxDiscount.IsPositive() && total.GreaterThan(p.MaxDiscount) {
		factor := p.MaxDiscount.Div(total)
		for i := range discounts {
			discounts[i] = discounts[i].Mul(factor)
		}
		total = p.MaxDiscount
	}

	lines := make([]lineAdjustment, len(targets))
	for i, idx := range targets {
		perUnit := discounts[i].Div(decimal.NewFromInt(int64(state[idx].Quantity)))
		lines[i] = lineAdjustment{
			index:        idx,
			newUnitPrice: floorAtZero(state[idx].UnitPrice.Sub(perUnit)),
		}
	}

	return calculation{amount: total, lines: lines}
}

// calcFixedPerItem takes Value off each targeted line, bounded by the line's
// own total so no item goes negative.
func calcFixedPerItem(p *Promotion, state []LineItem) calculation {
	targets := resolveTargets(p.Target, state)
	if len(targets) == 0 {
		return calculation{amount: zero}
	}

	discounts := make([]decimal.Decimal, len(targets))
	total := zero
	for i, idx := range targets {
		d := decimal.Min(p.Value, state[idx].LineTotal())
		discounts[i] = d
		total = total.Add(d)
	}

	if p.MaxDiscount.IsPositive() && total.GreaterThan(p.MaxDiscount) {
		factor := p.MaxDiscount.Div(total)
		for i := range discounts {
			discounts[i] = discounts[i].Mul(factor)
		}
		total = p.MaxDiscount
	}

	lines := make([]lineAdjustment, len(targets))
	for i, idx := range targets {
		perUnit := discounts[i].Div(decimal.NewFromInt(int64(state[idx].Quantity)))
		lines[i] = lineAdjustment{
			index:        idx,
			newUnitPrice: floorAtZero(state[idx].UnitPrice.Sub(perUnit)),
		}
	}

	return calculation{amount: total, lines: lines}
}

// calcBOGO grants free units of the get-target items once the buy-target
// quantity threshold is met.
//
// Free units = floor(Q / BuyQuantity) * GetQuantity over the buy quantity Q
// when the buy and get pools are disjoint. When they overlap, every group
// consumes BuyQuantity paid units plus GetQuantity free units from the same
// pool, so the divisor becomes BuyQuantity + GetQuantity. Free units are
// granted against get-items in listed order and are bounded by get-item
// availability.
func calcBOGO(p *Promotion, state []LineItem) calculation {
	t := resolveBOGOTargets(p, state)
	if len(t.buy) == 0 || len(t.get) == 0 {
		return calculation{amount: zero}
	}

	buyQty := 0
	for _, idx := range t.buy {
		buyQty += state[idx].Quantity
	}

	group := p.BuyQuantity
	if t.overlaps() {
		group = p.BuyQuantity + p.GetQuantity
	}
	free := buyQty / group * p.GetQuantity
	if free <= 0 {
		return calculation{amount: zero}
	}

	var (
		lines []lineAdjustment
		total = zero
	)
	for _, idx := range t.get {
		if free <= 0 {
			break
		}
		freed := min(free, state[idx].Quantity)
		free -= freed

		item := state[idx]
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(freed))))

		// Spread the freed units across the line as an averaged unit price.
		paid := decimal.NewFromInt(int64(item.Quantity - freed))
		newUnit := item.UnitPrice.Mul(paid).Div(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, lineAdjustment{index: idx, newUnitPrice: newUnit})
	}

	return calculation{amount: total, lines: lines}
}

// calcFixedPrice reduces the whole cart to Value: discount = subtotal - Value,
// floored at zero.
func calcFixedPrice(p *Promotion, state []LineItem, subtotal decimal.Decimal) calculation {
	amount := floorAtZero(subtotal.Sub(p.Value))
	return spreadOverCart(state, subtotal, amount)
}

// calcCartLevel applies a percentage or fixed discount against the running
// subtotal. The MaxDiscount cap applies to the percentage form only; a fixed
// amount is already its own cap.
func calcCartLevel(p *Promotion, state []LineItem, subtotal decimal.Decimal) calculation {
	var amount decimal.Decimal
	if p.ValueType == ValuePercentage {
		amount = subtotal.Mul(p.Value).Div(hundred)
		if p.MaxDiscount.IsPositive() && amount.GreaterThan(p.MaxDiscount) {
			amount = p.MaxDiscount
		}
	} else {
		amount = decimal.Min(p.Value, subtotal)
	}
	return spreadOverCart(state, subtotal, floorAtZero(amount))
}

// spreadOverCart distributes a cart-level discount proportionally over every
// line so subsequent promotions in the pass see the reduced prices.
func spreadOverCart(state []LineItem, subtotal, amount decimal.Decimal) calculation {
	if amount.LessThanOrEqual(zero) || !subtotal.IsPositive() {
		return calculation{amount: zero}
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}

	factor := subtotal.Sub(amount).Div(subtotal)
	lines := make([]lineAdjustment, len(state))
	for i, item := range state {
		lines[i] = lineAdjustment{index: i, newUnitPrice: item.UnitPrice.Mul(factor)}
	}
	return calculation{amount: amount, lines: lines}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

func equalCode(a, b string) bool {
	return strings.EqualFold(a, b)
}
