package promotion

// resolveTargets returns the indexes of items matching the target spec, in order.
func resolveTargets(spec TargetSpec, items []LineItem) []int {
	var idx []int
	for i, item := range items {
		if spec.Matches(item) {
			idx = append(idx, i)
		}
	}
	return idx
}

// bogoTargets holds the independently resolved buy and get item indexes of a
// BOGO promotion.
type bogoTargets struct {
	buy []int
	get []int
}

func resolveBOGOTargets(p *Promotion, items []LineItem) bogoTargets {
	return bogoTargets{
		buy: resolveTargets(p.BuyTarget, items),
		get: resolveTargets(p.GetTarget, items),
	}
}

// overlaps reports whether the buy and get sets share any item. When they do,
// units counted toward the buy threshold come from the same pool the free
// units are granted from, which changes the free-unit arithmetic.
func (t bogoTargets) overlaps() bool {
	seen := make(map[int]struct{}, len(t.buy))
	for _, i := range t.buy {
		seen[i] = struct{}{}
	}
	for _, i := range t.get {
		if _, ok := seen[i]; ok {
			return true
		}
	}
	return false
}
