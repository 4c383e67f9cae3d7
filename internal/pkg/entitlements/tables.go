package entitlements

import "strings"

// Tables holds the static pricing configuration: action costs, tier
// allowances and the billing product to tier mapping. A Tables value is
// never mutated after construction.
type Tables struct {
	costs      map[Action]int
	allowances map[Tier]int
	products   map[string]Tier
}

// NewTables copies the given maps into an immutable Tables value.
func NewTables(costs map[Action]int, allowances map[Tier]int, products map[string]Tier) *Tables {
	t := &Tables{
		costs:      make(map[Action]int, len(costs)),
		allowances: make(map[Tier]int, len(allowances)),
		products:   make(map[string]Tier, len(products)),
	}
	for k, v := range costs {
		t.costs[k] = v
	}
	for k, v := range allowances {
		t.allowances[k] = v
	}
	for k, v := range products {
		t.products[strings.TrimSpace(k)] = v
	}
	return t
}

// DefaultTables returns the production pricing.
func DefaultTables() *Tables {
	return NewTables(DefaultCosts(), DefaultAllowances(), DefaultProducts())
}

// DefaultCosts is the credit cost of each paid action.
func DefaultCosts() map[Action]int {
	return map[Action]int{
		ActionAvatar:  95,
		ActionVideo:   55,
		ActionCombine: 25,
	}
}

// DefaultAllowances is the monthly credit allowance per tier.
func DefaultAllowances() map[Tier]int {
	return map[Tier]int{
		TierFree:       250,
		TierPro:        2000,
		TierBusiness:   5000,
		TierCorporate:  10000,
		TierEnterprise: UnlimitedCredits,
	}
}

// DefaultProducts maps Polar product ids to tiers.
func DefaultProducts() map[string]Tier {
	return map[string]Tier{
		"4ca665cb-283c-46f2-9197-6ca2d162b9fd": TierFree,
		"b8782531-38b4-4bee-8186-d7a777ba3d85": TierPro,
		"435e232e-1240-452c-bf01-f1ee9f15976b": TierBusiness,
		"ec3ce22d-57f8-45ff-a11f-0953ca4003a5": TierCorporate,
	}
}

// Cost returns the credit cost of an action and whether the action is priced.
func (t *Tables) Cost(a Action) (int, bool) {
	c, ok := t.costs[a]
	return c, ok
}

// Costs returns a copy of the cost table.
func (t *Tables) Costs() map[Action]int {
	out := make(map[Action]int, len(t.costs))
	for k, v := range t.costs {
		out[k] = v
	}
	return out
}

// Allowance returns the raw allowance of a tier, including the unlimited
// sentinel. Unknown tiers get the free allowance.
func (t *Tables) Allowance(tier Tier) int {
	if v, ok := t.allowances[tier]; ok {
		return v
	}
	return t.allowances[TierFree]
}

// IsUnlimited reports whether the tier carries the unlimited sentinel.
func (t *Tables) IsUnlimited(tier Tier) bool {
	return t.Allowance(tier) == UnlimitedCredits
}

// StoredAllowance is the balance written on a reset. The unlimited sentinel
// is translated to UnlimitedBalance.
func (t *Tables) StoredAllowance(tier Tier) int {
	a := t.Allowance(tier)
	if a == UnlimitedCredits {
		return UnlimitedBalance
	}
	return a
}

// TierForProduct resolves a billing product id. Unknown products map to free.
func (t *Tables) TierForProduct(productID string) Tier {
	if tier, ok := t.products[strings.TrimSpace(productID)]; ok {
		return tier
	}
	return TierFree
}

// ProductForTier returns the first product id mapped to tier.
func (t *Tables) ProductForTier(tier Tier) (string, bool) {
	for id, tr := range t.products {
		if tr == tier {
			return id, true
		}
	}
	return "", false
}
