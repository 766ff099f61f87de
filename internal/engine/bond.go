package engine

import "sort"

// BondRecipe is a named combination of card types that grants bonus damage
// when every member type is present in one played batch.
type BondRecipe struct {
	Name   string     `json:"Name"`
	Cards  []CardType `json:"Cards"`
	Damage int        `json:"Damage"`
	Level  int        `json:"Level"`
}

// BondResolver greedily picks the highest-damage, type-disjoint set of bonds.
type BondResolver struct {
	recipes []BondRecipe
}

// NewBondResolver orders recipes by damage, highest first. Equal damage keeps
// declaration order.
func NewBondResolver(recipes []BondRecipe) *BondResolver {
	sorted := make([]BondRecipe, len(recipes))
	copy(sorted, recipes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Damage > sorted[j].Damage })
	return &BondResolver{recipes: sorted}
}

func (r *BondResolver) Recipes() []BondRecipe {
	out := make([]BondRecipe, len(r.recipes))
	copy(out, r.recipes)
	return out
}

// Resolve returns the accepted bonds in acceptance order.
//
// Availability is a set of type names, not a multiset: one copy of a type
// satisfies a recipe that lists it twice. A type consumed by an accepted bond
// is unavailable to every later recipe in the same pass.
func (r *BondResolver) Resolve(types []CardType) []BondRecipe {
	available := make(map[CardType]struct{}, len(types))
	for _, t := range types {
		available[t] = struct{}{}
	}

	accepted := make([]BondRecipe, 0)
	for _, recipe := range r.recipes {
		if !satisfied(recipe, available) {
			continue
		}
		accepted = append(accepted, recipe)
		for _, t := range recipe.Cards {
			delete(available, t)
		}
	}
	return accepted
}

func satisfied(recipe BondRecipe, available map[CardType]struct{}) bool {
	for _, t := range recipe.Cards {
		if _, ok := available[t]; !ok {
			return false
		}
	}
	return true
}
