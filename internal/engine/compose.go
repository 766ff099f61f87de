package engine

// Composition is the outcome of merging cards through bonds: which submitted
// cards were consumed and which new cards replace them.
type Composition struct {
	Bonds    []BondRecipe
	Consumed []Card
	Produced []Card
}

// Compose resolves bonds over the submitted cards. Each accepted bond consumes
// one submitted card per distinct member type and produces a single card of the
// bond's first member type carrying the bond's damage and level.
func (e *DamageEngine) Compose(cards []Card) Composition {
	out := Composition{Bonds: []BondRecipe{}, Consumed: []Card{}, Produced: []Card{}}
	if len(cards) == 0 {
		return out
	}

	taken := make([]bool, len(cards))
	for _, b := range e.bonds.Resolve(typeNames(cards)) {
		out.Bonds = append(out.Bonds, b)
		seen := make(map[CardType]bool, len(b.Cards))
		for _, t := range b.Cards {
			if seen[t] {
				continue
			}
			seen[t] = true
			for i, c := range cards {
				if !taken[i] && c.Type == t {
					taken[i] = true
					out.Consumed = append(out.Consumed, c)
					break
				}
			}
		}
		out.Produced = append(out.Produced, Card{
			CardID: NewCardID(),
			Type:   b.Cards[0],
			Damage: b.Damage,
			Level:  b.Level,
		})
	}
	return out
}
