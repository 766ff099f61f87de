package engine

type Perspective string

const (
	Attacker Perspective = "Attacker"
	Receiver Perspective = "Receiver"
)

// DamageResult is one damage event. The same result is sent to the acting
// player as Attacker and to every other occupant as Receiver.
type DamageResult struct {
	TotalDamage    int          `json:"TotalDamage"`
	ProcessedCards []Card       `json:"ProcessedCards"`
	Type           Perspective  `json:"Type"`
	Bonds          []BondRecipe `json:"Bonds"`
}

// As returns a copy of the result addressed from the given perspective.
func (d DamageResult) As(p Perspective) DamageResult {
	d.Type = p
	return d
}

type DamageEngine struct {
	bonds *BondResolver
}

func NewDamageEngine(bonds *BondResolver) *DamageEngine {
	return &DamageEngine{bonds: bonds}
}

// ComputeDamage sums triggered bond damage plus the base damage of every
// played card whose type was not absorbed into a bond.
func (e *DamageEngine) ComputeDamage(played []Card, p Perspective) DamageResult {
	if len(played) == 0 {
		return DamageResult{ProcessedCards: []Card{}, Type: p, Bonds: []BondRecipe{}}
	}

	bonds := e.bonds.Resolve(typeNames(played))

	total := 0
	used := make(map[CardType]struct{})
	for _, b := range bonds {
		total += b.Damage
		for _, t := range b.Cards {
			used[t] = struct{}{}
		}
	}
	for _, c := range played {
		if _, absorbed := used[c.Type]; !absorbed {
			total += c.Damage
		}
	}

	processed := make([]Card, len(played))
	copy(processed, played)
	return DamageResult{
		TotalDamage:    total,
		ProcessedCards: processed,
		Type:           p,
		Bonds:          bonds,
	}
}
