package engine

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

//go:embed rules.json
var defaultRulesJSON []byte

var ErrInvalidRules = errors.New("invalid rules")

// CardDef configures one card kind: how many copies go into a shared deck and
// the base stats every copy is dealt with.
type CardDef struct {
	Type   CardType `json:"Type"`
	Count  int      `json:"Count"`
	Damage int      `json:"Damage"`
	Level  int      `json:"Level"`
}

// Rules is the immutable game configuration loaded once at startup.
type Rules struct {
	Cards []CardDef    `json:"Cards"`
	Bonds []BondRecipe `json:"Bonds"`
}

// DefaultRules returns the rule set embedded in the binary.
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRulesJSON)
}

// LoadRules reads a rules file, or the embedded defaults when path is empty.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r Rules) Validate() error {
	seen := make(map[CardType]bool, len(r.Cards))
	for _, def := range r.Cards {
		if !def.Type.Valid() {
			return fmt.Errorf("%w: card %q: %w", ErrInvalidRules, def.Type, ErrUnknownCardType)
		}
		if seen[def.Type] {
			return fmt.Errorf("%w: card %q defined twice", ErrInvalidRules, def.Type)
		}
		if def.Count < 0 {
			return fmt.Errorf("%w: card %q has negative count", ErrInvalidRules, def.Type)
		}
		seen[def.Type] = true
	}
	for _, b := range r.Bonds {
		if b.Name == "" {
			return fmt.Errorf("%w: bond without name", ErrInvalidRules)
		}
		if len(b.Cards) == 0 {
			return fmt.Errorf("%w: bond %q has no cards", ErrInvalidRules, b.Name)
		}
		for _, t := range b.Cards {
			if !t.Valid() {
				return fmt.Errorf("%w: bond %q: card %q: %w", ErrInvalidRules, b.Name, t, ErrUnknownCardType)
			}
		}
	}
	return nil
}

// LoadConfiguration returns the card-frequency table: type -> copies per deck.
func (r Rules) LoadConfiguration() map[CardType]int {
	freq := make(map[CardType]int, len(r.Cards))
	for _, def := range r.Cards {
		freq[def.Type] = def.Count
	}
	return freq
}

func (r Rules) def(t CardType) (CardDef, bool) {
	for _, d := range r.Cards {
		if d.Type == t {
			return d, true
		}
	}
	return CardDef{}, false
}

// NewCard mints a card of the given type with a fresh ID and its configured stats.
func (r Rules) NewCard(t CardType) Card {
	d, _ := r.def(t)
	return Card{CardID: NewCardID(), Type: t, Damage: d.Damage, Level: d.Level}
}
