package engine

import (
	"testing"
)

func scenarioEngine() *DamageEngine {
	return NewDamageEngine(NewBondResolver([]BondRecipe{
		{Name: "Vanguard", Cards: []CardType{CardSwordsman, CardArcher}, Damage: 50, Level: 1},
	}))
}

func TestComputeDamage_Empty(t *testing.T) {
	res := scenarioEngine().ComputeDamage(nil, Attacker)
	if res.TotalDamage != 0 {
		t.Fatalf("want 0 damage, got %d", res.TotalDamage)
	}
	if res.ProcessedCards == nil || len(res.ProcessedCards) != 0 {
		t.Fatalf("want empty processed cards, got %v", res.ProcessedCards)
	}
	if res.Bonds == nil || len(res.Bonds) != 0 {
		t.Fatalf("want empty bonds, got %v", res.Bonds)
	}
}

func TestComputeDamage_SimpleBond(t *testing.T) {
	played := []Card{
		{CardID: "1", Type: CardSwordsman, Damage: 5},
		{CardID: "2", Type: CardArcher, Damage: 5},
		{CardID: "3", Type: CardMage, Damage: 8},
	}

	res := scenarioEngine().ComputeDamage(played, Attacker)
	if res.TotalDamage != 58 {
		t.Fatalf("want 58, got %d", res.TotalDamage)
	}
	if len(res.Bonds) != 1 || res.Bonds[0].Name != "Vanguard" {
		t.Fatalf("want [Vanguard], got %v", recipeNames(res.Bonds))
	}
	if len(res.ProcessedCards) != 3 {
		t.Fatalf("want 3 processed cards, got %d", len(res.ProcessedCards))
	}
	if res.Type != Attacker {
		t.Fatalf("want Attacker, got %s", res.Type)
	}
}

// Every copy of an absorbed type is absorbed, not just one.
func TestComputeDamage_DuplicateTypesAbsorbed(t *testing.T) {
	played := []Card{
		{CardID: "1", Type: CardSwordsman, Damage: 5},
		{CardID: "2", Type: CardSwordsman, Damage: 5},
		{CardID: "3", Type: CardArcher, Damage: 5},
	}

	res := scenarioEngine().ComputeDamage(played, Receiver)
	if res.TotalDamage != 50 {
		t.Fatalf("want 50, got %d", res.TotalDamage)
	}
}

func TestComputeDamage_Conservation(t *testing.T) {
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	eng := NewDamageEngine(NewBondResolver(rules.Bonds))
	hands, _ := rules.Deal(testRNG(), 4, 7)

	for i, hand := range hands {
		res := eng.ComputeDamage(hand, Attacker)

		want := 0
		used := map[CardType]bool{}
		for _, b := range res.Bonds {
			want += b.Damage
			for _, typ := range b.Cards {
				used[typ] = true
			}
		}
		for _, c := range hand {
			if !used[c.Type] {
				want += c.Damage
			}
		}
		if res.TotalDamage != want {
			t.Fatalf("hand %d: total %d, want %d", i, res.TotalDamage, want)
		}
	}
}

func TestDamageResult_As(t *testing.T) {
	res := scenarioEngine().ComputeDamage([]Card{{CardID: "1", Type: CardMage, Damage: 8}}, Attacker)
	recv := res.As(Receiver)
	if recv.Type != Receiver || res.Type != Attacker {
		t.Fatalf("As should copy: got %s / %s", res.Type, recv.Type)
	}
	if recv.TotalDamage != res.TotalDamage {
		t.Fatalf("perspective copies must carry the same damage")
	}
}

func TestCompose(t *testing.T) {
	cards := []Card{
		{CardID: "s1", Type: CardSwordsman, Damage: 5},
		{CardID: "s2", Type: CardSwordsman, Damage: 5},
		{CardID: "a1", Type: CardArcher, Damage: 5},
		{CardID: "m1", Type: CardMage, Damage: 8},
	}

	comp := scenarioEngine().Compose(cards)
	if len(comp.Bonds) != 1 {
		t.Fatalf("want 1 bond, got %d", len(comp.Bonds))
	}
	if got := CardIDs(comp.Consumed); len(got) != 2 || got[0] != "s1" || got[1] != "a1" {
		t.Fatalf("consumed %v, want [s1 a1]", got)
	}
	if len(comp.Produced) != 1 {
		t.Fatalf("want one produced card, got %d", len(comp.Produced))
	}
	p := comp.Produced[0]
	if p.Type != CardSwordsman || p.Damage != 50 || p.Level != 1 || p.CardID == "" {
		t.Fatalf("unexpected composed card %+v", p)
	}
}

func TestCompose_NoBond(t *testing.T) {
	comp := scenarioEngine().Compose([]Card{{CardID: "m1", Type: CardMage}})
	if len(comp.Consumed) != 0 || len(comp.Produced) != 0 {
		t.Fatalf("nothing should be composed: %+v", comp)
	}
}
