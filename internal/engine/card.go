package engine

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

var ErrUnknownCardType = errors.New("unknown card type")

type CardType string

const (
	CardSwordsman CardType = "Swordsman"
	CardArcher    CardType = "Archer"
	CardMage      CardType = "Mage"
	CardKnight    CardType = "Knight"
	CardPriest    CardType = "Priest"
	CardAssassin  CardType = "Assassin"
	CardDragon    CardType = "Dragon"
)

var cardTypes = []CardType{
	CardSwordsman,
	CardArcher,
	CardMage,
	CardKnight,
	CardPriest,
	CardAssassin,
	CardDragon,
}

// CardTypes lists every card kind the game knows about.
func CardTypes() []CardType {
	out := make([]CardType, len(cardTypes))
	copy(out, cardTypes)
	return out
}

func (t CardType) Valid() bool {
	for _, known := range cardTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Card is the wire shape of a card: {CardID, Type, Damage, TargetName, Level}.
type Card struct {
	CardID     string   `json:"CardID"`
	Type       CardType `json:"Type"`
	Damage     int      `json:"Damage"`
	TargetName string   `json:"TargetName,omitempty"`
	Level      int      `json:"Level"`
}

func NewCardID() string {
	return uuid.NewString()
}

// Hand is a set of cards keyed by CardID.
type Hand map[string]Card

func NewHand(cards ...Card) Hand {
	h := make(Hand, len(cards))
	for _, c := range cards {
		h[c.CardID] = c
	}
	return h
}

func (h Hand) Add(cards ...Card) {
	for _, c := range cards {
		h[c.CardID] = c
	}
}

// Remove deletes the given card IDs and returns the cards that were actually held.
func (h Hand) Remove(ids ...string) []Card {
	removed := make([]Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := h[id]; ok {
			removed = append(removed, c)
			delete(h, id)
		}
	}
	return removed
}

func (h Hand) Has(id string) bool {
	_, ok := h[id]
	return ok
}

// Cards returns the hand ordered by CardID so snapshots are stable.
func (h Hand) Cards() []Card {
	out := make([]Card, 0, len(h))
	for _, c := range h {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out
}

func CardIDs(cards []Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.CardID
	}
	return ids
}

func typeNames(cards []Card) []CardType {
	out := make([]CardType, len(cards))
	for i, c := range cards {
		out[i] = c.Type
	}
	return out
}
