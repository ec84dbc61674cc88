package main

import "math/rand"

// A standard table deck: four suits of thirteen ranks plus two jokers.
const deckSize = 54

const (
	sideFront = "front"
	sideBack  = "back"
)

// Card is one card on the table. Index, Suit and Rank are assigned once at
// deck creation and never change; X, Y, Rot and Side are presentation state
// owned by whichever client touched the card last.
type Card struct {
	Index int     `json:"i"`
	Suit  int     `json:"suit"` // 0-3 for suits, 4 for jokers
	Rank  int     `json:"rank"` // 1-13
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Rot   float64 `json:"rot"`
	Side  string  `json:"side"`
}

// newDeck builds the canonical 54-card deck, face down, with each card
// offset slightly from the previous one so they land in a loose stack.
func newDeck() []*Card {
	deck := make([]*Card, deckSize)
	for i := range deck {
		deck[i] = &Card{
			Index: i,
			Suit:  i / 13,
			Rank:  i%13 + 1,
			X:     float64(i) * 0.25,
			Y:     float64(i) * 0.25,
			Rot:   0,
			Side:  sideBack,
		}
	}
	return deck
}

// shuffleDeck permutes the deck in place with a Fisher-Yates shuffle. Card
// identity travels with the card object; only the slot order changes.
// Coordinates are reassigned by the caller before the deck goes out.
func shuffleDeck(deck []*Card) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}
