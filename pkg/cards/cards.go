package cards

import (
	"errors"
	"fmt"
	"math/rand"
)

type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// Rank uses the numeric card value; aces are high.
type Rank uint8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

var suitNames = [...]string{"clubs", "diamonds", "hearts", "spades"}

var rankNames = map[Rank]string{
	Jack: "J", Queen: "Q", King: "K", Ace: "A",
}

func (c Card) String() string {
	name, ok := rankNames[c.Rank]
	if !ok {
		name = fmt.Sprintf("%d", c.Rank)
	}
	return fmt.Sprintf("%s of %s", name, suitNames[c.Suit])
}

// ErrExhausted means a draw was attempted on an empty deck. Callers
// must treat this as fatal for the round; running out of cards mid-deal
// is a logic defect, not a recoverable condition.
var ErrExhausted = errors.New("deck is exhausted")

type Deck struct {
	cards []Card
}

// NewDeck returns the 52 cards in canonical order. Call Shuffle before
// dealing.
func NewDeck() *Deck {
	deck := &Deck{cards: make([]Card, 0, 52)}

	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			deck.cards = append(deck.cards, Card{Suit: suit, Rank: rank})
		}
	}

	return deck
}

// Shuffle performs an in-place Fisher-Yates shuffle.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrExhausted
	}

	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]

	return card, nil
}

func (d *Deck) Remaining() int {
	return len(d.cards)
}
