package carioca

import (
	"fmt"
	"strconv"
)

// Suit is one of the four French suits. The zero value marks a joker.
type Suit string

const (
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
)

// Suits lists the suits in sort order.
var Suits = [...]Suit{Spades, Hearts, Diamonds, Clubs}

func (s Suit) order() int {
	switch s {
	case Spades:
		return 0
	case Hearts:
		return 1
	case Diamonds:
		return 2
	case Clubs:
		return 3
	default:
		return 4
	}
}

// Rank runs from Ace (1) to King (13). There is no high ace.
type Rank int

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return strconv.Itoa(int(r))
	}
}

// Card is an immutable card instance. IDs are unique even across the
// duplicate cards of a second physical deck.
type Card struct {
	ID    string `json:"id"`
	Joker bool   `json:"isJoker"`
	Suit  Suit   `json:"suit,omitempty"`
	Rank  Rank   `json:"rank,omitempty"`
}

func (c Card) String() string {
	if c.Joker {
		return "JOKER"
	}
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Points is the penalty value of a card left in hand at round end.
func Points(c Card) int {
	switch {
	case c.Joker:
		return 30
	case c.Rank == Ace:
		return 20
	case c.Rank >= 2 && c.Rank <= 10:
		return int(c.Rank)
	default:
		return 10
	}
}

// HandPoints sums Points over cards.
func HandPoints(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += Points(c)
	}
	return total
}

// Pile is a stack of cards; the top is the last element.
type Pile []Card

// Pop removes and returns the top card.
func (p *Pile) Pop() (Card, bool) {
	n := len(*p)
	if n == 0 {
		return Card{}, false
	}
	c := (*p)[n-1]
	*p = (*p)[:n-1]
	return c, true
}

// Push places c on top.
func (p *Pile) Push(c Card) {
	*p = append(*p, c)
}

// PushBottom places c under every other card.
func (p *Pile) PushBottom(c Card) {
	*p = append(Pile{c}, *p...)
}

// Top returns the top card without removing it.
func (p Pile) Top() (Card, bool) {
	if len(p) == 0 {
		return Card{}, false
	}
	return p[len(p)-1], true
}
