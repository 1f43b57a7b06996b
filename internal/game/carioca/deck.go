package carioca

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

const (
	jokersPerDeck = 2
	cardsPerDeck  = 52 + jokersPerDeck
)

// BuildDeck returns numDecks physical decks plus their jokers, unshuffled.
// IDs are drawn from rng so a seeded source replays the same deck.
func BuildDeck(numDecks int, rng *rand.Rand) []Card {
	cards := make([]Card, 0, numDecks*cardsPerDeck)
	for d := 0; d < numDecks; d++ {
		for _, s := range Suits {
			for r := Ace; r <= King; r++ {
				cards = append(cards, Card{ID: newID(rng), Suit: s, Rank: r})
			}
		}
		for j := 0; j < jokersPerDeck; j++ {
			cards = append(cards, Card{ID: newID(rng), Joker: true})
		}
	}
	if want := numDecks * cardsPerDeck; len(cards) != want {
		panic(fmt.Sprintf("carioca: BuildDeck(%d) produced %d cards, expected %d", numDecks, len(cards), want))
	}
	return cards
}

// Shuffle permutes cards in place (Fisher-Yates).
func Shuffle(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// NewDeck builds and shuffles a draw pile.
func NewDeck(numDecks int, rng *rand.Rand) Pile {
	cards := BuildDeck(numDecks, rng)
	Shuffle(cards, rng)
	return Pile(cards)
}

// DecksFor is the deck sizing policy: two players share one physical deck,
// three or more use two.
func DecksFor(players int) int {
	if players <= 2 {
		return 1
	}
	return 2
}

func newID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		panic(fmt.Sprintf("carioca: generate id: %v", err))
	}
	return id.String()
}
