package carioca

import "fmt"

// Rules holds the tunable constants of a game. The contract sequence itself
// is fixed.
type Rules struct {
	// HandSize is the number of cards dealt to each player per round.
	HandSize int `json:"hand_size"`
	// FirstDiscardRetries bounds how many jokers may be skipped when turning
	// up the first discard of a round.
	FirstDiscardRetries int `json:"first_discard_retries"`
}

// DefaultRules deals 12 cards and skips up to 10 jokers for the first discard.
func DefaultRules() Rules {
	return Rules{HandSize: 12, FirstDiscardRetries: 10}
}

// MaxPlayers is the largest table the largest deck can deal to, keeping one
// card back for the first discard.
func (r Rules) MaxPlayers() int {
	if r.HandSize <= 0 {
		return 0
	}
	return (DecksFor(3)*cardsPerDeck - 1) / r.HandSize
}

// Validate rejects rules that could exhaust the deck while dealing.
func (r Rules) Validate() error {
	if r.HandSize < 1 {
		return fmt.Errorf("hand size must be positive, got %d", r.HandSize)
	}
	if 2*r.HandSize+1 > DecksFor(2)*cardsPerDeck {
		return fmt.Errorf("hand size %d too large for a two-player deck", r.HandSize)
	}
	if r.MaxPlayers() < 3 {
		return fmt.Errorf("hand size %d leaves room for fewer than 3 players", r.HandSize)
	}
	if r.FirstDiscardRetries < 0 {
		return fmt.Errorf("first discard retries must not be negative, got %d", r.FirstDiscardRetries)
	}
	return nil
}
