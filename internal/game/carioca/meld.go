package carioca

import "sort"

// MeldKind is SET (same rank) or RUN (same suit, consecutive ranks).
type MeldKind string

const (
	KindSet MeldKind = "SET"
	KindRun MeldKind = "RUN"
)

func (k MeldKind) valid() bool { return k == KindSet || k == KindRun }

// Meld is a group of cards face-up on a player's table.
type Meld struct {
	ID    string   `json:"id"`
	Kind  MeldKind `json:"type"`
	Cards []Card   `json:"cards"`
}

// MeldSpec is a player's request to form a meld from cards in hand.
type MeldSpec struct {
	Kind    MeldKind `json:"type"`
	CardIDs []string `json:"cardIds"`
}

// maxJokersPerMeld caps wildcards in any single set or run.
const maxJokersPerMeld = 1

func splitJokers(cards []Card) (normals []Card, jokers int) {
	normals = make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.Joker {
			jokers++
			continue
		}
		normals = append(normals, c)
	}
	return normals, jokers
}

// IsValidSet reports whether cards form a set: three or more cards of one
// rank with at most one joker. Suits may repeat.
func IsValidSet(cards []Card) bool {
	if len(cards) < 3 {
		return false
	}
	normals, jokers := splitJokers(cards)
	if jokers > maxJokersPerMeld || len(normals) == 0 {
		return false
	}
	for _, c := range normals[1:] {
		if c.Rank != normals[0].Rank {
			return false
		}
	}
	return true
}

// IsValidRun reports whether cards form a run of at least minLength: one
// suit, distinct ranks, and rank gaps no larger than the joker count. The
// ace is always low.
func IsValidRun(cards []Card, minLength int) bool {
	if len(cards) < minLength {
		return false
	}
	normals, jokers := splitJokers(cards)
	if jokers > maxJokersPerMeld || len(normals) == 0 {
		return false
	}
	ranks := make([]int, 0, len(normals))
	for _, c := range normals {
		if c.Suit != normals[0].Suit {
			return false
		}
		ranks = append(ranks, int(c.Rank))
	}
	sort.Ints(ranks)

	gaps := 0
	for i := 1; i < len(ranks); i++ {
		diff := ranks[i] - ranks[i-1]
		if diff == 0 {
			return false
		}
		gaps += diff - 1
	}
	return gaps <= jokers
}

func validMeld(kind MeldKind, cards []Card, runLength int) bool {
	if kind == KindSet {
		return IsValidSet(cards)
	}
	return IsValidRun(cards, runLength)
}
