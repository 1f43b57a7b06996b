package carioca

import (
	"math/rand"
	"testing"
)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func newTestMatch(t *testing.T, players ...string) *Match {
	t.Helper()
	return NewMatch(players, DefaultRules(), seeded(42))
}

func normal(id string, r Rank, s Suit) Card {
	return Card{ID: id, Suit: s, Rank: r}
}

func joker(id string) Card {
	return Card{ID: id, Joker: true}
}

func idsOf(cards ...Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

// rig puts playerID on turn in phase with exactly hand.
func rig(m *Match, playerID string, phase Phase, hand ...Card) {
	m.turn = playerID
	m.phase = phase
	m.hands[playerID] = append([]Card(nil), hand...)
}

// allCardIDs collects every card the match holds, wherever it is.
func allCardIDs(m *Match) []string {
	var ids []string
	for _, c := range m.deck {
		ids = append(ids, c.ID)
	}
	for _, c := range m.discard {
		ids = append(ids, c.ID)
	}
	for _, p := range m.players {
		for _, c := range m.hands[p] {
			ids = append(ids, c.ID)
		}
		for _, meld := range m.table[p] {
			for _, c := range meld.Cards {
				ids = append(ids, c.ID)
			}
		}
	}
	return ids
}

type snapshot struct {
	public PublicView
	hands  map[string][]Card
}

func snap(m *Match) snapshot {
	s := snapshot{public: m.Public(), hands: make(map[string][]Card)}
	for _, p := range m.players {
		s.hands[p] = m.Hand(p)
	}
	return s
}
