package carioca

import "sort"

// jokersFirst orders jokers before normal cards and jokers among themselves
// by ID. decided is false when both cards are normal.
func jokersFirst(a, b Card) (less, decided bool) {
	switch {
	case a.Joker && b.Joker:
		return a.ID < b.ID, true
	case a.Joker:
		return true, true
	case b.Joker:
		return false, true
	}
	return false, false
}

func byRank(a, b Card) bool {
	if less, ok := jokersFirst(a, b); ok {
		return less
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	if a.Suit != b.Suit {
		return a.Suit.order() < b.Suit.order()
	}
	return a.ID < b.ID
}

func bySuit(a, b Card) bool {
	if less, ok := jokersFirst(a, b); ok {
		return less
	}
	if a.Suit != b.Suit {
		return a.Suit.order() < b.Suit.order()
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.ID < b.ID
}

// SortHand orders a hand in place: jokers, then rank, then suit.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool { return byRank(cards[i], cards[j]) })
}

// SortMeld orders meld cards in place. Sets group by suit, runs by rank.
func SortMeld(kind MeldKind, cards []Card) {
	less := byRank
	if kind == KindSet {
		less = bySuit
	}
	sort.Slice(cards, func(i, j int) bool { return less(cards[i], cards[j]) })
}
