package carioca

import "carioca/internal/game"

// PublicView is what every member of the session sees. It carries hand
// sizes, never hand contents.
type PublicView struct {
	Status          Status            `json:"status"`
	ContractIndex   int               `json:"contractIndex"`
	ContractsTotal  int               `json:"contractsTotal"`
	CurrentContract Contract          `json:"currentContract"`
	Scores          map[string]int    `json:"scores"`
	RoundWinnerID   string            `json:"roundWinnerId,omitempty"`
	TurnPlayerID    string            `json:"turnPlayerId,omitempty"`
	Phase           Phase             `json:"phase"`
	TurnCounter     int               `json:"turnCounter"`
	DeckCount       int               `json:"deckCount"`
	TopDiscard      *Card             `json:"topDiscard,omitempty"`
	HandsCount      map[string]int    `json:"handsCount"`
	Table           map[string][]Meld `json:"table"`
	HasLaidDown     map[string]bool   `json:"hasLaidDown"`
	CanLayoff       map[string]bool   `json:"canLayoff"`
	Rounds          []RoundResult     `json:"rounds"`
}

// PrivateView is one player's hand.
type PrivateView struct {
	PlayerID string `json:"playerId"`
	Hand     []Card `json:"hand"`
}

// Public builds a fresh public projection. The result shares no memory
// with the match.
func (m *Match) Public() PublicView {
	v := PublicView{
		Status:          m.status,
		ContractIndex:   m.contractIndex,
		ContractsTotal:  len(m.contracts),
		CurrentContract: m.contract(),
		Scores:          copyScores(m.scores),
		RoundWinnerID:   m.roundWinner,
		TurnPlayerID:    m.turn,
		Phase:           m.phase,
		TurnCounter:     m.turnCounter,
		DeckCount:       len(m.deck),
		HandsCount:      make(map[string]int, len(m.players)),
		Table:           make(map[string][]Meld, len(m.players)),
		HasLaidDown:     make(map[string]bool, len(m.players)),
		CanLayoff:       make(map[string]bool, len(m.players)),
		Rounds:          m.Rounds(),
	}
	if top, ok := m.discard.Top(); ok {
		v.TopDiscard = &top
	}
	for _, p := range m.players {
		v.HandsCount[p] = len(m.hands[p])
		v.HasLaidDown[p] = m.laidDown[p]
		v.CanLayoff[p] = m.CanLayoff(p)
		melds := make([]Meld, len(m.table[p]))
		for i, meld := range m.table[p] {
			meld.Cards = append([]Card(nil), meld.Cards...)
			melds[i] = meld
		}
		v.Table[p] = melds
	}
	return v
}

// Private builds playerID's hand projection.
func (m *Match) Private(playerID string) PrivateView {
	hand := m.Hand(playerID)
	if hand == nil {
		hand = []Card{}
	}
	return PrivateView{PlayerID: playerID, Hand: hand}
}

func (m *Match) PublicState() any {
	return m.Public()
}

func (m *Match) PrivateState(playerID string) any {
	return m.Private(playerID)
}

// RoundSummaries reports finished rounds in play order.
func (m *Match) RoundSummaries() []game.RoundSummary {
	out := make([]game.RoundSummary, len(m.history))
	for i, r := range m.Rounds() {
		out[i] = game.RoundSummary{
			Round:     r.Round,
			Label:     r.Contract.String(),
			WinnerID:  r.WinnerID,
			Penalties: r.Penalties,
			Scores:    r.Scores,
		}
	}
	return out
}
