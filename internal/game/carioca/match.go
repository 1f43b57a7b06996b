package carioca

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"carioca/internal/game"
)

// Status is the lifecycle of a match once the lobby has started it.
type Status string

const (
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Phase is the step within the current player's turn.
type Phase string

const (
	PhaseDraw    Phase = "DRAW"
	PhaseMeld    Phase = "MELD"
	PhaseDiscard Phase = "DISCARD"
)

var (
	_ game.Game         = Carioca{}
	_ game.RoundedMatch = (*Match)(nil)
)

// Carioca implements game.Game.
type Carioca struct {
	Rules Rules
	// NewRand supplies the randomness for each match. Nil means a
	// time-seeded source.
	NewRand func() *rand.Rand
}

func (c Carioca) Info() game.GameInfo {
	return game.GameInfo{
		Name:       "carioca",
		MinPlayers: 2,
		MaxPlayers: c.Rules.MaxPlayers(),
		Rounds:     len(contracts),
	}
}

func (c Carioca) NewMatch(config game.MatchConfig) game.Match {
	var rng *rand.Rand
	if c.NewRand != nil {
		rng = c.NewRand()
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return NewMatch(config.PlayerIDs, c.Rules, rng)
}

// RoundResult records how a round ended.
type RoundResult struct {
	Round     int            `json:"round"` // 1-based
	Contract  Contract       `json:"contract"`
	WinnerID  string         `json:"winnerId"`
	Penalties map[string]int `json:"penalties"`
	Scores    map[string]int `json:"scores"` // cumulative after the round
}

// Match is the authoritative state of one game. It is not safe for
// concurrent use; the owner serializes calls.
type Match struct {
	rules     Rules
	rng       *rand.Rand
	contracts []Contract

	status        Status
	players       []string
	contractIndex int
	turn          string
	phase         Phase

	deck    Pile
	discard Pile
	hands   map[string][]Card
	table   map[string][]Meld

	laidDown     map[string]bool
	laidDownTurn map[string]int
	turnCounter  int

	scores      map[string]int
	roundWinner string
	history     []RoundResult
}

// NewMatch deals the first round. Turn order is the order of playerIDs and
// the first player opens.
func NewMatch(playerIDs []string, rules Rules, rng *rand.Rand) *Match {
	if len(playerIDs) < 2 {
		panic(fmt.Sprintf("carioca: match needs at least 2 players, got %d", len(playerIDs)))
	}
	m := &Match{
		rules:     rules,
		rng:       rng,
		contracts: Contracts(),
		status:    StatusPlaying,
		players:   append([]string(nil), playerIDs...),
		scores:    make(map[string]int, len(playerIDs)),
	}
	for _, p := range m.players {
		m.scores[p] = 0
	}
	m.startRound(m.players[0])
	return m
}

// Apply validates and applies one action. On error the match is unchanged.
func (m *Match) Apply(playerID string, action Action) error {
	if m.status != StatusPlaying {
		return ErrNotPlaying
	}
	if m.turn == "" {
		return ErrNoActiveTurn
	}
	if m.turn != playerID {
		return ErrNotYourTurn
	}

	switch a := action.(type) {
	case DrawDeck:
		if err := m.expectPhase(PhaseDraw); err != nil {
			return err
		}
		return m.drawDeck(playerID)
	case DrawDiscard:
		if err := m.expectPhase(PhaseDraw); err != nil {
			return err
		}
		return m.drawDiscard(playerID)
	case Laydown:
		if err := m.expectPhase(PhaseMeld); err != nil {
			return err
		}
		return m.laydown(playerID, a.Melds)
	case MeldExtra:
		if err := m.expectPhase(PhaseMeld); err != nil {
			return err
		}
		return m.meldExtra(playerID, a.Melds)
	case Layoff:
		if err := m.expectPhase(PhaseMeld); err != nil {
			return err
		}
		return m.layoff(playerID, a.TargetPlayerID, a.MeldID, a.CardIDs)
	case EndMeld:
		if err := m.expectPhase(PhaseMeld); err != nil {
			return err
		}
		m.phase = PhaseDiscard
		return nil
	case Discard:
		if err := m.expectPhase(PhaseDiscard); err != nil {
			return err
		}
		return m.discardCard(playerID, a.CardID)
	default:
		panic(fmt.Sprintf("carioca: unhandled action %T", action))
	}
}

// ApplyAction decodes the wire envelope and applies it.
func (m *Match) ApplyAction(playerID string, action game.Action) error {
	a, err := DecodeAction(action)
	if err != nil {
		return err
	}
	return m.Apply(playerID, a)
}

func (m *Match) expectPhase(p Phase) error {
	if m.phase != p {
		return fmt.Errorf("%w: expected %s, in %s", ErrWrongPhase, p, m.phase)
	}
	return nil
}

func (m *Match) drawDeck(playerID string) error {
	if len(m.deck) == 0 {
		if err := m.reshuffle(); err != nil {
			return err
		}
	}
	card, ok := m.deck.Pop()
	if !ok {
		panic("carioca: deck empty after reshuffle")
	}
	m.takeIntoHand(playerID, card)
	return nil
}

func (m *Match) drawDiscard(playerID string) error {
	card, ok := m.discard.Pop()
	if !ok {
		return ErrDiscardEmpty
	}
	m.takeIntoHand(playerID, card)
	return nil
}

func (m *Match) takeIntoHand(playerID string, c Card) {
	hand := append(m.hands[playerID], c)
	SortHand(hand)
	m.hands[playerID] = hand
	m.phase = PhaseMeld
}

// reshuffle turns every discard but the top into a new deck.
func (m *Match) reshuffle() error {
	if len(m.discard) <= 1 {
		return ErrCannotReshuffle
	}
	top, _ := m.discard.Pop()
	rest := m.discard
	m.discard = Pile{top}
	Shuffle(rest, m.rng)
	m.deck = append(m.deck, rest...)
	return nil
}

// pick resolves ids against the player's hand. It returns the chosen cards
// in request order and the hand without them.
func (m *Match) pick(playerID string, ids []string) (picked, rest []Card, err error) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, nil, fmt.Errorf("%w: %s", ErrCardReused, id)
		}
		seen[id] = true
	}
	hand := m.hands[playerID]
	byID := make(map[string]Card, len(hand))
	for _, c := range hand {
		byID[c.ID] = c
	}
	picked = make([]Card, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrCardNotInHand, id)
		}
		picked = append(picked, c)
	}
	rest = make([]Card, 0, len(hand)-len(picked))
	for _, c := range hand {
		if !seen[c.ID] {
			rest = append(rest, c)
		}
	}
	return picked, rest, nil
}

// buildMelds validates specs against the hand. exact selects lay-down
// cardinality; otherwise sizes are minimums.
func (m *Match) buildMelds(playerID string, specs []MeldSpec, exact bool) (melds []Meld, rest []Card, err error) {
	var ids []string
	for _, spec := range specs {
		if !spec.Kind.valid() {
			return nil, nil, fmt.Errorf("%w: %q", ErrInvalidMeldType, spec.Kind)
		}
		ids = append(ids, spec.CardIDs...)
	}
	if _, rest, err = m.pick(playerID, ids); err != nil {
		return nil, nil, err
	}

	runLength := m.contract().RunLength
	for _, spec := range specs {
		cards, _, err := m.pick(playerID, spec.CardIDs)
		if err != nil {
			return nil, nil, err
		}
		if err := checkMeldSize(spec.Kind, len(cards), runLength, exact); err != nil {
			return nil, nil, err
		}
		if !validMeld(spec.Kind, cards, runLength) {
			return nil, nil, invalidMeld(spec.Kind)
		}
		SortMeld(spec.Kind, cards)
		melds = append(melds, Meld{Kind: spec.Kind, Cards: cards})
	}
	if len(rest) == 0 {
		return nil, nil, ErrMustKeepCard
	}
	// IDs come from the match rng, so mint them only once nothing can fail.
	for i := range melds {
		melds[i].ID = newID(m.rng)
	}
	return melds, rest, nil
}

func checkMeldSize(kind MeldKind, n, runLength int, exact bool) error {
	want := SetLength
	if kind == KindRun {
		want = runLength
	}
	if exact && n != want {
		return fmt.Errorf("%w: %s must be exactly %d cards", ErrMeldSize, kind, want)
	}
	if n < want {
		return fmt.Errorf("%w: %s must be at least %d cards", ErrMeldSize, kind, want)
	}
	return nil
}

func invalidMeld(kind MeldKind) error {
	if kind == KindSet {
		return ErrInvalidSet
	}
	return ErrInvalidRun
}

func (m *Match) laydown(playerID string, specs []MeldSpec) error {
	if m.laidDown[playerID] {
		return ErrAlreadyLaidDown
	}
	c := m.contract()
	sets, runs := 0, 0
	for _, spec := range specs {
		switch spec.Kind {
		case KindSet:
			sets++
		case KindRun:
			runs++
		}
	}
	if sets != c.Sets || runs != c.Runs {
		return fmt.Errorf("%w: contract needs %s", ErrContractMismatch, c)
	}
	melds, rest, err := m.buildMelds(playerID, specs, true)
	if err != nil {
		return err
	}

	m.hands[playerID] = rest
	m.table[playerID] = append(m.table[playerID], melds...)
	m.laidDown[playerID] = true
	m.laidDownTurn[playerID] = m.turnCounter
	return nil
}

func (m *Match) meldExtra(playerID string, specs []MeldSpec) error {
	if err := m.checkLayoffEligible(playerID); err != nil {
		return err
	}
	if len(specs) == 0 {
		return ErrNoMelds
	}
	melds, rest, err := m.buildMelds(playerID, specs, false)
	if err != nil {
		return err
	}
	m.hands[playerID] = rest
	m.table[playerID] = append(m.table[playerID], melds...)
	return nil
}

func (m *Match) layoff(playerID, targetID, meldID string, cardIDs []string) error {
	if err := m.checkLayoffEligible(playerID); err != nil {
		return err
	}
	if _, ok := m.table[targetID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, targetID)
	}
	if !m.laidDown[targetID] {
		return ErrTargetNotLaidDown
	}
	idx := -1
	for i, meld := range m.table[targetID] {
		if meld.ID == meldID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrMeldNotFound, meldID)
	}
	if len(cardIDs) == 0 {
		return ErrNoCards
	}
	added, rest, err := m.pick(playerID, cardIDs)
	if err != nil {
		return err
	}

	target := m.table[targetID][idx]
	next := make([]Card, 0, len(target.Cards)+len(added))
	next = append(next, target.Cards...)
	next = append(next, added...)
	if !validMeld(target.Kind, next, RunLength) {
		return fmt.Errorf("%w after layoff", invalidMeld(target.Kind))
	}
	if len(rest) == 0 {
		return ErrMustKeepCard
	}

	SortMeld(target.Kind, next)
	m.hands[playerID] = rest
	m.table[targetID][idx].Cards = next
	return nil
}

func (m *Match) checkLayoffEligible(playerID string) error {
	if !m.laidDown[playerID] {
		return ErrNotLaidDown
	}
	if !m.CanLayoff(playerID) {
		return ErrLayoffTooEarly
	}
	return nil
}

// CanLayoff reports whether playerID may extend melds now: a full rotation
// of turns must have passed since they laid down.
func (m *Match) CanLayoff(playerID string) bool {
	if !m.laidDown[playerID] {
		return false
	}
	laid, ok := m.laidDownTurn[playerID]
	if !ok {
		return false
	}
	return m.turnCounter-laid >= len(m.players)
}

func (m *Match) discardCard(playerID, cardID string) error {
	hand := m.hands[playerID]
	idx := -1
	for i, c := range hand {
		if c.ID == cardID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCardNotInHand, cardID)
	}
	card := hand[idx]
	rest := make([]Card, 0, len(hand)-1)
	rest = append(rest, hand[:idx]...)
	rest = append(rest, hand[idx+1:]...)
	m.hands[playerID] = rest
	m.discard.Push(card)

	if len(rest) == 0 {
		m.endRound(playerID)
	} else {
		m.advanceTurn()
	}
	return nil
}

func (m *Match) advanceTurn() {
	m.turnCounter++
	m.turn = m.players[(m.seatOf(m.turn)+1)%len(m.players)]
	m.phase = PhaseDraw
}

func (m *Match) seatOf(playerID string) int {
	for i, p := range m.players {
		if p == playerID {
			return i
		}
	}
	panic(fmt.Sprintf("carioca: %s is not seated", playerID))
}

func (m *Match) contract() Contract {
	return m.contracts[m.contractIndex]
}

func (m *Match) endRound(winnerID string) {
	m.roundWinner = winnerID
	penalties := make(map[string]int, len(m.players))
	for _, p := range m.players {
		if p == winnerID {
			penalties[p] = 0
			continue
		}
		pts := HandPoints(m.hands[p])
		penalties[p] = pts
		m.scores[p] += pts
	}
	m.history = append(m.history, RoundResult{
		Round:     m.contractIndex + 1,
		Contract:  m.contract(),
		WinnerID:  winnerID,
		Penalties: penalties,
		Scores:    copyScores(m.scores),
	})

	if m.contractIndex >= len(m.contracts)-1 {
		m.status = StatusFinished
		m.turn = ""
		m.phase = PhaseDraw
		return
	}
	m.contractIndex++
	m.startRound(winnerID)
}

// startRound deals a fresh round under the current contract.
func (m *Match) startRound(openerID string) {
	m.turnCounter = 0
	m.deck = NewDeck(DecksFor(len(m.players)), m.rng)
	m.discard = nil
	m.hands = make(map[string][]Card, len(m.players))
	m.table = make(map[string][]Meld, len(m.players))
	m.laidDown = make(map[string]bool, len(m.players))
	m.laidDownTurn = make(map[string]int, len(m.players))
	for _, p := range m.players {
		m.hands[p] = make([]Card, 0, m.rules.HandSize+1)
		m.table[p] = nil
		m.laidDown[p] = false
	}

	for i := 0; i < m.rules.HandSize; i++ {
		for _, p := range m.players {
			m.hands[p] = append(m.hands[p], m.mustPop())
		}
	}
	for _, p := range m.players {
		SortHand(m.hands[p])
	}

	m.discard.Push(m.firstDiscard())
	m.turn = openerID
	m.phase = PhaseDraw
}

// firstDiscard turns up a card, sending jokers to the bottom of the deck up
// to FirstDiscardRetries times before accepting whatever comes next.
func (m *Match) firstDiscard() Card {
	for i := 0; i < m.rules.FirstDiscardRetries; i++ {
		c := m.mustPop()
		if !c.Joker {
			return c
		}
		m.deck.PushBottom(c)
	}
	return m.mustPop()
}

func (m *Match) mustPop() Card {
	c, ok := m.deck.Pop()
	if !ok {
		panic("carioca: deal from empty deck")
	}
	return c
}

func (m *Match) IsOver() bool {
	return m.status == StatusFinished
}

// Results ranks players by ascending penalty total. Ties share a rank.
func (m *Match) Results() []game.PlayerResult {
	if !m.IsOver() {
		return nil
	}
	out := make([]game.PlayerResult, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, game.PlayerResult{PlayerID: p, Score: m.scores[p]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

// ValidActions lists the action types playerID may submit now. Payloads
// are left empty.
func (m *Match) ValidActions(playerID string) []game.Action {
	if m.status != StatusPlaying || m.turn != playerID {
		return nil
	}
	var types []ActionType
	switch m.phase {
	case PhaseDraw:
		if len(m.deck) > 0 || len(m.discard) > 1 {
			types = append(types, ActionDrawDeck)
		}
		if len(m.discard) > 0 {
			types = append(types, ActionDrawDiscard)
		}
	case PhaseMeld:
		if !m.laidDown[playerID] {
			types = append(types, ActionLaydown)
		}
		if m.CanLayoff(playerID) {
			types = append(types, ActionMeldExtra, ActionLayoff)
		}
		types = append(types, ActionEndMeld)
	case PhaseDiscard:
		types = append(types, ActionDiscard)
	}
	out := make([]game.Action, len(types))
	for i, t := range types {
		out[i] = game.Action{Type: string(t)}
	}
	return out
}

// Status, Turn, Phase and Hand are read accessors for the owner.

func (m *Match) Status() Status { return m.status }
func (m *Match) Turn() string   { return m.turn }
func (m *Match) Phase() Phase   { return m.phase }

// Hand returns a copy of playerID's hand.
func (m *Match) Hand(playerID string) []Card {
	return append([]Card(nil), m.hands[playerID]...)
}

// Rounds returns the results of every finished round.
func (m *Match) Rounds() []RoundResult {
	out := make([]RoundResult, len(m.history))
	for i, r := range m.history {
		r.Penalties = copyScores(r.Penalties)
		r.Scores = copyScores(r.Scores)
		out[i] = r
	}
	return out
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
