package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"carioca/internal/game"
	"carioca/internal/storage"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

const (
	sendBuffer     = 64
	maxReactions   = 30
	tokenCacheSize = 256
)

var (
	ErrNotInLobby       = errors.New("session already started")
	ErrFull             = errors.New("session is full")
	ErrNotHost          = errors.New("only the host can start")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrNotPlaying       = errors.New("session is not playing")
	ErrUnknownPlayer    = errors.New("player not in session")
	ErrInvalidReaction  = errors.New("invalid reaction")
	ErrClosed           = errors.New("session closed")
	ErrUnknownStatus    = errors.New("unknown session status")
)

// Reactions are the phrases players may send to the table.
var Reactions = []string{
	"Excelente jugada!",
	"Buen intento 😅",
	"¡Noooo!",
	"Te estás tardando en jugar ⏳",
	"Dale, apúrate 🙏",
	"GG",
	"Jajaja 😂",
	"Suerte 🍀",
}

// Player is a seat in the session. Seats are never removed; a dropped
// socket only clears Connected.
type Player struct {
	ID   string
	Name string
	// Secret is handed only to the joiner and proves the seat on reconnect.
	Secret    string
	Connected bool
	Send      chan []byte // outbound messages
}

// Reaction is one chat message.
type Reaction struct {
	ID       string    `json:"id"`
	At       time.Time `json:"ts"`
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
}

// Ledger keeps the parts of a session that outlive it.
type Ledger interface {
	UpdateSessionStatus(code, status string) error
	RecordRound(r storage.RoundRow) error
}

type request struct {
	playerID string
	token    string
	action   game.Action
	reply    chan error
}

// Session is one room. Actions go through a single goroutine so they apply
// one at a time in arrival order; everything else takes the mutex.
type Session struct {
	mu         sync.RWMutex
	Code       string
	GameType   string
	CreatedAt  time.Time
	status     Status
	hostID     string
	players    []*Player
	match      game.Match
	reactions  []Reaction
	rounds     int
	lastActive time.Time

	game   game.Game
	ledger Ledger
	log    *zap.Logger
	tokens *lru.Cache[string, error]
	inbox  chan request
	done   chan struct{}
	closed sync.Once
}

// NewSession creates a session in the lobby and starts its action loop.
// ledger may be nil.
func NewSession(code, gameType string, g game.Game, ledger Ledger, log *zap.Logger) *Session {
	tokens, err := lru.New[string, error](tokenCacheSize)
	if err != nil {
		panic(err)
	}
	now := time.Now()
	s := &Session{
		Code:       code,
		GameType:   gameType,
		CreatedAt:  now,
		status:     StatusLobby,
		lastActive: now,
		game:       g,
		ledger:     ledger,
		log:        log.With(zap.String("session", code)),
		tokens:     tokens,
		inbox:      make(chan request),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

// Join seats a new player. The first player to join hosts the session.
func (s *Session) Join(name string) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLobby {
		return Player{}, ErrNotInLobby
	}
	if len(s.players) >= s.game.Info().MaxPlayers {
		return Player{}, ErrFull
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", len(s.players)+1)
	}
	p := &Player{
		ID:     uuid.NewString(),
		Name:   name,
		Secret: uuid.NewString(),
		Send:   make(chan []byte, sendBuffer),
	}
	s.players = append(s.players, p)
	if s.hostID == "" {
		s.hostID = p.ID
	}
	s.lastActive = time.Now()
	s.log.Info("player joined", zap.String("player", p.ID), zap.String("name", p.Name))
	return *p, nil
}

// Start deals the match. Only the host may start, and only from the lobby.
func (s *Session) Start(actorID string) error {
	s.mu.Lock()
	if s.status != StatusLobby {
		s.mu.Unlock()
		return ErrNotInLobby
	}
	if actorID != s.hostID {
		s.mu.Unlock()
		return ErrNotHost
	}
	info := s.game.Info()
	if len(s.players) < info.MinPlayers {
		s.mu.Unlock()
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, info.MinPlayers, len(s.players))
	}

	ids := make([]string, len(s.players))
	for i, p := range s.players {
		ids[i] = p.ID
	}
	s.match = s.game.NewMatch(game.MatchConfig{PlayerIDs: ids})
	s.status = StatusPlaying
	s.lastActive = time.Now()
	s.mu.Unlock()

	s.log.Info("session started", zap.Int("players", len(ids)))
	s.recordStatus(StatusPlaying)
	return nil
}

// Authorize reports whether secret belongs to playerID's seat.
func (s *Session) Authorize(playerID, secret string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorizedLocked(playerID, secret) != nil
}

func (s *Session) authorizedLocked(playerID, secret string) *Player {
	p := s.playerLocked(playerID)
	if p == nil || secret == "" || subtle.ConstantTimeCompare([]byte(p.Secret), []byte(secret)) != 1 {
		return nil
	}
	return p
}

// ConnectPlayer attaches a socket's outbound channel to a seat. The seat's
// secret must match.
func (s *Session) ConnectPlayer(playerID, secret string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.authorizedLocked(playerID, secret)
	if p == nil {
		return false
	}
	p.Send = send
	p.Connected = true
	s.lastActive = time.Now()
	return true
}

// Disconnect marks the seat offline if send is still its channel. A newer
// socket for the same player is left alone.
func (s *Session) Disconnect(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.playerLocked(playerID)
	if p == nil || p.Send != send {
		return false
	}
	p.Connected = false
	s.lastActive = time.Now()
	return true
}

// Submit queues an action and waits for its outcome. A token already seen
// for this player returns the remembered outcome without applying again.
// ctx only bounds the wait for the actor to take the request: once taken,
// Submit returns the real outcome.
func (s *Session) Submit(ctx context.Context, playerID, token string, action game.Action) error {
	req := request{playerID: playerID, token: token, action: action, reply: make(chan error, 1)}
	select {
	case s.inbox <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.reply
}

func (s *Session) run() {
	for {
		select {
		case req := <-s.inbox:
			req.reply <- s.apply(req)
		case <-s.done:
			return
		}
	}
}

func (s *Session) apply(req request) error {
	key := req.playerID + "/" + req.token
	if req.token != "" {
		if err, ok := s.tokens.Get(key); ok {
			s.log.Debug("replayed action", zap.String("player", req.playerID), zap.String("token", req.token))
			return err
		}
	}

	s.mu.Lock()
	err := s.applyLocked(req.playerID, req.action)
	var rounds []game.RoundSummary
	finished := false
	if err == nil {
		rounds = s.newRoundsLocked()
		if s.match.IsOver() {
			s.status = StatusFinished
			finished = true
		}
		s.lastActive = time.Now()
	}
	s.mu.Unlock()

	if req.token != "" {
		s.tokens.Add(key, err)
	}
	if err != nil {
		s.log.Debug("action rejected", zap.String("player", req.playerID), zap.String("type", req.action.Type), zap.Error(err))
		return err
	}
	for _, r := range rounds {
		s.recordRound(r)
	}
	if finished {
		s.log.Info("session finished")
		s.recordStatus(StatusFinished)
	}
	return nil
}

func (s *Session) applyLocked(playerID string, action game.Action) error {
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	if s.playerLocked(playerID) == nil {
		return ErrUnknownPlayer
	}
	return s.match.ApplyAction(playerID, action)
}

func (s *Session) newRoundsLocked() []game.RoundSummary {
	rm, ok := s.match.(game.RoundedMatch)
	if !ok {
		return nil
	}
	all := rm.RoundSummaries()
	if len(all) <= s.rounds {
		return nil
	}
	fresh := all[s.rounds:]
	s.rounds = len(all)
	return fresh
}

func (s *Session) recordRound(r game.RoundSummary) {
	s.log.Info("round finished",
		zap.Int("round", r.Round),
		zap.String("contract", r.Label),
		zap.String("winner", r.WinnerID),
	)
	if s.ledger == nil {
		return
	}
	err := s.ledger.RecordRound(storage.RoundRow{
		SessionCode: s.Code,
		Round:       r.Round,
		Contract:    r.Label,
		WinnerID:    r.WinnerID,
		Penalties:   r.Penalties,
		Scores:      r.Scores,
	})
	if err != nil {
		s.log.Error("record round", zap.Int("round", r.Round), zap.Error(err))
	}
}

func (s *Session) recordStatus(st Status) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.UpdateSessionStatus(s.Code, string(st)); err != nil {
		s.log.Error("record status", zap.String("status", string(st)), zap.Error(err))
	}
}

// React appends a preset phrase to the room's chat.
func (s *Session) React(playerID, text string) (Reaction, error) {
	valid := false
	for _, r := range Reactions {
		if r == text {
			valid = true
			break
		}
	}
	if !valid {
		return Reaction{}, ErrInvalidReaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.playerLocked(playerID)
	if p == nil {
		return Reaction{}, ErrUnknownPlayer
	}
	r := Reaction{
		ID:       uuid.NewString(),
		At:       time.Now(),
		PlayerID: p.ID,
		Name:     p.Name,
		Text:     text,
	}
	s.reactions = append(s.reactions, r)
	if n := len(s.reactions); n > maxReactions {
		s.reactions = append([]Reaction(nil), s.reactions[n-maxReactions:]...)
	}
	return r, nil
}

// Broadcast sends a message to all connected players.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.Connected {
			trySend(p.Send, msg)
		}
	}
}

// SendTo sends a message to one connected player.
func (s *Session) SendTo(playerID string, msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.playerLocked(playerID); p != nil && p.Connected {
		trySend(p.Send, msg)
	}
}

func trySend(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
	default:
		// drop message if buffer full
	}
}

// Player returns a copy of a seat.
func (s *Session) Player(playerID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.playerLocked(playerID)
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

// PlayerIDs returns seat ids in join order, which is also turn order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.players))
	for i, p := range s.players {
		ids[i] = p.ID
	}
	return ids
}

func (s *Session) playerLocked(playerID string) *Player {
	for _, p := range s.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Close stops the action loop. Pending and later Submits return ErrClosed.
func (s *Session) Close() {
	s.closed.Do(func() { close(s.done) })
}

// PlayerInfo is a seat as the API shows it.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Info returns session info for the API.
type Info struct {
	Code      string       `json:"code"`
	GameType  string       `json:"gameType"`
	Status    Status       `json:"status"`
	HostID    string       `json:"hostId"`
	Players   []PlayerInfo `json:"players"`
	CreatedAt time.Time    `json:"createdAt"`
	Age       string       `json:"age"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	players := make([]PlayerInfo, len(s.players))
	for i, p := range s.players {
		players[i] = PlayerInfo{ID: p.ID, Name: p.Name, Connected: p.Connected}
	}
	return Info{
		Code:      s.Code,
		GameType:  s.GameType,
		Status:    s.status,
		HostID:    s.hostID,
		Players:   players,
		CreatedAt: s.CreatedAt,
		Age:       humanize.Time(s.CreatedAt),
	}
}

// Snapshot is everything one player is allowed to see, taken atomically.
type Snapshot struct {
	Session      Info
	Public       any
	Private      any
	ValidActions []game.Action
	Results      []game.PlayerResult
	Reactions    []Reaction
}

// Snapshot builds playerID's view. Match fields are nil in the lobby.
func (s *Session) Snapshot(playerID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Session:   s.infoLocked(),
		Reactions: append([]Reaction(nil), s.reactions...),
	}
	if s.match != nil {
		snap.Public = s.match.PublicState()
		snap.ValidActions = s.match.ValidActions(playerID)
		snap.Results = s.match.Results()
		if s.playerLocked(playerID) != nil {
			snap.Private = s.match.PrivateState(playerID)
		}
	}
	return snap
}

func (s *Session) idleSince() (Status, bool, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	anyConnected := false
	for _, p := range s.players {
		if p.Connected {
			anyConnected = true
			break
		}
	}
	return s.status, anyConnected, s.lastActive
}
