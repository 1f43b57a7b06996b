package game

import "encoding/json"

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
	Rounds     int    `json:"rounds"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	PlayerIDs []string // turn order
}

// Action is the wire envelope for a move a player submits.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Rank     int    `json:"rank"` // 1 = first place
	Score    int    `json:"score"`
}

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) Match
}

// Match is one in-progress game.
type Match interface {
	// PublicState is the projection every member of the session may see.
	PublicState() any
	// PrivateState is the projection only playerID may see.
	PrivateState(playerID string) any
	ValidActions(playerID string) []Action
	// ApplyAction applies one action atomically: on error nothing changed.
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
}

// RoundSummary is one finished round of a game played in rounds.
type RoundSummary struct {
	Round     int
	Label     string
	WinnerID  string
	Penalties map[string]int
	Scores    map[string]int
}

// RoundedMatch is a Match that reports rounds as they finish.
type RoundedMatch interface {
	Match
	RoundSummaries() []RoundSummary
}
