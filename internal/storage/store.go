package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string    `json:"code"`
	GameType  string    `json:"gameType"`
	Status    string    `json:"status"` // "lobby", "playing", "finished"
	CreatedAt time.Time `json:"createdAt"`
}

// RoundRow is one finished round of a session.
type RoundRow struct {
	SessionCode string         `json:"-"`
	Round       int            `json:"round"`
	Contract    string         `json:"contract"`
	WinnerID    string         `json:"winnerId"`
	Penalties   map[string]int `json:"penalties"`
	Scores      map[string]int `json:"scores"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Store is the SQLite ledger of sessions and their finished rounds. Live
// match state is never written.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'lobby',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS rounds (
			session_code   TEXT NOT NULL REFERENCES sessions(code),
			round          INTEGER NOT NULL,
			contract       TEXT NOT NULL,
			winner_id      TEXT NOT NULL,
			penalties_json TEXT NOT NULL,
			scores_json    TEXT NOT NULL,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_code, round)
		);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status) VALUES (?, ?, 'lobby')",
		code, gameType,
	)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT code, game_type, status, created_at FROM sessions WHERE code = ?", code)
	var sr SessionRow
	if err := row.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []SessionRow{}
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// RecordRound appends a finished round. Recording the same round twice is
// an error.
func (s *Store) RecordRound(r RoundRow) error {
	penalties, err := json.Marshal(r.Penalties)
	if err != nil {
		return fmt.Errorf("marshal penalties: %w", err)
	}
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO rounds (session_code, round, contract, winner_id, penalties_json, scores_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.SessionCode, r.Round, r.Contract, r.WinnerID, string(penalties), string(scores))
	return err
}

// ListRounds returns a session's rounds in play order.
func (s *Store) ListRounds(code string) ([]RoundRow, error) {
	rows, err := s.db.Query(`
		SELECT session_code, round, contract, winner_id, penalties_json, scores_json, created_at
		FROM rounds WHERE session_code = ? ORDER BY round
	`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []RoundRow{}
	for rows.Next() {
		var r RoundRow
		var penalties, scores string
		if err := rows.Scan(&r.SessionCode, &r.Round, &r.Contract, &r.WinnerID, &penalties, &scores, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(penalties), &r.Penalties); err != nil {
			return nil, fmt.Errorf("round %d penalties: %w", r.Round, err)
		}
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return nil, fmt.Errorf("round %d scores: %w", r.Round, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteSession removes a session and its rounds.
func (s *Store) DeleteSession(code string) error {
	_, err := s.db.Exec("DELETE FROM rounds WHERE session_code = ?", code)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM sessions WHERE code = ?", code)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
