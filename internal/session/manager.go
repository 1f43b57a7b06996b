package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"carioca/internal/game"
	"carioca/internal/storage"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 5
	codeAttempts = 50
)

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	log      *zap.Logger
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, log *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Create makes a new lobby under a fresh room code and records it.
func (m *Manager) Create(gameType string) (*Session, error) {
	g, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	name := g.Info().Name

	m.mu.Lock()
	defer m.mu.Unlock()
	var lastErr error
	for i := 0; i < codeAttempts; i++ {
		code := generateCode()
		if _, taken := m.sessions[code]; taken {
			continue
		}
		// the ledger keeps codes of sessions that are gone from memory
		if err := m.store.CreateSession(code, name); err != nil {
			lastErr = err
			continue
		}
		s := NewSession(code, name, g, m.store, m.log)
		m.sessions[code] = s
		m.log.Info("session created", zap.String("session", code), zap.String("game", name))
		return s, nil
	}
	return nil, fmt.Errorf("no free room code after %d attempts: %v", codeAttempts, lastErr)
}

// Get returns a session by code. Codes match case-insensitively.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[NormalizeCode(code)]
	return s, ok
}

// NormalizeCode trims and upper-cases a user-typed room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// List returns info for all active sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	m.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Code < infos[j].Code
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// History lists sessions from the ledger with the given status, newest
// first. It includes sessions that are no longer live.
func (m *Manager) History(status Status) ([]storage.SessionRow, error) {
	switch status {
	case StatusLobby, StatusPlaying, StatusFinished:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return m.store.ListSessions(string(status))
}

// Rounds returns the recorded rounds of a session, live or not.
func (m *Manager) Rounds(code string) ([]storage.RoundRow, error) {
	return m.store.ListRounds(NormalizeCode(code))
}

// Remove stops a session and drops it from memory. Lobbies that never
// started are also erased from the ledger.
func (m *Manager) Remove(code string) {
	code = NormalizeCode(code)
	m.mu.Lock()
	s, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	if s.Status() == StatusLobby {
		if err := m.store.DeleteSession(code); err != nil {
			m.log.Warn("delete session", zap.String("session", code), zap.Error(err))
		}
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup(maxAge)
		case <-ctx.Done():
			return
		}
	}
}

// cleanup removes sessions that are finished or have nobody connected and
// have been idle longer than maxAge.
func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.RLock()
	var stale []string
	now := time.Now()
	for code, s := range m.sessions {
		status, connected, last := s.idleSince()
		if status != StatusFinished && connected {
			continue
		}
		if now.Sub(last) >= maxAge {
			m.log.Info("cleaning up session",
				zap.String("session", code),
				zap.String("status", string(status)),
				zap.String("lastActive", humanize.Time(last)),
			)
			stale = append(stale, code)
		}
	}
	m.mu.RUnlock()

	for _, code := range stale {
		m.Remove(code)
	}
}

// Close stops every session's action loop.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
}

func generateCode() string {
	b := make([]byte, codeLength)
	rand.Read(b)
	// 256 is a multiple of len(codeAlphabet), so every symbol is equally likely
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
