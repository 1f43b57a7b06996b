package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the game types the server can host.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Game)}
}

// Register adds a game type. Panics on duplicate names or a seat range no
// session could fill.
func (r *Registry) Register(g Game) {
	info := g.Info()
	if info.MinPlayers < 1 || info.MaxPlayers < info.MinPlayers {
		panic(fmt.Sprintf("game %q: bad seat range %d..%d", info.Name, info.MinPlayers, info.MaxPlayers))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(info.Name)
	if _, exists := r.games[name]; exists {
		panic(fmt.Sprintf("game %q already registered", name))
	}
	r.games[name] = g
}

// Get returns a game by name, ignoring case.
func (r *Registry) Get(name string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[strings.ToLower(strings.TrimSpace(name))]
	return g, ok
}

// List returns info for all registered games, ordered by name.
func (r *Registry) List() []GameInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]GameInfo, 0, len(r.games))
	for _, g := range r.games {
		infos = append(infos, g.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
