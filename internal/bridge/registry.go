package bridge

import (
	"sync"

	"burstbot/internal/blackjack"
)

// Registry maps match ids to their state. Two matches never share a lock;
// the registry lock only guards the map itself.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*blackjack.MatchState
}

func NewRegistry() *Registry {
	return &Registry{
		matches: make(map[string]*blackjack.MatchState),
	}
}

// GetOrCreate returns the match's state, creating it at NotAvailable if it
// does not exist yet.
func (r *Registry) GetOrCreate(matchID string) *blackjack.MatchState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.matches[matchID]; ok {
		return s
	}

	s := blackjack.NewMatchState(matchID)
	r.matches[matchID] = s
	return s
}

func (r *Registry) Get(matchID string) (*blackjack.MatchState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.matches[matchID]
	return s, ok
}

// Remove evicts a match. Removing an unknown id does nothing.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, matchID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

func (r *Registry) All() []*blackjack.MatchState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*blackjack.MatchState, 0, len(r.matches))
	for _, s := range r.matches {
		out = append(out, s)
	}
	return out
}
