package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harryandriyan/bilbul/internal/ai"
	"github.com/harryandriyan/bilbul/internal/storage"
)

// Manager owns the live sessions, keyed by session ID.
// Each session serializes its own mutations; the manager only guards the map.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	extractor ai.Extractor
	suggester ai.Suggester
	store     storage.Store
}

// NewManager creates a session manager backed by the given collaborators.
func NewManager(extractor ai.Extractor, suggester ai.Suggester, store storage.Store) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		extractor: extractor,
		suggester: suggester,
		store:     store,
	}
}

// Create starts a new session in the Upload state.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:         uuidString(),
		state:      StateUpload,
		lastActive: time.Now(),
		extractor:  m.extractor,
		suggester:  m.suggester,
		store:      m.store,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with the given ID, if it exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// PruneIdle drops sessions that have seen no command for longer than maxIdle
// and returns how many were removed. The caller drives the schedule; the
// manager runs no background work of its own.
func (m *Manager) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func uuidString() string {
	return uuid.New().String()
}
