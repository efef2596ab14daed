package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"allowance/internal/core"
	"allowance/internal/log"
)

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager tracks live sessions by id and expires idle ones.
type Manager struct {
	saver Saver
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	stopJanitor chan struct{}
	janitorDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

func NewManager(saver Saver, ttl time.Duration) *Manager {
	return &Manager{
		saver:       saver,
		ttl:         ttl,
		now:         time.Now,
		sessions:    make(map[string]*entry),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
}

// Create starts a session for rec and returns it.
func (m *Manager) Create(rec *core.UserRecord) *Session {
	s := New(uuid.NewString(), rec, m.saver)

	m.mu.Lock()
	m.sessions[s.ID] = &entry{session: s, lastSeen: m.now()}
	m.mu.Unlock()

	slog.Debug("Session created", log.FieldComponent, log.ComponentSession, "username", rec.Username)
	return s
}

// Get returns the live session for id and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(e.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

// Destroy forgets the session. The stored record is untouched.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire removes every session idle for longer than the TTL.
func (m *Manager) Expire() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor expires idle sessions every interval until Stop is called.
func (m *Manager) StartJanitor(interval time.Duration) {
	m.started = true
	go func() {
		defer close(m.janitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Expire(); n > 0 {
					slog.Info("Expired idle sessions", log.FieldComponent, log.ComponentSession, "count", n)
				}
			case <-m.stopJanitor:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopJanitor)
		if m.started {
			<-m.janitorDone
		}
	})
}
