// Package sessions manages in-memory chat sessions with the diagnosis
// assistant.
package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/store"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/rs/zerolog/log"
)

// Manager is a thread-safe registry of chat sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // key: session ID

	chat    Chatter
	handoff *Handoff
	now     func() time.Time
}

// NewManager creates a session manager relaying to chat. New sessions
// consume the pending context from handoff.
func NewManager(chat Chatter, handoff *Handoff) *Manager {
	if handoff == nil {
		handoff = NewHandoff()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		chat:     chat,
		handoff:  handoff,
		now:      time.Now,
	}
}

// Handoff returns the diagnosis handoff slot shared with the diagnosis flow.
func (m *Manager) Handoff() *Handoff { return m.handoff }

// Create starts a session with the greeting and, if a diagnosis was handed
// off, its welcome message.
func (m *Manager) Create(_ context.Context) *Session {
	s := newSession(m.chat, m.handoff, m.now)
	s.ConsumeDiagnosisContext()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Debug().Str("session", s.ID).Int("live", m.Count()).Msg("Chat session created")
	return s
}

// Get retrieves a session by ID.
func (m *Manager) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, &store.ErrNotFound{Entity: "session", Key: id}
	}
	return s, nil
}

// List returns snapshots of all sessions, most recently active first.
func (m *Manager) List(_ context.Context) []models.ChatSession {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]models.ChatSession, 0, len(all))
	for _, s := range all {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Delete removes a session and ends its streams.
func (m *Manager) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return &store.ErrNotFound{Entity: "session", Key: id}
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.transcript.CloseSubscribers()
	return nil
}

// ExpireIdle removes sessions not touched since cutoff and returns how many
// were removed.
func (m *Manager) ExpireIdle(_ context.Context, cutoff time.Time) int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.lastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.transcript.CloseSubscribers()
	}
	if len(expired) > 0 {
		log.Debug().Int("expired", len(expired)).Int("live", m.Count()).Msg("Idle chat sessions expired")
	}
	return len(expired)
}

// ImageRefs returns the image references posted in live sessions.
func (m *Manager) ImageRefs(_ context.Context) []string {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	var refs []string
	for _, s := range all {
		for _, msg := range s.transcript.Messages() {
			if msg.ImageURL != "" {
				refs = append(refs, msg.ImageURL)
			}
		}
	}
	return refs
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
