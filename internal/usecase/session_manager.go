package usecase

import (
	"context"
	"sync"

	"talentline/internal/domain/repository"
	ws "talentline/internal/infrastructure/websocket"
	"talentline/pkg/logger"
)

type sessionEntry struct {
	session *ChatSession
	refs    int
}

// SessionManager creates a ChatSession when an actor's first connection
// arrives and closes it when the last one goes away. Sessions are keyed by
// actor id; multiple tabs share one session.
type SessionManager struct {
	baseCtx context.Context
	repo    repository.ConversationRepository
	ws      *ws.Manager

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionManager(ctx context.Context, repo repository.ConversationRepository, wsManager *ws.Manager) *SessionManager {
	return &SessionManager{
		baseCtx:  ctx,
		repo:     repo,
		ws:       wsManager,
		sessions: make(map[string]*sessionEntry),
	}
}

// Attach returns the actor's session, starting one if needed, and takes a
// reference on it. The session is started outside the lock: opening the
// list subscription can be slow, and it must not stall every other actor's
// attach.
func (m *SessionManager) Attach(actorID string) (*ChatSession, error) {
	m.mu.Lock()
	if entry, ok := m.sessions[actorID]; ok {
		entry.refs++
		m.mu.Unlock()
		return entry.session, nil
	}
	m.mu.Unlock()

	session := NewChatSession(actorID, m.repo, m.ws)
	if err := session.Start(m.baseCtx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if entry, ok := m.sessions[actorID]; ok {
		// Another connection started a session for this actor in the
		// meantime; keep that one.
		entry.refs++
		m.mu.Unlock()
		session.Close()
		return entry.session, nil
	}
	m.sessions[actorID] = &sessionEntry{session: session, refs: 1}
	m.mu.Unlock()

	logger.Info("Chat session started for actor %s", actorID)
	return session, nil
}

// Get returns the actor's session without taking a reference, or nil.
func (m *SessionManager) Get(actorID string) *ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.sessions[actorID]; ok {
		return entry.session
	}
	return nil
}

// Release drops one reference; the session is closed and its caches
// discarded when the last reference goes.
func (m *SessionManager) Release(actorID string) {
	m.mu.Lock()
	entry, ok := m.sessions[actorID]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, actorID)
	m.mu.Unlock()

	entry.session.Close()
	logger.Info("Chat session closed for actor %s", actorID)
}

// CloseAll tears down every session, for server shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	entries := make([]*sessionEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	for _, entry := range entries {
		entry.session.Close()
	}
}
