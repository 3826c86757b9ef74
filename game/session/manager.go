package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// maxIDAttempts bounds retries when a generated id collides
const maxIDAttempts = 16

// Manager handles level session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	log         logger.Logger
	mu          sync.RWMutex
}

// NewManager creates a new in-memory session manager
func NewManager(log logger.Logger) *Manager {
	return NewManagerWithPersistence(nil, log)
}

// NewManagerWithPersistence creates a new session manager backed by persistence
func NewManagerWithPersistence(persistence SessionPersistence, log logger.Logger) *Manager {
	log = orNop(log)
	return &Manager{
		sessions:    make(map[string]*service.Session),
		persistence: persistence,
		log:         log,
	}
}

// Create creates a new session with the given ID and configuration. An empty
// id gets a generated 4-character id.
func (m *Manager) Create(id, configID string, config *engine.LevelConfig) (*service.Session, error) {
	if strings.ContainsAny(id, `/\ `) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		generated, err := m.uniqueSessionID()
		if err != nil {
			return nil, err
		}
		id = generated
	} else if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	level, err := engine.NewLevel(config, m.log.With(logger.String("session", id)))
	if err != nil {
		return nil, fmt.Errorf("failed to create level: %w", err)
	}

	now := time.Now()
	sess := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Level:          level,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[strings.ToLower(id)] = sess

	if m.persistence != nil {
		if err := m.persistence.Save(sess); err != nil {
			m.log.Warn("failed to persist session", logger.String("session", id), logger.Err(err))
		}
	}

	return sess, nil
}

// Get retrieves a session by ID (case-insensitive), falling back to persistence
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	sess, exists := m.lookup(id)
	m.mu.RUnlock()
	if exists {
		return sess, nil
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		loaded, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// another caller may have loaded it meanwhile
		if existing, ok := m.lookup(id); ok {
			return existing, nil
		}
		m.sessions[strings.ToLower(id)] = loaded
		return loaded, nil
	}

	return nil, ErrSessionNotFound
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, configID string, config *engine.LevelConfig) (*service.Session, error) {
	sess, err := m.Get(id)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, configID, config)
	}
	return nil, err
}

// List returns all in-memory sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.lookup(id)
	if inMemory {
		delete(m.sessions, strings.ToLower(id))
		delete(m.sessions, id)
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lookup(id); !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, strings.ToLower(id))
	delete(m.sessions, id)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session. The new
// time is persisted with the next save.
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.lookup(id)
	if !exists {
		return ErrSessionNotFound
	}
	sess.LastAccessedAt = time.Now()
	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	sess, exists := m.lookup(id)
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(sess)
}

// CleanupExpiredSessions removes in-memory sessions that haven't been
// accessed within maxAge. Persisted copies are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, key)
			removed++
		}
	}

	if removed > 0 {
		m.log.Info("expired sessions removed", logger.Int("count", removed))
	}
	return removed
}

// Count returns the number of in-memory sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// lookup finds a session case-insensitively; m.mu must be held
func (m *Manager) lookup(id string) (*service.Session, bool) {
	if sess, ok := m.sessions[strings.ToLower(id)]; ok {
		return sess, true
	}
	sess, ok := m.sessions[id]
	return sess, ok
}

// sessionExists checks memory and persistence; m.mu must be held
func (m *Manager) sessionExists(id string) bool {
	if _, ok := m.lookup(id); ok {
		return true
	}
	return m.persistence != nil && m.persistence.Exists(strings.ToLower(id))
}

// uniqueSessionID generates an unused random 4-character hex id
func (m *Manager) uniqueSessionID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := generateSessionID()
		if !m.sessionExists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique session id after %d attempts", maxIDAttempts)
}

// generateSessionID generates a random 4-character session ID
func generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range sessionIDs {
		if _, exists := m.lookup(id); exists {
			continue
		}

		sess, err := m.persistence.Load(id)
		if err != nil {
			m.log.Warn("failed to load persisted session", logger.String("session", id), logger.Err(err))
			continue
		}
		m.sessions[strings.ToLower(id)] = sess
		loaded++
	}

	if loaded > 0 {
		m.log.Info("persisted sessions loaded", logger.Int("count", loaded))
	}
	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessions := m.List()
	errorCount := 0
	for _, sess := range sessions {
		if err := m.persistence.Save(sess); err != nil {
			m.log.Warn("failed to save session", logger.String("session", sess.ID), logger.Err(err))
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}
	return nil
}
