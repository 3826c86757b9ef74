package session

import (
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions
type PersistedSessionData struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	LevelState     *engine.LevelState `json:"level_state"`
}

// persistedData captures a session for storage
func persistedData(sess *service.Session) (*PersistedSessionData, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	configID := sess.ConfigID
	if configID == "" && sess.Config != nil {
		configID = sess.Config.Name
	}
	return &PersistedSessionData{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		LevelState:     sess.Snapshot(),
	}, nil
}

// restoreSession rebuilds a live session from stored data. The level is
// rebuilt from its config and the snapshot applied on top.
func restoreSession(data *PersistedSessionData, configs service.ConfigManager, log logger.Logger) (*service.Session, error) {
	levelConfig, err := configs.LoadConfig(data.ConfigName)
	if err != nil {
		if data.ConfigName != configs.DefaultID() {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
		levelConfig = configs.GetDefault()
	}

	level, err := engine.NewLevel(levelConfig, log.With(logger.String("session", data.ID)))
	if err != nil {
		return nil, fmt.Errorf("failed to create level: %w", err)
	}
	if data.LevelState != nil {
		if err := level.Restore(data.LevelState); err != nil {
			return nil, fmt.Errorf("failed to restore level state: %w", err)
		}
	}

	return &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigName,
		Level:          level,
		Config:         levelConfig,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

func orNop(log logger.Logger) logger.Logger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}
