package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = engine.ErrInvalidConfig
)

// DefaultConfigID is preferred as the default when present
const DefaultConfigID = "classic"

// extensions are tried in order when resolving a config id
var extensions = []string{".json", ".yaml", ".yml"}

// Manager handles level configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.LevelConfig
	defaultID     string
	configs       map[string]*engine.LevelConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.LevelConfig),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return m, nil
}

// LoadConfig loads a configuration by id (file name without extension)
func (m *Manager) LoadConfig(name string) (*engine.LevelConfig, error) {
	id := configID(name)

	m.mu.RLock()
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(id)
}

// loadLocked reads a config from disk into the cache; m.mu must be held
func (m *Manager) loadLocked(id string) (*engine.LevelConfig, error) {
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	path, err := m.resolvePath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := engine.ParseLevelConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", id, err)
	}
	if err := engine.ValidateLevelConfig(config); err != nil {
		return nil, fmt.Errorf("config %s: %w", id, err)
	}

	m.configs[id] = config
	return config, nil
}

func (m *Manager) resolvePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", ErrConfigNotFound, id)
	}
	for _, ext := range extensions {
		path := filepath.Join(m.configDir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, id)
}

// configID strips a known extension from name
func configID(name string) string {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// ListConfigs returns information about all valid configurations in the
// directory. Invalid files are skipped.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := configID(entry.Name())
		if id == entry.Name() || seen[id] {
			continue
		}

		config, err := m.LoadConfig(id)
		if err != nil {
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			BaseSpeed:   baseSpeed(config),
			Obstacles:   len(config.Obstacles),
			MaxScore:    engine.MaxAchievableScore(config),
		})
	}

	return configs, nil
}

func baseSpeed(config *engine.LevelConfig) float64 {
	if config.BaseSpeed == 0 {
		return engine.DefaultBaseSpeed
	}
	return config.BaseSpeed
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.LevelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// DefaultID returns the id of the default configuration
func (m *Manager) DefaultID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID
}

// SetDefault sets the default configuration by id
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	m.defaultID = configID(name)
	return nil
}

// RefreshCache drops every cached configuration and re-resolves the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.LevelConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig picks classic, else the first valid config, else the
// built-in level.
func (m *Manager) loadDefaultConfig() error {
	id := DefaultConfigID
	config, err := m.LoadConfig(id)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			m.setDefault("default", engine.DefaultLevelConfig())
			return nil
		}

		id = configs[0].ConfigID
		config, err = m.LoadConfig(id)
		if err != nil {
			m.setDefault("default", engine.DefaultLevelConfig())
			return nil
		}
	}

	m.setDefault(id, config)
	return nil
}

func (m *Manager) setDefault(id string, config *engine.LevelConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	m.defaultConfig = config
}

// SaveConfig validates and saves a configuration to disk as JSON
func (m *Manager) SaveConfig(name string, config *engine.LevelConfig) error {
	if err := engine.ValidateLevelConfig(config); err != nil {
		return err
	}

	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid config name %q", name)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, id+".json")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	return nil
}

// ReloadConfig drops a cached configuration and loads it again from disk
func (m *Manager) ReloadConfig(name string) error {
	id := configID(name)
	m.mu.Lock()
	delete(m.configs, id)
	m.mu.Unlock()

	_, err := m.LoadConfig(id)
	return err
}

// Count returns the number of cached configurations
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}
