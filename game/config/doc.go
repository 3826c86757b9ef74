// Package config loads level configurations for the skate sim server.
//
// Configurations live in a directory as JSON (.json) or YAML (.yaml, .yml)
// files; the file name without extension is the config id used when creating
// sessions. Files are validated with engine.ValidateLevelConfig and cached
// after the first load. Saved configurations are always written as JSON.
//
// The default configuration is "classic" when present, otherwise the first
// valid file in the directory, otherwise the engine's built-in level.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		return err
//	}
//	street, err := manager.LoadConfig("street")
//	configs, err := manager.ListConfigs()
package config
