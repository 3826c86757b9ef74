package logger

// Config defines logging configuration
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json or console
	// Development enables caller-friendly console output and colored levels
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

// DevelopmentConfig returns the configuration used with -debug
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Format:      "console",
		Development: true,
	}
}
