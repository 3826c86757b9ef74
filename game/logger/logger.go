// Package logger provides the leveled, structured diagnostics sink injected
// into every simulation component and server layer.
//
// Components depend on the Logger interface only; the server wires a zap
// backed implementation and tests use NewNop.
package logger

import "time"

// Logger is the leveled logging contract used across the module.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// String returns a string field
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an int field
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Float64 returns a float64 field
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool returns a bool field
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration returns a duration field
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err returns an error field under the "error" key
func Err(err error) Field { return Field{Key: "error", Value: err} }

type nopLogger struct{}

// NewNop returns a Logger that discards everything.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (n nopLogger) With(...Field) Logger { return n }
func (nopLogger) Sync() error            { return nil }
