package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the zap backed Logger
type ZapLogger struct {
	zap *zap.Logger
}

// NewZapLogger builds a logger writing to stderr. Unknown levels fall back to info.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		opts = append(opts, zap.Development())
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return NewFromZap(zap.New(core, opts...)), nil
}

// NewFromZap wraps z; tests pass an observer core
func NewFromZap(z *zap.Logger) *ZapLogger {
	return &ZapLogger{zap: z}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			out[i] = zap.String(f.Key, v)
		case int:
			out[i] = zap.Int(f.Key, v)
		case float64:
			out[i] = zap.Float64(f.Key, v)
		case bool:
			out[i] = zap.Bool(f.Key, v)
		case time.Duration:
			out[i] = zap.Duration(f.Key, v)
		case error:
			out[i] = zap.NamedError(f.Key, v)
		default:
			out[i] = zap.Any(f.Key, v)
		}
	}
	return out
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, zapFields(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.zap.Info(msg, zapFields(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, zapFields(fields)...) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.zap.Error(msg, zapFields(fields)...) }

func (l *ZapLogger) With(fields ...Field) Logger {
	return NewFromZap(l.zap.With(zapFields(fields)...))
}

// Sync flushes buffered entries. Syncing a terminal stderr can fail
// harmlessly, so main ignores the error.
func (l *ZapLogger) Sync() error {
	return l.zap.Sync()
}
