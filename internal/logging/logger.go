// Package logging wraps zap.Logger with the console+file tee this tool
// uses for run output, so progress and diagnostics
// go through one place rather than scattered fmt.Println calls.
// Grounded on _examples/quantmind-br-gendocs/internal/logging/logger.go,
// trimmed to a single log file (no rotation) since a freebsd-godate run
// is a one-shot invocation, not a long-lived service.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a type alias for zap.Field.
type Field = zap.Field

// Common field constructors, re-exported so callers never import zap
// directly.
var (
	String   = zap.String
	Int      = zap.Int
	Uint32   = zap.Uint32
	Bool     = zap.Bool
	Any      = zap.Any
	Error    = zap.Error
	Err      = zap.NamedError
	Duration = zap.Duration
)

// LevelFromString converts a config/flag string into a zapcore.Level,
// defaulting to Info on anything unrecognized.
func LevelFromString(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps zap.Logger with this tool's methods, keeping zap itself
// an implementation detail callers don't import.
type Logger struct {
	zap *zap.Logger
}

// Config holds logger construction options.
type Config struct {
	LogFile        string // e.g. "<statedir>/freebsd-godate.log"; empty disables file output
	FileLevel      zapcore.Level
	ConsoleLevel   zapcore.Level
	ConsoleEnabled bool
}

// DefaultConfig returns the defaults a CLI run starts from: info to the
// log file, info to the console, no debug noise unless -v bumps it.
func DefaultConfig() *Config {
	return &Config{
		FileLevel:      zapcore.InfoLevel,
		ConsoleLevel:   zapcore.InfoLevel,
		ConsoleEnabled: true,
	}
}

// New builds a Logger from cfg. A nil or zero-value LogFile disables
// file output entirely, logging to the console core alone.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var cores []zapcore.Core

	if cfg.LogFile != "" {
		if dir := filepath.Dir(cfg.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		fileEncoderConfig := zap.NewProductionEncoderConfig()
		fileEncoderConfig.TimeKey = "timestamp"
		fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig)

		file, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(file), cfg.FileLevel))
	}

	if cfg.ConsoleEnabled {
		consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), cfg.ConsoleLevel))
	}

	var core zapcore.Core
	switch len(cores) {
	case 0:
		core = zapcore.NewNopCore()
	case 1:
		core = cores[0]
	default:
		core = zapcore.NewTee(cores...)
	}

	return &Logger{zap: zap.New(core)}, nil
}

// Nop returns a Logger that discards everything, for tests and library
// callers that don't want this tool's output.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) Sync() error { return l.zap.Sync() }

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }

// With creates a child logger carrying fields on every subsequent call.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named creates a child logger prefixed with name, e.g. "install",
// "fetch", used to tag which phase a message came from.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}
