// Package logging provides structured logging with rotating file and console output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	Dir        string   // Directory for log files; empty disables file output
	Level      LogLevel // Minimum log level (default: info)
	Console    bool     // Also log to stderr
	MaxSizeMB  int      // Rotate after this many megabytes
	MaxBackups int      // Rotated files to keep
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Dir:        filepath.Join(home, ".streamavatar", "logs"),
		Level:      LevelInfo,
		Console:    true,
		MaxSizeMB:  20,
		MaxBackups: 3,
	}
}

// Logger wraps zerolog with a rotating log file
type Logger struct {
	zlog    zerolog.Logger
	file    *lumberjack.Logger
	logPath string
}

// New creates a Logger writing to the configured outputs. Extra writers,
// when given, receive the same JSON lines as the log file.
func New(cfg Config, extra ...io.Writer) (*Logger, error) {
	var writers []io.Writer
	l := &Logger{}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.logPath = filepath.Join(cfg.Dir, "streamavatar.log")
		l.file = &lumberjack.Logger{
			Filename:   l.logPath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, l.file)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}
	writers = append(writers, extra...)

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	l.zlog = zerolog.New(out).
		With().
		Timestamp().
		Str("app", "streamavatar").
		Logger()

	l.zlog.Debug().Str("component", "logging").Str("logFile", l.logPath).Msg("Logger initialized")
	return l, nil
}

// ParseLevel maps a configured level onto zerolog; unknown values mean info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel changes the process-wide minimum level, including loggers
// already handed out by Component.
func (l *Logger) SetLevel(level LogLevel) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// Component returns a zerolog.Logger with the component field set
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// LogPath returns the current log file path, empty when file output is off
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
