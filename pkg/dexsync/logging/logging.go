// Package logging provides component-scoped structured loggers for dexsync.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info", Console: "warn"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("sync")
//	logger.Info("snapshot published", "resource", "abilities", "added", 12)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default level for the file sink.
	Level string

	// Path is the log file path. Empty disables the file sink.
	Path string

	// Console enables stderr output at the given level. Empty disables it.
	Console string

	// Components maps component names to level overrides.
	Components map[string]string

	// Writer replaces stderr for console output. Used by tests.
	Writer io.Writer
}

// Logger writes structured messages for a single component to the file
// sink and, when enabled, the console.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(LevelDebug, msg, args...) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.emit(LevelInfo, msg, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.emit(LevelWarn, msg, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(LevelError, msg, args...) }

// Component returns the component name the logger was created for.
func (l *Logger) Component() string { return l.component }

// With returns a logger that adds the given key/value pairs to every message.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{file: l.file.With(args...), component: l.component}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

func (l *Logger) emit(level Level, msg string, args ...interface{}) {
	write(l.file, level, msg, args...)
	if l.console != nil {
		write(l.console, level, msg, args...)
	}
}

func write(logger *log.Logger, level Level, msg string, args ...interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	file        *os.File
	sink        io.Writer
	console     io.Writer
	level       Level
	consoleOn   bool
	consoleLvl  Level
	components  map[string]Level
	loggers     map[string]*Logger
}

var global = &state{
	components: make(map[string]Level),
	loggers:    make(map[string]*Logger),
}

// Init configures the logging system. Loggers obtained before Init are
// rebuilt so they pick up the new sinks.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if err := global.closeLocked(); err != nil {
		return err
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	sink := io.Discard
	var file *os.File
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		file, err = os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		sink = file
	}

	global.consoleOn = false
	if cfg.Console != "" {
		consoleLevel, err := ParseLevel(cfg.Console)
		if err != nil {
			if file != nil {
				_ = file.Close()
			}
			return fmt.Errorf("parsing console level: %w", err)
		}
		global.consoleOn = true
		global.consoleLvl = consoleLevel
	}

	global.console = cfg.Writer
	if global.console == nil {
		global.console = os.Stderr
	}
	global.file = file
	global.sink = sink
	global.level = level
	global.components = components
	global.initialized = true

	for component := range global.loggers {
		global.loggers[component] = global.build(component)
	}
	return nil
}

// Get returns the logger for a component, creating it on first use.
// Before Init, loggers discard everything.
func Get(component string) *Logger {
	global.mu.RLock()
	if logger, ok := global.loggers[component]; ok {
		global.mu.RUnlock()
		return logger
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()
	if logger, ok := global.loggers[component]; ok {
		return logger
	}
	logger := global.build(component)
	global.loggers[component] = logger
	return logger
}

// Close releases the log file and resets loggers to discard output.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := global.closeLocked(); err != nil {
		return err
	}
	for component := range global.loggers {
		global.loggers[component] = global.build(component)
	}
	return nil
}

// closeLocked must be called with mu held.
func (s *state) closeLocked() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	s.consoleOn = false
	s.sink = io.Discard
	if s.file != nil {
		f := s.file
		s.file = nil
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing log file: %w", err)
		}
	}
	return nil
}

// build must be called with mu held.
func (s *state) build(component string) *Logger {
	level := s.level
	if override, ok := s.components[component]; ok {
		level = override
	}

	if !s.initialized {
		return &Logger{
			file:      log.NewWithOptions(io.Discard, log.Options{Prefix: component}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(s.sink, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
			Formatter:       log.LogfmtFormatter,
		}),
		component: component,
	}

	if s.consoleOn {
		consoleLevel := s.consoleLvl
		if override, ok := s.components[component]; ok && override < consoleLevel {
			consoleLevel = override
		}
		logger.console = log.NewWithOptions(s.console, log.Options{
			Level:           consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return logger
}

// DefaultLogPath returns $XDG_STATE_HOME/dexsync/dexsync.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "dexsync", "dexsync.log")
}
