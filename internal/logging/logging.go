// Package logging sets up the application loggers: a structured JSON logger on
// stdout plus per-service file loggers with rotation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	initOnce         sync.Once

	serviceMu      sync.Mutex
	serviceDir     string
	serviceLoggers map[string]*slog.Logger
	serviceClosers []func() error
	serviceLevel   slog.LevelVar
)

// Init initializes the logging system. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
		structuredLogger = slog.New(handler)
		slog.SetDefault(structuredLogger)
	})
}

// Global returns the application-wide structured logger.
func Global() *slog.Logger {
	Init()
	return structuredLogger
}

// NewFileLogger returns a service logger writing JSON to the given file with
// rotation, plus a closer for shutdown. The level can be adjusted at runtime
// through levelVar.
func NewFileLogger(path, service string, levelVar *slog.LevelVar) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: levelVar})
	logger := slog.New(handler).With("service", service)
	return logger, rotator.Close, nil
}

// SetLogDirectory configures the directory where per-service log files are
// written. Until it is called, ForService hands out children of the global
// stdout logger. Calling it again resets the cached service loggers.
func SetLogDirectory(dir string) {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	serviceDir = dir
	serviceLoggers = make(map[string]*slog.Logger)
}

// ForService returns the logger for a service, writing to
// <dir>/<service>.log with rotation when a log directory is configured.
// A service whose log file cannot be opened falls back to a child of the
// global stdout logger.
func ForService(service string) *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	if serviceDir == "" {
		return Global().With("service", service)
	}
	if logger, ok := serviceLoggers[service]; ok {
		return logger
	}

	logger, closer, err := NewFileLogger(filepath.Join(serviceDir, service+".log"), service, &serviceLevel)
	if err != nil {
		Global().Warn("cannot open service log file, logging to stdout",
			"service", service, "error", err)
		logger = Global().With("service", service)
	} else {
		serviceClosers = append(serviceClosers, closer)
	}
	serviceLoggers[service] = logger
	return logger
}

// Shutdown closes every open service log file.
func Shutdown() error {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	var firstErr error
	for _, closer := range serviceClosers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	serviceClosers = nil
	serviceLoggers = make(map[string]*slog.Logger)
	return firstErr
}

// Discard returns a logger that drops everything, for tests and fallbacks.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Convenience wrappers over the global logger.

func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }
func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
