// Package logging builds the run's diagnostic loggers: a console logger on
// stderr whose level follows the verbosity flags, and a JSON file log under
// ~/.catenaprov/logs capturing everything for later inspection.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Option configures RuntimeLogger creation.
type Option func(*newOptions)

type newOptions struct {
	console io.Writer
	noFile  bool
}

// WithConsole redirects console output; used by tests.
func WithConsole(w io.Writer) Option {
	return func(opts *newOptions) {
		opts.console = w
	}
}

// WithoutFile disables the JSON file log.
func WithoutFile() Option {
	return func(opts *newOptions) {
		opts.noFile = true
	}
}

// RuntimeLogger fans diagnostic records out to the console and the run's log
// file. It satisfies the runctx.Logger interface.
type RuntimeLogger struct {
	console *log.Logger
	fileLog *log.Logger
	file    *os.File
	path    string
}

// New initializes logging. The console level is warn by default, info with
// verbose, debug with debug; the file log always records at debug level.
func New(verbose, debug bool, options ...Option) (*RuntimeLogger, error) {
	resolved := newOptions{console: os.Stderr}
	for _, opt := range options {
		opt(&resolved)
	}

	level := log.WarnLevel
	if verbose {
		level = log.InfoLevel
	}
	if debug {
		level = log.DebugLevel
	}

	console := log.NewWithOptions(resolved.console, log.Options{
		Level: level,
	})

	rl := &RuntimeLogger{console: console}
	if resolved.noFile {
		return rl, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	logDir := filepath.Join(homeDir, ".catenaprov", "logs")
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	filePath := filepath.Join(logDir, fmt.Sprintf("catenaprov-%s.log", timestamp))
	// #nosec G304 -- filePath is constructed from trusted local paths.
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileLog := log.NewWithOptions(file, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	fileLog.SetFormatter(log.JSONFormatter)

	rl.fileLog = fileLog
	rl.file = file
	rl.path = filePath
	return rl, nil
}

// Path returns the log file path, or "" when file logging is disabled.
func (r *RuntimeLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Close flushes and closes the log file.
func (r *RuntimeLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Debugf logs at debug level.
func (r *RuntimeLogger) Debugf(format string, args ...any) {
	r.console.Debugf(format, args...)
	if r.fileLog != nil {
		r.fileLog.Debugf(format, args...)
	}
}

// Infof logs at info level.
func (r *RuntimeLogger) Infof(format string, args ...any) {
	r.console.Infof(format, args...)
	if r.fileLog != nil {
		r.fileLog.Infof(format, args...)
	}
}

// Warnf logs at warn level.
func (r *RuntimeLogger) Warnf(format string, args ...any) {
	r.console.Warnf(format, args...)
	if r.fileLog != nil {
		r.fileLog.Warnf(format, args...)
	}
}

// Errorf logs at error level.
func (r *RuntimeLogger) Errorf(format string, args ...any) {
	r.console.Errorf(format, args...)
	if r.fileLog != nil {
		r.fileLog.Errorf(format, args...)
	}
}
