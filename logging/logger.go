// Package logging provides pre-configured component loggers. Logs always go
// to a date-based file under the state directory; structured output also
// reaches stderr when debugging or when stderr is not a terminal.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/partools/par/paths"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific
// component. It uses a singleton pattern per component to avoid
// re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("PAR_LOG_LEVEL"); env != "" {
		levelStr = env
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&TextFormatter{})

	var writers []io.Writer
	if file := openLogFile(component); file != nil {
		writers = append(writers, file)
	}

	// Structured logs reach stderr in debug mode or when output is piped;
	// normal interactive use stays quiet.
	isDebug := os.Getenv("PAR_DEBUG") == "1" || level == logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if isDebug || !isInteractive {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// openLogFile opens the date-based log file for a component, or nil when the
// state directory is unavailable.
func openLogFile(component string) io.Writer {
	stateDir := paths.StateDir()
	if stateDir == "" {
		return nil
	}

	dateStr := time.Now().Format("2006-01-02")
	path := filepath.Join(stateDir, "logs", fmt.Sprintf("%s-%s.log", component, dateStr))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return file
}
