package logging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RootDirName is the workspace-relative directory owned by forgeloop. It
// carries its own .gitignore so agents that stage everything skip it.
const RootDirName = ".forgeloop"

// DirName is the workspace-relative directory that holds run logs.
const DirName = RootDirName + "/logs"

// FileName is the name of the append-only run log inside DirName.
const FileName = "forgeloop.log"

// Logger writes timestamped lines to the run log of a workspace.
// The file is only ever opened in append mode; lines written by earlier
// runs (or earlier iterations of this run) are never rewritten.
type Logger struct {
	runID     string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

// NewRunID returns a fresh identifier for one driver process.
func NewRunID() string {
	return uuid.New().String()
}

// NewLogger opens (or creates) <workspace>/.forgeloop/logs/forgeloop.log.
//
// If the log directory cannot be created or the file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode.
func NewLogger(workspaceDir, runID string) (*Logger, error) {
	dir := filepath.Join(workspaceDir, DirName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		err = fmt.Errorf("failed to create log directory: %w", err)
		return newFallbackLogger(runID, err), err
	}
	if err := ensureGitignore(filepath.Join(workspaceDir, RootDirName)); err != nil {
		err = fmt.Errorf("failed to write .gitignore: %w", err)
		return newFallbackLogger(runID, err), err
	}

	logPath := filepath.Join(dir, FileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(runID, err), err
	}

	return &Logger{
		runID:   runID,
		file:    file,
		logger:  log.New(file, "", 0), // We'll format timestamps ourselves
		logPath: logPath,
	}, nil
}

// ensureGitignore writes a .gitignore ignoring everything in dir, unless one exists
func ensureGitignore(dir string) error {
	f, err := os.OpenFile(filepath.Join(dir, ".gitignore"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	if _, err := f.WriteString("*\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(runID string, err error) *Logger {
	logger := log.New(os.Stderr, "[forgeloop] ", log.LstdFlags)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		runID:  runID,
		logger: logger,
	}
}

// formatLogEntry creates a log entry with timestamp, run ID, and level
func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.runID, level, message)
}

func (l *Logger) write(level, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	message := strings.TrimRight(fmt.Sprintf(format, v...), "\n")
	l.logger.Println(l.formatLogEntry(level, message))
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// Successf logs a success-level message
func (l *Logger) Successf(format string, v ...interface{}) {
	l.write("OK", format, v...)
}

// Writer returns an io.Writer that appends raw bytes to the log.
// Subprocess output is streamed through it unprefixed.
func (l *Logger) Writer() io.Writer {
	if l != nil && l.file != nil {
		return &lockedWriter{mu: &l.mu, w: l.file}
	}
	return os.Stderr
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// RunID returns the run identifier stamped on every line
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, or "" in fallback mode
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
