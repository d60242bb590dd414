// Package audit appends one line per major action to a fixed log location so
// operators can reconstruct who purged what and when.
package audit

import (
	"fmt"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes audit entries for one run. Every entry carries the invoking
// user, a timestamp and a run id shared by all entries of the same invocation.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	user  string
	runID string
}

// Open opens (or creates) the audit log for appending. The invoking OS user is
// resolved once; defaultUser is used when the lookup fails.
func Open(path, defaultUser string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	name := defaultUser
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}

	return &Logger{
		file:  f,
		user:  name,
		runID: uuid.New().String(),
	}, nil
}

// RunID returns the identifier shared by all entries of this run
func (l *Logger) RunID() string {
	return l.runID
}

// User returns the identity entries are tagged with
func (l *Logger) User() string {
	return l.user
}

// Record appends one audit entry
func (l *Logger) Record(action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := fmt.Fprintf(l.file, "%s user=%s run=%s %s\n",
		time.Now().Format(time.RFC3339), l.user, l.runID, action)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Recordf appends one formatted audit entry
func (l *Logger) Recordf(format string, args ...any) error {
	return l.Record(fmt.Sprintf(format, args...))
}

// Close releases the audit log file
func (l *Logger) Close() error {
	return l.file.Close()
}
