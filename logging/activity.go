package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ActivityLogger records PLC lifecycle events — define, restart, shutdown —
// to an append-only file, one line per event. It is deliberately narrower
// than DebugLogger: no protocol filtering, no hex dumps, just a plain
// audit trail of what the driver did to which PLC and when.
type ActivityLogger struct {
	file   *os.File
	mu     sync.Mutex
	closed bool
}

// NewActivityLogger opens the activity log at path, creating it if it does
// not exist and appending to it otherwise.
func NewActivityLogger(path string) (*ActivityLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log file: %w", err)
	}
	return &ActivityLogger{file: file}, nil
}

// LogEvent records one PLC lifecycle event: a short event name, the PLC it
// applies to, and an optional free-form detail string.
func (l *ActivityLogger) LogEvent(event, plcName, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	if detail == "" {
		fmt.Fprintf(l.file, "%s %s %s\n", timestamp, event, plcName)
		return
	}
	fmt.Fprintf(l.file, "%s %s %s %s\n", timestamp, event, plcName, detail)
}

// Close closes the underlying file. Safe to call more than once.
func (l *ActivityLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
