package automation

import (
	"sync"
	"time"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ActivityEntry is one line of the user-facing activity feed.
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Level   Severity  `json:"level"`
	Message string    `json:"message"`
}

// maxActivityEntries caps the in-memory activity feed; older entries
// fall off the end. The feed is observability, not state, so it is
// never persisted.
const maxActivityEntries = 200

// ActivityLog is an append-only, capped record of everything the
// automation did or failed to do.
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Add appends one entry, evicting the oldest once the cap is reached.
func (l *ActivityLog) Add(level Severity, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ActivityEntry{
		Time:    time.Now(),
		Level:   level,
		Message: message,
	})
	if len(l.entries) > maxActivityEntries {
		l.entries = l.entries[len(l.entries)-maxActivityEntries:]
	}
}

// Entries returns the log newest first.
func (l *ActivityLog) Entries() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ActivityEntry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}
