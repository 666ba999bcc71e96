package generate

import (
	"sync"
	"time"
)

// Level classifies a log entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSpinner Level = "spinner"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelPrompt  Level = "prompt"
)

// Entry is one line of the generation log. Separator entries carry no
// message and mark the start of a new run.
type Entry struct {
	Level     Level
	Message   string
	Time      time.Time
	Separator bool
}

// Log is the append-only, user-facing record of generation progress.
type Log struct {
	mu        sync.RWMutex
	entries   []Entry
	observers []func(Entry)
	now       func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Observe registers fn to be called after every append.
func (l *Log) Observe(fn func(Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Append adds an entry at level.
func (l *Log) Append(level Level, message string) {
	l.add(Entry{Level: level, Message: message})
}

// Separator marks the boundary between two runs. Consecutive separators and
// a leading one are dropped.
func (l *Log) Separator() {
	l.mu.RLock()
	skip := len(l.entries) == 0 || l.entries[len(l.entries)-1].Separator
	l.mu.RUnlock()
	if !skip {
		l.add(Entry{Separator: true})
	}
}

func (l *Log) add(e Entry) {
	l.mu.Lock()
	if l.now == nil {
		l.now = time.Now
	}
	e.Time = l.now()
	l.entries = append(l.entries, e)
	observers := append([]func(Entry){}, l.observers...)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(e)
	}
}

// Entries returns a copy of all entries.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}
