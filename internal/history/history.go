// Package history records submitted prompts and produced responses in
// arrival order. The log is bounded: once full, the oldest record is dropped.
package history

import (
	"encoding/json"
	"sync"
)

// Kind tells whether an Entry is a prompt or a response
type Kind int

const (
	KindPrompt Kind = iota
	KindResponse
)

// Entry is one record. It marshals as {"prompt": ...} or {"response": ...}.
type Entry struct {
	Kind Kind
	Text string
}

// MarshalJSON implements json.Marshaler
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Kind == KindPrompt {
		return json.Marshal(struct {
			Prompt string `json:"prompt"`
		}{e.Text})
	}
	return json.Marshal(struct {
		Response string `json:"response"`
	}{e.Text})
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prompt   *string `json:"prompt"`
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Prompt != nil:
		*e = Entry{Kind: KindPrompt, Text: *raw.Prompt}
	case raw.Response != nil:
		*e = Entry{Kind: KindResponse, Text: *raw.Response}
	default:
		*e = Entry{Kind: KindResponse}
	}
	return nil
}

// Log is a fixed-capacity ring of entries, safe for concurrent use
type Log struct {
	mu    sync.Mutex
	buf   []Entry
	start int
	size  int
}

// New creates a log holding at most capacity entries (minimum 1)
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{buf: make([]Entry, capacity)}
}

// AddPrompt appends a prompt record
func (l *Log) AddPrompt(text string) {
	l.add(Entry{Kind: KindPrompt, Text: text})
}

// AddResponse appends a response record
func (l *Log) AddResponse(text string) {
	l.add(Entry{Kind: KindResponse, Text: text})
}

func (l *Log) add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = e
		l.size++
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % len(l.buf)
}

// Entries returns a copy, oldest first. Never nil.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of retained entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Cap returns the capacity
func (l *Log) Cap() int {
	return len(l.buf)
}
