// Package audit records outbound HTTP calls made by registry and GitHub
// clients.
//
// Every request attempt produces one [Entry], including retried attempts, so
// a call that hits three 503s before succeeding yields four entries for the
// same URL. The package follows an observer pattern: clients call into a
// [Logger] they were handed at construction time, and the host decides where
// entries go (structured log, in-memory ring for the dashboard, both, or
// nowhere).
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Entry describes a single outbound HTTP attempt.
type Entry struct {
	ID         string    `json:"id"`
	Service    string    `json:"service"` // "registry" or "github"
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status"` // 0 when the request never completed
	DurationMs int64     `json:"durationMs"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	Error      string    `json:"error,omitempty"`
}

// Logger receives audit entries. Implementations must be safe for
// concurrent use; registry workers record from multiple goroutines.
type Logger interface {
	Record(ctx context.Context, e Entry)
}

// Begin stamps a new entry for an outgoing request. Callers fill in Status,
// Error, and call [Entry.Finish] equivalent fields before recording.
func Begin(service, method, url string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Service:   service,
		Method:    method,
		URL:       url,
		StartedAt: time.Now(),
	}
}

// Finish sets the end timestamp and duration on e and returns it.
func Finish(e Entry) Entry {
	e.EndedAt = time.Now()
	e.DurationMs = e.EndedAt.Sub(e.StartedAt).Milliseconds()
	return e
}

// Nop is a Logger that discards all entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

// Recorder is an in-memory Logger keeping the most recent entries.
// The dashboard exposes these through the API.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

// NewRecorder creates a Recorder retaining at most limit entries.
// A limit <= 0 means unbounded, which is only sensible in tests.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Record appends e, evicting the oldest entry once the limit is reached.
func (r *Recorder) Record(_ context.Context, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if r.limit > 0 && len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of retained entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// LogAdapter forwards entries to a structured logger at debug level.
type LogAdapter struct {
	Logger *log.Logger
}

// Record logs the entry with its timing fields.
func (a *LogAdapter) Record(_ context.Context, e Entry) {
	a.Logger.Debug("outbound call",
		"service", e.Service,
		"method", e.Method,
		"url", e.URL,
		"status", e.Status,
		"durationMs", e.DurationMs,
	)
}

// Multi fans entries out to several loggers.
type Multi []Logger

// Record forwards e to every logger in order.
func (m Multi) Record(ctx context.Context, e Entry) {
	for _, l := range m {
		l.Record(ctx, e)
	}
}
