package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/stenoproof/internal/proofread"
)

// MaxSessions caps the number of sessions kept. Older ones are dropped.
const MaxSessions = 100

// Session is the stored summary of one proofreading run.
type Session struct {
	ID             string                      `json:"id"`
	FileName       string                      `json:"fileName"`
	Timestamp      time.Time                   `json:"timestamp"`
	PagesProcessed int                         `json:"pagesProcessed"`
	TotalErrors    int                         `json:"totalErrors"`
	ProcessingTime int64                       `json:"processingTime"`
	ErrorsByType   map[proofread.ErrorKind]int `json:"errorsByType"`
}

// History adds to and summarizes the sessions held by a [Store].
type History struct {
	store Store
	now   func() time.Time
	newID func() string
}

// Option configures a [History].
type Option func(*History)

// WithClock sets the time source used to stamp sessions.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

// WithIDGenerator sets the session ID generator. Default: random UUIDs.
func WithIDGenerator(f func() string) Option {
	return func(h *History) { h.newID = f }
}

// New returns a History backed by store.
func New(store Store, opts ...Option) *History {
	h := &History{store: store, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Sessions returns the stored sessions, newest first.
func (h *History) Sessions() ([]Session, error) {
	return h.store.Load()
}

// Add records res as the newest session and trims the list to
// [MaxSessions].
func (h *History) Add(fileName string, res *proofread.Result) (Session, error) {
	sessions, err := h.store.Load()
	if err != nil {
		return Session{}, fmt.Errorf("history: add: %w", err)
	}
	s := Session{
		ID:             h.newID(),
		FileName:       fileName,
		Timestamp:      h.now().UTC(),
		PagesProcessed: res.PagesProcessed,
		TotalErrors:    res.Summary.TotalErrors,
		ProcessingTime: res.ProcessingTime,
		ErrorsByType:   res.Summary.ByType,
	}
	sessions = append([]Session{s}, sessions...)
	if len(sessions) > MaxSessions {
		sessions = sessions[:MaxSessions]
	}
	if err := h.store.Save(sessions); err != nil {
		return Session{}, fmt.Errorf("history: add: %w", err)
	}
	return s, nil
}

// Clear removes every stored session.
func (h *History) Clear() error {
	if err := h.store.Save(nil); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// Stats aggregates sessions across runs.
type Stats struct {
	TotalTranscripts int                         `json:"totalTranscripts"`
	TotalPages       int                         `json:"totalPages"`
	TotalErrors      int                         `json:"totalErrors"`
	ErrorRate        float64                     `json:"errorRate"`
	ErrorsByType     map[proofread.ErrorKind]int `json:"errorsByType"`
}

// Aggregate sums sessions. ErrorRate is errors per 100 pages, zero when no
// pages were processed.
func Aggregate(sessions []Session) Stats {
	st := Stats{
		TotalTranscripts: len(sessions),
		ErrorsByType:     make(map[proofread.ErrorKind]int),
	}
	for _, s := range sessions {
		st.TotalPages += s.PagesProcessed
		st.TotalErrors += s.TotalErrors
		for k, n := range s.ErrorsByType {
			st.ErrorsByType[k] += n
		}
	}
	if st.TotalPages > 0 {
		st.ErrorRate = float64(st.TotalErrors) / float64(st.TotalPages) * 100
	}
	return st
}

// Stats loads the stored sessions and aggregates them.
func (h *History) Stats() (Stats, error) {
	sessions, err := h.store.Load()
	if err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	return Aggregate(sessions), nil
}
