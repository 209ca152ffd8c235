package dispatch

import (
	"sync"
	"time"

	"github.com/requestify/requestify-go/internal/audio"
)

// Track is one fetched request waiting for, or holding, the main channel.
type Track struct {
	// SourceArgument is the argument the track was requested with, kept
	// verbatim for queue listings.
	SourceArgument string
	RequestedBy    string
	Audio          *audio.Buffer
	EnqueuedAt     time.Time
}

// Entry is one row of a queue snapshot.
type Entry struct {
	// Position is 0 for the playing track, 1-based for pending tracks.
	Position    int
	Argument    string
	RequestedBy string
}

// Queue is a FIFO of fetched tracks plus the one currently playing.
type Queue struct {
	mu      sync.Mutex
	current *Track
	pending []*Track
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a track to the pending list.
func (q *Queue) Add(t *Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, t)
}

// StartNext promotes the oldest pending track to current. Returns nil when
// a track is already playing or nothing is pending.
func (q *Queue) StartNext() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil || len(q.pending) == 0 {
		return nil
	}
	q.current = q.pending[0]
	q.pending = q.pending[1:]
	return q.current
}

// FinishCurrent clears the playing slot.
func (q *Queue) FinishCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// ClearPending drops every queued track, leaving the playing one alone.
// Returns how many were dropped.
func (q *Queue) ClearPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	q.pending = nil
	return n
}

// Current returns the playing track, or nil.
func (q *Queue) Current() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// PendingLen returns how many tracks are waiting.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Snapshot returns the playing track followed by pending tracks in play
// order, with 1-based positions for the pending ones.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := make([]Entry, 0, len(q.pending)+1)
	if q.current != nil {
		entries = append(entries, Entry{
			Position:    0,
			Argument:    q.current.SourceArgument,
			RequestedBy: q.current.RequestedBy,
		})
	}
	for i, t := range q.pending {
		entries = append(entries, Entry{
			Position:    i + 1,
			Argument:    t.SourceArgument,
			RequestedBy: t.RequestedBy,
		})
	}
	return entries
}
