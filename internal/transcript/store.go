package transcript

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talktivity/voicebridge/internal/metrics"
)

const (
	settleDelay    = 100 * time.Millisecond
	verifyAttempts = 10
	verifyDelay    = 50 * time.Millisecond
)

type entry struct {
	transcript *Transcript
	published  chan struct{} // closed on publish, replaced on remove
}

// Store is the in-process handoff point between a live session and the
// report generator. The session runner publishes the final transcript here
// at session end; a report request that arrives first blocks on Await until
// the transcript lands or the wait times out. One slot per user.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[int64]*entry)}
}

func (s *Store) entryLocked(userID int64) *entry {
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{published: make(chan struct{})}
		s.entries[userID] = e
	}
	return e
}

// Publish stores the transcript for the user and wakes any waiter. A second
// publish before the first is consumed overwrites it; the newer transcript
// wins.
func (s *Store) Publish(userID int64, t *Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(userID)
	if e.transcript != nil {
		slog.Warn("transcript: overwriting unconsumed transcript", "user_id", userID)
	}
	e.transcript = t
	select {
	case <-e.published:
	default:
		close(e.published)
	}
}

// Get returns the stored transcript without waiting, or nil if absent.
func (s *Store) Get(userID int64) *Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e.transcript
	}
	return nil
}

// Remove clears the stored transcript and re-arms the signal so future
// waiters block for the next session instead of seeing a stale wake-up.
func (s *Store) Remove(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		e.transcript = nil
		e.published = make(chan struct{})
	}
}

// Await blocks until a usable transcript is available for the user, up to
// timeout. A transcript with no spoken content counts as absent; waiters
// hold out for one that has turns. The signal fires when Publish closes the
// channel, but the write itself races with the wake-up under load, so after
// the signal the value is re-checked a bounded number of times before giving
// up. On timeout one final read is made in case the transcript landed at the
// last moment.
func (s *Store) Await(ctx context.Context, userID int64, timeout time.Duration) *Transcript {
	if t := s.ready(userID); t != nil {
		metrics.TranscriptWaitsTotal.WithLabelValues("immediate").Inc()
		return t
	}

	s.mu.Lock()
	published := s.entryLocked(userID).published
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-published:
		time.Sleep(settleDelay)
		for i := 0; i < verifyAttempts; i++ {
			if t := s.ready(userID); t != nil {
				metrics.TranscriptWaitsTotal.WithLabelValues("signaled").Inc()
				return t
			}
			time.Sleep(verifyDelay)
		}
		slog.Warn("transcript: signal fired but no transcript materialized", "user_id", userID)
	case <-timer.C:
	case <-ctx.Done():
		metrics.TranscriptWaitsTotal.WithLabelValues("canceled").Inc()
		return nil
	}

	if t := s.ready(userID); t != nil {
		metrics.TranscriptWaitsTotal.WithLabelValues("late").Inc()
		return t
	}
	metrics.TranscriptWaitsTotal.WithLabelValues("timeout").Inc()
	return nil
}

// ready returns the stored transcript only when it has spoken content.
func (s *Store) ready(userID int64) *Transcript {
	if t := s.Get(userID); t != nil && !t.Empty() {
		return t
	}
	return nil
}
