package session

import (
	"context"
	"sync"
	"time"

	"github.com/talktivity/voicebridge/internal/metrics"
	"github.com/talktivity/voicebridge/internal/quota"
	"github.com/talktivity/voicebridge/internal/transcript"
)

const saveTimeout = 30 * time.Second

// Runner supervises one live session: it re-checks the quota on a fixed
// interval using in-memory elapsed time (no per-tick database round trip for
// the elapsed part) and runs the save sequence exactly once, whichever of
// disconnect, quota exhaustion, or shutdown fires first.
type Runner struct {
	state *State
	quota *quota.Service
	saver *Saver

	checkInterval time.Duration

	discOnce   sync.Once
	disconnect chan struct{}
	endOnce    sync.Once
}

func NewRunner(state *State, q *quota.Service, saver *Saver, checkInterval time.Duration) *Runner {
	return &Runner{
		state:         state,
		quota:         q,
		saver:         saver,
		checkInterval: checkInterval,
		disconnect:    make(chan struct{}),
	}
}

// UpdateTranscript replaces the runner's transcript snapshot.
func (r *Runner) UpdateTranscript(t *transcript.Transcript) {
	r.state.SetTranscript(t)
}

// Disconnect signals that the learner left the room. Safe to call more than once.
func (r *Runner) Disconnect() {
	r.discOnce.Do(func() { close(r.disconnect) })
}

// Run blocks until the session ends, then performs the save sequence.
func (r *Runner) Run(ctx context.Context) {
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.disconnect:
			r.end(ctx, "disconnected")
			return
		case <-ctx.Done():
			r.end(ctx, "shutdown")
			return
		case <-ticker.C:
			elapsed := r.state.ElapsedSeconds(time.Now())
			if r.quota.Remaining(ctx, r.state.UserID, r.state.Kind, elapsed) <= 0 {
				r.end(ctx, "time_limit")
				return
			}
		}
	}
}

// end runs the save sequence at most once. The save gets a fresh deadline
// detached from the session context so a shutdown or disconnect cannot
// cancel the persistence it triggered.
func (r *Runner) end(ctx context.Context, reason string) {
	r.endOnce.Do(func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()

		r.saver.Save(saveCtx, r.state, reason)
		metrics.SessionsEndedTotal.WithLabelValues(string(r.state.Kind), reason).Inc()
	})
}
