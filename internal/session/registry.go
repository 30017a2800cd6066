package session

import (
	"log/slog"
	"sync"
	"time"
)

// ShutdownDrainTimeout bounds how long shutdown waits for in-flight save
// sequences after the HTTP server has stopped. Slightly more than the save
// deadline so a save that is going to finish always gets to.
const ShutdownDrainTimeout = saveTimeout + 5*time.Second

// Registry tracks the runner for each user's live session. One session per
// user: a second start while a runner is still registered is refused and the
// caller decides what to tell the host. Registered runners are counted so
// shutdown can wait for their save sequences via Drain.
type Registry struct {
	mu      sync.RWMutex
	runners map[int64]*Runner
	wg      sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[int64]*Runner)}
}

// Register adds a runner for the user. Returns false if one is already registered.
func (r *Registry) Register(userID int64, runner *Runner) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runners[userID]; exists {
		return false
	}
	r.runners[userID] = runner
	r.wg.Add(1)
	return true
}

// Unregister removes the user's runner. Callers invoke it after Run returns,
// so an unregistered user's save sequence is known to be complete.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runners[userID]; ok {
		delete(r.runners, userID)
		r.wg.Done()
	}
}

// Get returns the user's runner, or nil if no session is live.
func (r *Registry) Get(userID int64) *Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runners[userID]
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runners)
}

// Drain blocks until every registered runner has unregistered, up to
// timeout. Returns false if runners were still live when the timeout fired.
func (r *Registry) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		slog.Warn("session: drain timed out with saves still in flight",
			"active", r.ActiveCount())
		return false
	}
}
