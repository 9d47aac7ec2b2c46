package shelf

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ayush/bookshelf/backend/internal/models"
)

type entry struct {
	state    *UserState
	lastSeen time.Time
	// loadMu serializes loads; loaded is guarded by Registry.mu.
	loadMu sync.Mutex
	loaded bool
}

// Registry owns one UserState per session id so every request of a
// session shares the same cache.
type Registry struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(opts Options, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{opts: opts, logger: logger, entries: make(map[string]*entry)}
}

// Acquire returns the session's UserState, loading it until one load
// succeeds. Concurrent callers wait for a load in progress. A failed load
// is logged and retried by the next Acquire; the state is still returned
// with whatever it cached before.
func (r *Registry) Acquire(ctx context.Context, session *models.Session, client *Client) (*UserState, error) {
	r.mu.Lock()
	e, ok := r.entries[session.ID]
	if !ok {
		e = &entry{state: New(r.opts, r.logger.With("session", session.ID))}
		r.entries[session.ID] = e
	}
	e.lastSeen = time.Now()
	r.mu.Unlock()

	r.load(ctx, e, session, client)
	return e.state, nil
}

// load runs UpdateState unless an earlier load succeeded. It outlives
// the caller's cancellation so an abandoned request still fills the cache.
func (r *Registry) load(ctx context.Context, e *entry, session *models.Session, client *Client) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	r.mu.Lock()
	done := e.loaded
	r.mu.Unlock()
	if done {
		return
	}

	user := &models.User{ID: session.UserID, Email: session.Email}
	if err := e.state.UpdateState(context.WithoutCancel(ctx), session, client, user); err != nil {
		r.logger.Warn("session load failed", "user_id", session.UserID, "err", err)
		return
	}

	r.mu.Lock()
	e.loaded = true
	r.mu.Unlock()
}

// Drop forgets a session's state.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops states not acquired within maxIdle and returns how many
// were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				r.logger.Debug("swept idle sessions", "count", n)
			}
		}
	}
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *UserState) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the UserState stored by NewContext.
func FromContext(ctx context.Context) (*UserState, bool) {
	s, ok := ctx.Value(contextKey{}).(*UserState)
	return s, ok
}
