// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"sync"
)

// Tracker keeps a handle on every running call session so shutdown can
// cancel them and wait for their goroutines to drain.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	cancel context.CancelFunc
	once   sync.Once
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*trackedSession)}
}

// Register records a running session for callID and returns its unregister
// function. Registering the same call ID twice cancels and replaces the old
// entry; the registry gate makes that a pathological case, not a normal one.
func (t *Tracker) Register(callID string, cancel context.CancelFunc) (unregister func()) {
	entry := &trackedSession{cancel: cancel}

	t.mu.Lock()
	old := t.sessions[callID]
	t.sessions[callID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		old.cancel()
		t.unregister(callID, old)
	}

	return func() { t.unregister(callID, entry) }
}

func (t *Tracker) unregister(callID string, entry *trackedSession) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions[callID] == entry {
			delete(t.sessions, callID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

// Count returns the number of currently tracked sessions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// CancelAll cancels every tracked session and returns how many were signalled.
func (t *Tracker) CancelAll() (canceled int) {
	var cancels []context.CancelFunc
	t.mu.Lock()
	for _, entry := range t.sessions {
		cancels = append(cancels, entry.cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until all tracked sessions have unregistered or ctx expires.
// It reports whether the tracker fully drained.
func (t *Tracker) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
