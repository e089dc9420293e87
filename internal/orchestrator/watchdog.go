// SPDX-License-Identifier: MIT

package orchestrator

import (
	"sync"
	"time"
)

// watchdog guards the window between requesting an utterance and hearing its
// audio start. At most one timer is armed at a time; a fired timer posts the
// guarded response id to Fired. Consumers must treat stale ids (audio already
// confirmed, phase advanced) as no-ops.
type watchdog struct {
	mu    sync.Mutex
	timer *time.Timer
	fired chan string
}

func newWatchdog() *watchdog {
	return &watchdog{fired: make(chan string, 1)}
}

// Arm starts the timer for responseID, replacing any previous timer.
func (w *watchdog) Arm(responseID string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(d, func() {
		select {
		case w.fired <- responseID:
		default:
		}
	})
}

// Disarm stops the current timer, if any. A timer that already fired may
// still have posted to Fired; the consumer filters by response id.
func (w *watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Fired delivers the response ids of expired timers.
func (w *watchdog) Fired() <-chan string {
	return w.fired
}
