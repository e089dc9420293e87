// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"sync"
	"time"
)

type callState int

const (
	stateAccepting callState = iota
	stateAccepted
	stateFailed
	stateFinished
)

type entry struct {
	state     callState
	expiresAt time.Time
}

// Memory is the in-process Registry implementation. Entries are evicted by a
// background janitor once their TTL elapses.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an in-memory registry with the given entry TTL.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) janitor() {
	defer close(m.done)

	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for id, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) TryBeginAccept(_ context.Context, callID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[callID]; ok && time.Now().Before(e.expiresAt) {
		switch e.state {
		case stateAccepting:
			return AlreadyInFlight, nil
		case stateFailed:
			return AlreadyFailed, nil
		default:
			return AlreadyAccepted, nil
		}
	}

	m.entries[callID] = &entry{
		state:     stateAccepting,
		expiresAt: time.Now().Add(m.ttl),
	}
	return Proceed, nil
}

func (m *Memory) MarkAccepted(_ context.Context, callID string) error {
	return m.setState(callID, stateAccepted)
}

func (m *Memory) MarkAcceptFailed(_ context.Context, callID string) error {
	return m.setState(callID, stateFailed)
}

func (m *Memory) Finish(_ context.Context, callID string) error {
	return m.setState(callID, stateFinished)
}

func (m *Memory) setState(callID string, s callState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[callID]; ok {
		e.state = s
	}
	return nil
}

// Close stops the janitor goroutine.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
	return nil
}
