// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractTest runs the Registry contract shared by all implementations.
func contractTest(t *testing.T, r Registry) {
	t.Helper()
	ctx := context.Background()

	// First delivery wins.
	d, err := r.TryBeginAccept(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)

	// Duplicate while the accept is in flight.
	d, err = r.TryBeginAccept(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyInFlight, d)

	// Duplicate after acceptance.
	require.NoError(t, r.MarkAccepted(ctx, "call-1"))
	d, err = r.TryBeginAccept(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyAccepted, d)

	// Duplicate after the call finished still no-ops.
	require.NoError(t, r.Finish(ctx, "call-1"))
	d, err = r.TryBeginAccept(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyAccepted, d)

	// A failed accept is terminal for that call.
	d, err = r.TryBeginAccept(ctx, "call-2")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)
	require.NoError(t, r.MarkAcceptFailed(ctx, "call-2"))
	d, err = r.TryBeginAccept(ctx, "call-2")
	require.NoError(t, err)
	assert.Equal(t, AlreadyFailed, d)

	// Unrelated calls are independent.
	d, err = r.TryBeginAccept(ctx, "call-3")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)
}

func TestMemoryContract(t *testing.T) {
	r := NewMemory(time.Hour)
	defer func() { _ = r.Close() }()
	contractTest(t, r)
}

func TestMemoryConcurrentDuplicates(t *testing.T) {
	r := NewMemory(time.Hour)
	defer func() { _ = r.Close() }()

	const n = 32
	var wg sync.WaitGroup
	proceeds := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := r.TryBeginAccept(context.Background(), "same-call")
			require.NoError(t, err)
			if d == Proceed {
				proceeds <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(proceeds)

	count := 0
	for range proceeds {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent delivery may proceed")
}

func TestMemoryTTLEviction(t *testing.T) {
	r := NewMemory(30 * time.Millisecond)
	defer func() { _ = r.Close() }()
	ctx := context.Background()

	d, err := r.TryBeginAccept(ctx, "short-lived")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)

	// After the TTL the entry no longer gates a fresh delivery, even before
	// the janitor has swept it.
	time.Sleep(60 * time.Millisecond)
	d, err = r.TryBeginAccept(ctx, "short-lived")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)
}

func TestRedisContract(t *testing.T) {
	srv := miniredis.RunT(t)

	r := NewRedis(srv.Addr(), time.Hour)
	defer func() { _ = r.Close() }()

	require.NoError(t, r.Ping(context.Background()))
	contractTest(t, r)
}

func TestRedisTTLEviction(t *testing.T) {
	srv := miniredis.RunT(t)

	r := NewRedis(srv.Addr(), 50*time.Millisecond)
	defer func() { _ = r.Close() }()
	ctx := context.Background()

	d, err := r.TryBeginAccept(ctx, "call-ttl")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)

	srv.FastForward(100 * time.Millisecond)

	d, err = r.TryBeginAccept(ctx, "call-ttl")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "proceed", Proceed.String())
	assert.Equal(t, "already_in_flight", AlreadyInFlight.String())
	assert.Equal(t, "already_accepted", AlreadyAccepted.String())
	assert.Equal(t, "already_failed", AlreadyFailed.String())
}
