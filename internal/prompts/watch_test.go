// SPDX-License-Identifier: MIT

package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notice: \"Pirmais.\"\n"), 0o600))

	s := NewStore()
	require.NoError(t, s.LoadFile(path))
	require.Equal(t, "Pirmais.", s.Current().Notice)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Watch(ctx, path, zerolog.Nop())
	}()

	// Give the watcher a moment to install before rewriting the file.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("notice: \"Otrais.\"\n"), 0o600))

	require.Eventually(t, func() bool {
		return s.Current().Notice == "Otrais."
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchBadReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notice: \"Derīgs.\"\n"), 0o600))

	s := NewStore()
	require.NoError(t, s.LoadFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Watch(ctx, path, zerolog.Nop())
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0o600))

	// The broken file never replaces the working snapshot.
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, "Derīgs.", s.Current().Notice)

	cancel()
	<-done
}
