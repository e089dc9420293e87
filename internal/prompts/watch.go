// SPDX-License-Identifier: MIT

package prompts

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the prompts file whenever it changes on disk. It blocks until
// ctx is cancelled and is intended to run in its own goroutine. Reload
// failures keep the previous snapshot.
func (s *Store) Watch(ctx context.Context, path string, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors typically replace the file via rename,
	// which drops a watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	logger.Info().
		Str("event", "prompts.watch_started").
		Str("path", path).
		Msg("watching prompts file for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := s.LoadFile(path); err != nil {
				logger.Warn().
					Err(err).
					Str("event", "prompts.reload_failed").
					Msg("prompts file changed but reload failed, keeping previous texts")
				continue
			}
			logger.Info().
				Str("event", "prompts.reloaded").
				Msg("prompts file reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().
				Err(err).
				Str("event", "prompts.watch_error").
				Msg("prompts watcher error")
		}
	}
}
