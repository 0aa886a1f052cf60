/*
Copyright © 2026 Fariba Mohammaditabar

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as
	published by the Free Software Foundation, either version 3 of the
	License, or (at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce coalesces the burst of filesystem events an editor produces
// when it saves a file.
const debounce = 500 * time.Millisecond

// Watch re-runs the pipeline whenever the input table or metadata source
// changes. The parent directories are watched, not the files themselves,
// because most editors replace a saved file instead of writing in place.
// A failing run is logged and the watch continues; only context
// cancellation or a broken watcher ends the loop.
func Watch(ctx context.Context, log zerolog.Logger, run func(context.Context) error, paths ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		watched[abs] = true

		dir := filepath.Dir(abs)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add %s into watcher: %w", dir, err)
		}
		log.Info().Str("path", abs).Msg("watching for changes")
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				log.Info().Str("filename", event.Name).Str("operation", event.Op.String()).Msg("input changed. scheduling run")
				timer.Reset(debounce)
			}

		case <-timer.C:
			if err := run(ctx); err != nil {
				log.Error().Err(err).Msg("pipeline run failed. still watching")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("filesystem watcher is facing some errors")
		}
	}
}
