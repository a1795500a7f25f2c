package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"intellidraw/internal/infrastructure/logger"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. It runs until ctx is cancelled.
//
// A failed reload is logged and onChange is not called, so the previous
// config stays active.
func Watch(ctx context.Context, path string, log logger.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log = log.WithFields(logger.Fields{"component": "config", "path": path})
	log.Info("Watching config for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves arrive as Create after a rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Errorf("Config reload failed, keeping previous config: %v", err)
				continue
			}

			log.Info("Config reloaded")
			onChange(cfg)

			// Re-add in case the save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("Config watcher error: %v", err)
		}
	}
}
