package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/tldrbot/internal/logger"
)

// WatchSystemPrompt keeps cfg's system prompt in sync with PROMPT.md until ctx
// is cancelled. The config directory is watched rather than the file so that
// creating or deleting PROMPT.md is noticed too.
func WatchSystemPrompt(ctx context.Context, cfg *Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}

	promptPath := PromptPath(cfg.Path())
	if err := watcher.Add(filepath.Dir(promptPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(promptPath), err)
	}

	log := logger.Global().WithPrefix("config")
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(promptPath) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				prompt, _ := LoadSystemPrompt(cfg.Path())
				cfg.SetSystemPrompt(prompt)
				log.Info("system prompt reloaded (%d bytes)", len(prompt))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("prompt watcher error: %v", err)
			}
		}
	}()

	return nil
}
