package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codefionn/tldrbot/internal/history"
	"github.com/codefionn/tldrbot/internal/logger"
	"github.com/codefionn/tldrbot/internal/output"
)

// ErrEmptyPrompt is returned by Custom when no prompt is given.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Executor turns a prompt into a document.
type Executor interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Recorder stores run history.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (string, error)
}

// Options configures NewRunner.
type Options struct {
	// History receives one record per run. Nil disables history.
	History Recorder

	// Now is the clock used for prompt dates and filenames.
	Now func() time.Time

	// CountTokens estimates the size of a finished summary for the log.
	CountTokens func(text string) (int, bool)
}

// Runner executes canned and custom tasks.
type Runner struct {
	exec        Executor
	store       *output.Store
	history     Recorder
	now         func() time.Time
	countTokens func(string) (int, bool)
	log         *logger.Logger
}

// NewRunner creates a Runner that saves into store.
func NewRunner(exec Executor, store *output.Store, opts Options) *Runner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		exec:        exec,
		store:       store,
		history:     opts.History,
		now:         now,
		countTokens: opts.CountTokens,
		log:         logger.Global().WithPrefix("tasks"),
	}
}

// Daily generates the daily TLDR summary.
func (r *Runner) Daily(ctx context.Context) (string, error) {
	return r.RunTask(ctx, Daily)
}

// Multi generates the multi-source summary.
func (r *Runner) Multi(ctx context.Context) (string, error) {
	return r.RunTask(ctx, Multi)
}

// AI generates the AI-focused summary.
func (r *Runner) AI(ctx context.Context) (string, error) {
	return r.RunTask(ctx, AI)
}

// RunTask renders t for today and runs it.
func (r *Runner) RunTask(ctx context.Context, t *Task) (string, error) {
	prompt, err := t.Prompt(r.now())
	if err != nil {
		return "", err
	}
	return r.run(ctx, t.Name, prompt, t.Prefix)
}

// Custom runs an arbitrary prompt and saves the result under prefix.
func (r *Runner) Custom(ctx context.Context, prompt, prefix string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || strings.ContainsAny(prefix, `/\`) {
		return "", fmt.Errorf("invalid filename prefix %q", prefix)
	}
	return r.run(ctx, "custom", prompt, prefix)
}

// List returns the canned summaries in the output directory.
func (r *Runner) List() ([]string, error) {
	return r.store.List("")
}

// Latest returns the newest canned summary.
func (r *Runner) Latest() (string, bool, error) {
	return r.store.Latest()
}

// Store returns the output store.
func (r *Runner) Store() *output.Store {
	return r.store
}

func (r *Runner) run(ctx context.Context, name, prompt, prefix string) (string, error) {
	started := r.now()
	r.log.Info("running %s task", name)

	content, err := r.exec.Run(ctx, prompt)
	var path string
	if err == nil {
		path, err = r.store.Save(content, output.BuildFilename(prefix, started.Format(output.DateLayout)))
	}

	run := history.Run{
		Task:       name,
		Prefix:     prefix,
		Path:       path,
		Status:     history.StatusSucceeded,
		Bytes:      len(content),
		StartedAt:  started,
		FinishedAt: r.now(),
	}
	if err != nil {
		run.Status = history.StatusFailed
		run.Error = err.Error()
		run.Bytes = 0
		r.log.Error("%s task failed: %v", name, err)
	} else if r.countTokens != nil {
		tokens, approx := r.countTokens(content)
		r.log.Info("%s task saved %s (%d bytes, ~%d tokens, approximate=%t)", name, path, len(content), tokens, approx)
	}
	r.record(ctx, run)

	if err != nil {
		return "", fmt.Errorf("%s task: %w", name, err)
	}
	return path, nil
}

func (r *Runner) record(ctx context.Context, run history.Run) {
	if r.history == nil {
		return
	}
	// The task context may already be cancelled; the record should still land.
	if _, err := r.history.Record(context.WithoutCancel(ctx), run); err != nil {
		r.log.Warn("failed to record run: %v", err)
	}
}
