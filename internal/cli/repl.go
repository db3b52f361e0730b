// Package cli implements the interactive command loop.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/history"
	"github.com/codefionn/tldrbot/internal/logger"
)

// listLimit is how many summaries the list command shows.
const listLimit = 5

// historyLimit is how many runs the history command shows.
const historyLimit = 10

const goodbye = "Goodbye!"

// Tasks is the work the REPL can start.
type Tasks interface {
	Daily(ctx context.Context) (string, error)
	Multi(ctx context.Context) (string, error)
	AI(ctx context.Context) (string, error)
	Custom(ctx context.Context, prompt, prefix string) (string, error)
	List() ([]string, error)
	Latest() (string, bool, error)
}

// Documents reads saved summaries. An empty name means the latest one.
type Documents interface {
	Read(name string) (content string, path string, err error)
}

// RunHistory lists past runs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Options configures NewREPL.
type Options struct {
	In  io.Reader
	Out io.Writer

	Documents Documents

	// History is nil when run history is disabled.
	History RunHistory

	Clipboard Clipboard

	// Render formats markdown for show. Defaults to glamour on a terminal
	// and plain text otherwise.
	Render MarkdownRenderer
}

// REPL reads commands line by line until quit, EOF or cancellation.
type REPL struct {
	tasks     Tasks
	in        io.Reader
	out       io.Writer
	docs      Documents
	history   RunHistory
	clipboard Clipboard
	render    MarkdownRenderer
	width     int
	log       *logger.Logger
}

// NewREPL creates a REPL.
func NewREPL(tasks Tasks, opts Options) *REPL {
	r := &REPL{
		tasks:     tasks,
		in:        opts.In,
		out:       opts.Out,
		docs:      opts.Documents,
		history:   opts.History,
		clipboard: opts.Clipboard,
		render:    opts.Render,
		width:     defaultWidth,
		log:       logger.Global().WithPrefix("repl"),
	}
	if r.out == nil {
		r.out = io.Discard
	}
	width, isTerminal := terminalWidth(r.out)
	if isTerminal {
		r.width = width
	}
	if r.render == nil {
		if isTerminal {
			r.render = GlamourRenderer
		} else {
			r.render = PlainRenderer
		}
	}
	return r
}

type inputLine struct {
	text string
	err  error
}

// Run prints the banner and handles commands until the user quits, input
// ends or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	r.println(titleStyle.Render("TLDR Bot - Interactive Mode"))
	r.println(mutedStyle.Render("Commands: daily, multi, ai, list, latest, show, copy, custom, history, quit"))

	lines := make(chan inputLine)
	go r.readLines(ctx, lines)

	for {
		r.printf("\n%s ", promptStyle.Render(">"))

		var line inputLine
		select {
		case <-ctx.Done():
			r.println("\n" + goodbye)
			return nil
		case l, ok := <-lines:
			if !ok {
				r.println("\n" + goodbye)
				return nil
			}
			line = l
		}
		if line.err != nil {
			r.println("\n" + goodbye)
			return fmt.Errorf("failed to read input: %w", line.err)
		}

		if quit := r.Execute(ctx, line.text); quit {
			r.println(goodbye)
			return nil
		}
		if ctx.Err() != nil {
			r.println(goodbye)
			return nil
		}
	}
}

func (r *REPL) readLines(ctx context.Context, lines chan<- inputLine) {
	defer close(lines)
	if r.in == nil {
		return
	}
	scanner := bufio.NewScanner(r.in)
	// Custom prompts can be pasted in as one long line.
	scanner.Buffer(make([]byte, 0, consts.BufferSize64KB), consts.BufferSize1MB)
	for scanner.Scan() {
		select {
		case lines <- inputLine{text: scanner.Text()}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case lines <- inputLine{err: err}:
		case <-ctx.Done():
		}
	}
}

// Execute handles one command line and reports whether the REPL should exit.
// Failures, panics included, are printed and never end the loop.
func (r *REPL) Execute(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("command %q panicked: %v\n%s", command, p, debug.Stack())
			r.println(errorStyle.Render("Error:") + " " + fmt.Sprintf("internal error: %v", p))
			quit = false
		}
	}()

	var err error
	switch command {
	case "quit", "exit", "q":
		return true
	case "daily", "d":
		err = r.runTask(ctx, r.tasks.Daily)
	case "multi", "m":
		err = r.runTask(ctx, r.tasks.Multi)
	case "ai", "a":
		err = r.runTask(ctx, r.tasks.AI)
	case "custom":
		err = r.custom(ctx, line, fields)
	case "list", "l":
		err = r.list()
	case "latest":
		err = r.latest()
	case "show", "s":
		err = r.show(strings.Join(args, " "))
	case "copy", "c":
		err = r.copy(strings.Join(args, " "))
	case "history":
		err = r.showHistory(ctx)
	case "help", "h", "?":
		r.help()
	default:
		r.println(errorStyle.Render("Unknown command.") + " Type 'help' for options.")
	}

	if err != nil {
		r.log.Warn("command %q failed: %v", command, err)
		r.println(errorStyle.Render("Error:") + " " + err.Error())
	}
	return false
}

func (r *REPL) runTask(ctx context.Context, task func(context.Context) (string, error)) error {
	r.println(mutedStyle.Render("Generating summary..."))
	start := time.Now()
	path, err := task(ctx)
	r.println("")
	if err != nil {
		return err
	}
	r.println(successStyle.Render("Summary complete!") + " " + mutedStyle.Render(fmt.Sprintf("(%s)", time.Since(start).Round(time.Second))))
	r.println("Saved: " + path)
	return nil
}

func (r *REPL) custom(ctx context.Context, line string, fields []string) error {
	if len(fields) < 3 {
		return errors.New("usage: custom <prefix> <prompt>")
	}
	prefix := fields[1]

	// The prompt keeps its original spacing and case.
	prompt := strings.TrimSpace(line)
	for _, word := range fields[:2] {
		prompt = strings.TrimSpace(strings.TrimPrefix(prompt, word))
	}

	return r.runTask(ctx, func(ctx context.Context) (string, error) {
		return r.tasks.Custom(ctx, prompt, prefix)
	})
}

func (r *REPL) list() error {
	files, err := r.tasks.List()
	if err != nil {
		return err
	}
	r.println(fmt.Sprintf("%d summaries:", len(files)))
	if len(files) > listLimit {
		files = files[len(files)-listLimit:]
	}
	for _, f := range files {
		r.println("  - " + filepath.Base(f))
	}
	return nil
}

func (r *REPL) latest() error {
	path, ok, err := r.tasks.Latest()
	if err != nil {
		return err
	}
	if !ok {
		r.println(mutedStyle.Render("No summaries yet."))
		return nil
	}
	r.println(path)
	return nil
}

func (r *REPL) show(name string) error {
	if r.docs == nil {
		return errors.New("no output store configured")
	}
	content, path, err := r.docs.Read(name)
	if err != nil {
		return err
	}
	rendered, err := r.render(content, r.width)
	if err != nil {
		r.log.Debug("markdown render failed, printing raw: %v", err)
		rendered = content
	}
	r.println(mutedStyle.Render(path))
	r.println(strings.TrimRight(rendered, "\n"))
	return nil
}

func (r *REPL) copy(name string) error {
	if r.docs == nil {
		return errors.New("no output store configured")
	}
	if r.clipboard == nil {
		return errors.New("clipboard is not available")
	}
	content, path, err := r.docs.Read(name)
	if err != nil {
		return err
	}
	if err := r.clipboard.Write(content); err != nil {
		return err
	}
	r.println(successStyle.Render("Copied ") + filepath.Base(path) + " to clipboard")
	return nil
}

func (r *REPL) showHistory(ctx context.Context) error {
	if r.history == nil {
		r.println(mutedStyle.Render("History is disabled. Start with --history to record runs."))
		return nil
	}
	runs, err := r.history.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		r.println(mutedStyle.Render("No runs recorded."))
		return nil
	}
	for _, run := range runs {
		status := successStyle.Render(run.Status)
		detail := filepath.Base(run.Path)
		if run.Status != history.StatusSucceeded {
			status = errorStyle.Render(run.Status)
			detail = run.Error
		}
		r.println(fmt.Sprintf("%s  %-7s %s %s  %s",
			run.StartedAt.Format("2006-01-02 15:04"),
			run.Task,
			status,
			mutedStyle.Render(run.Duration().Round(time.Second).String()),
			detail,
		))
	}
	return nil
}

var helpEntries = []struct{ command, description string }{
	{"daily (d)", "Generate the daily TLDR summary"},
	{"multi (m)", "Generate a summary across the main, AI, crypto and design newsletters"},
	{"ai (a)", "Generate an AI-focused summary"},
	{"custom <prefix> <prompt>", "Run your own prompt and save it as <prefix>_<date>.md"},
	{"list (l)", "List the latest summaries"},
	{"latest", "Print the path of the newest summary"},
	{"show [file]", "Render a summary, the newest one by default"},
	{"copy [file]", "Copy a summary to the clipboard"},
	{"history", "Show recent runs"},
	{"quit (q)", "Exit"},
}

func (r *REPL) help() {
	r.println("Commands:")
	indent := 28
	descWidth := r.width - indent - 2
	if descWidth < 20 {
		descWidth = 20
	}
	for _, entry := range helpEntries {
		lines := strings.Split(wordwrap.String(entry.description, descWidth), "\n")
		r.println(fmt.Sprintf("  %s%s%s", commandStyle.Render(entry.command), strings.Repeat(" ", indent-len(entry.command)), lines[0]))
		for _, l := range lines[1:] {
			r.println(strings.Repeat(" ", indent+2) + l)
		}
	}
}

func (r *REPL) println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

func (r *REPL) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
