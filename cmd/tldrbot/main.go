package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codefionn/tldrbot/internal/agent"
	"github.com/codefionn/tldrbot/internal/cli"
	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/history"
	"github.com/codefionn/tldrbot/internal/llm"
	"github.com/codefionn/tldrbot/internal/logger"
	"github.com/codefionn/tldrbot/internal/mcp"
	"github.com/codefionn/tldrbot/internal/output"
	"github.com/codefionn/tldrbot/internal/provider"
	"github.com/codefionn/tldrbot/internal/scheduler"
	"github.com/codefionn/tldrbot/internal/securemem"
	"github.com/codefionn/tldrbot/internal/tasks"
)

// options holds the parsed command line.
type options struct {
	configPath string
	daily      bool
	multi      bool
	ai         bool
	schedule   int
	cron       string
	list       bool
	logLevel   string
	logPath    string
	history    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()
	v.SetEnvPrefix("TLDRBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "tldrbot",
		Short: "TLDR newsletter summarizer agent",
		Long: `tldrbot asks a hosted language model to browse tldr.tech through MCP tool
servers and writes the summary to a markdown file.

Without an action flag it starts an interactive prompt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.logLevel = v.GetString("log-level")
			opts.logPath = v.GetString("log-path")
			opts.history = v.GetBool("history")

			if cmd.Flags().Changed("schedule") {
				if _, err := scheduler.NewHourTrigger(opts.schedule); err != nil {
					return fmt.Errorf("invalid --schedule: %w", err)
				}
			} else {
				opts.schedule = -1
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", consts.DefaultConfigFile, "Config file path")
	flags.BoolVar(&opts.daily, "daily", false, "Generate daily summary")
	flags.BoolVar(&opts.multi, "multi", false, "Generate multi-source summary")
	flags.BoolVar(&opts.ai, "ai", false, "Generate AI-focused summary")
	flags.IntVar(&opts.schedule, "schedule", -1, "Schedule daily runs at HOUR (0-23)")
	flags.StringVar(&opts.cron, "cron", "", "Schedule daily runs with a cron expression")
	flags.BoolVar(&opts.list, "list", false, "List existing summaries")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, none)")
	flags.String("log-path", config.DefaultLogPath(), "Log file path")
	flags.Bool("history", false, "Record runs in history.db inside the output directory")

	for _, name := range []string{"log-level", "log-path", "history"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	return cmd
}

func run(ctx context.Context, opts *options) (err error) {
	if err := logger.Init(logger.ParseLevel(opts.logLevel), opts.logPath, os.Stderr); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
		securemem.Purge()
	}()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings := cfg.Settings()
	store := output.New(settings.OutputDir)

	if opts.list {
		return listSummaries(store)
	}

	var (
		recorder tasks.Recorder
		recent   cli.RunHistory
	)
	if opts.history {
		db, err := history.Open(filepath.Join(settings.OutputDir, consts.HistoryFile))
		if err != nil {
			return err
		}
		defer db.Close()
		recorder, recent = db, db
	}

	info, err := provider.Lookup(settings.Provider)
	if err != nil {
		return err
	}
	ring := securemem.NewKeyring()
	defer ring.Clear()
	apiKey, err := provider.LoadAPIKey(ring, settings.Provider)
	if err != nil {
		return err
	}

	client, err := llm.NewClient(ctx, llm.ClientOptions{
		Provider: info,
		APIKey:   apiKey,
		Model:    settings.Model,
		BaseURL:  settings.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", info.Name, err)
	}
	logger.Info("using model %s via %s", client.ModelName(), info.Name)

	manager := mcp.NewDefaultManager(settings.Servers)
	defer func() {
		if closeErr := manager.Close(); closeErr != nil {
			logger.Warn("closing tool servers: %v", closeErr)
		}
	}()

	session := agent.NewSession(client, manager, agent.SessionOptions{
		MaxTurns:    settings.MaxTurns,
		MaxTokens:   consts.DefaultMaxTokens,
		Temperature: settings.Temperature,
	})
	executor := agent.NewExecutor(session, agent.ExecutorOptions{
		SystemPrompt: func() string {
			prompt, _ := cfg.SystemPrompt()
			return prompt
		},
		Echo: os.Stdout,
	})
	runner := tasks.NewRunner(executor, store, tasks.Options{
		History: recorder,
		CountTokens: func(text string) (int, bool) {
			return llm.EstimateTokens(client.ModelName(), text)
		},
	})

	switch {
	case opts.daily:
		return runOnce(ctx, runner.Daily)
	case opts.multi:
		return runOnce(ctx, runner.Multi)
	case opts.ai:
		return runOnce(ctx, runner.AI)
	}

	if err := config.WatchSystemPrompt(ctx, cfg); err != nil {
		logger.Warn("system prompt reload disabled: %v", err)
	}

	if opts.schedule >= 0 || opts.cron != "" {
		return runScheduled(ctx, opts, runner)
	}

	repl := cli.NewREPL(runner, cli.Options{
		In:        os.Stdin,
		Out:       os.Stdout,
		Documents: store,
		History:   recent,
		Clipboard: &cli.SystemClipboard{},
	})
	return repl.Run(ctx)
}

func listSummaries(store *output.Store) error {
	files, err := store.List("")
	if err != nil {
		return err
	}
	fmt.Printf("Found %d summaries:\n", len(files))
	for _, f := range files {
		fmt.Printf("  - %s\n", filepath.Base(f))
	}
	return nil
}

func runOnce(ctx context.Context, task func(context.Context) (string, error)) error {
	fmt.Println("Generating summary...")
	path, err := task(ctx)
	fmt.Println()
	if err != nil {
		return err
	}
	fmt.Printf("Summary complete! Saved: %s\n", path)
	return nil
}

func runScheduled(ctx context.Context, opts *options, runner *tasks.Runner) error {
	var (
		trigger   scheduler.Trigger
		schedOpts scheduler.Options
	)
	if opts.cron != "" {
		cronTrigger, err := scheduler.NewCronTrigger(opts.cron)
		if err != nil {
			return err
		}
		trigger = cronTrigger
		// Every matching minute is its own firing.
		schedOpts.Cooldown = time.Minute
		fmt.Printf("Scheduling daily summaries with %s (next: %s)\n", trigger, cronTrigger.Next(time.Now()).Format(time.RFC1123))
	} else {
		hourTrigger, err := scheduler.NewHourTrigger(opts.schedule)
		if err != nil {
			return err
		}
		trigger = hourTrigger
		fmt.Printf("Scheduling daily summaries at %02d:00\n", opts.schedule)
	}

	sched := scheduler.New(trigger, func(ctx context.Context) error {
		path, err := runner.Daily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scheduled run failed: %v\n", err)
			return err
		}
		fmt.Printf("\nSaved: %s\n", path)
		return nil
	}, schedOpts)

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
