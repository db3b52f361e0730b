package consts

import "time"

// Buffer sizes for various operations
const (
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
)

// LLM default configurations
const (
	// DefaultMaxTokens is the default maximum tokens for LLM responses
	DefaultMaxTokens = 4096
	// DefaultMaxTurns bounds the number of model turns in one tool exchange
	DefaultMaxTurns = 10
)

// Tool server limits
const (
	// MaxToolResultBytes caps the tool output handed back to the model
	MaxToolResultBytes = 200_000
	// DefaultFetchMaxBytes caps the body read by the fetch tool server
	DefaultFetchMaxBytes = 1_000_000
	// DefaultBrowserMaxChars caps the article text returned by the browser tool server
	DefaultBrowserMaxChars = 20_000
)

// Timeouts for various operations
const (
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
	// Timeout60Seconds is a 60 second timeout (1 minute)
	Timeout60Seconds = 60 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
	// Timeout5Minutes is a 5 minute timeout
	Timeout5Minutes = 5 * time.Minute
)

// Scheduler intervals
const (
	// SchedulePollInterval is how often the scheduler checks the wall clock
	SchedulePollInterval = time.Minute
	// ScheduleCooldown is how long the scheduler sleeps after firing
	ScheduleCooldown = time.Hour
)

// File names shared across packages
const (
	// DefaultConfigFile is the default agent configuration path
	DefaultConfigFile = "agent.json"
	// SystemPromptFile is the optional system prompt stored next to the config
	SystemPromptFile = "PROMPT.md"
	// HistoryFile is the SQLite run history stored in the output directory
	HistoryFile = "history.db"
	// DefaultListPattern matches summaries produced by the canned tasks
	DefaultListPattern = "tldr_*.md"
)
