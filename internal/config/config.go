package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/logger"
)

// Default values written to a freshly materialized agent.json.
const (
	DefaultModel     = "Qwen/Qwen2.5-72B-Instruct"
	DefaultProvider  = "nebius"
	DefaultOutputDir = "./summaries"
)

// ServerDescriptor names a tool server kind plus its kind-specific settings.
type ServerDescriptor struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// Config is the agent configuration backed by a JSON file.
type Config struct {
	Model       string             `json:"model"`
	Provider    string             `json:"provider"`
	Servers     []ServerDescriptor `json:"servers"`
	OutputDir   string             `json:"output_dir"`
	BaseURL     string             `json:"base_url,omitempty"`
	MaxTurns    int                `json:"max_turns,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`

	mu           sync.RWMutex
	path         string
	systemPrompt string
	hasPrompt    bool
}

// DefaultConfig returns the built-in configuration: a Hugging Face hosted model
// driving the Playwright MCP server.
func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		Provider: DefaultProvider,
		Servers: []ServerDescriptor{
			{
				Type: "stdio",
				Config: map[string]interface{}{
					"command": "npx",
					"args":    []interface{}{"@playwright/mcp@latest"},
				},
			},
		},
		OutputDir: DefaultOutputDir,
	}
}

// Load reads the configuration at path. A missing file is replaced by the
// defaults, which are persisted. An unparseable file yields the defaults and a
// warning, and the file is left untouched.
func Load(path string) (*Config, error) {
	if path == "" {
		path = consts.DefaultConfigFile
	}

	cfg := &Config{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConfig()
		cfg.path = path
		if err := cfg.Save(); err != nil {
			logger.Warn("could not write default config to %s: %v", path, err)
		} else {
			logger.Info("created default config at %s", path)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		// Decoded into an empty Config so descriptors are never merged with
		// the default server.
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("failed to parse config %s, using defaults: %v", path, err)
			cfg = DefaultConfig()
			cfg.path = path
		}
	}

	cfg.fillDefaults()

	if prompt, ok := LoadSystemPrompt(path); ok {
		cfg.systemPrompt = prompt
		cfg.hasPrompt = true
	}

	return cfg, nil
}

// fillDefaults restores keys that were present but empty.
func (c *Config) fillDefaults() {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if strings.TrimSpace(c.Provider) == "" {
		c.Provider = DefaultProvider
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Servers == nil {
		c.Servers = DefaultConfig().Servers
	}
}

// PromptPath returns the PROMPT.md path that belongs to the config at configPath.
func PromptPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), consts.SystemPromptFile)
}

// LoadSystemPrompt reads PROMPT.md next to the config file. It reports false
// when the file is absent, empty or unreadable.
func LoadSystemPrompt(configPath string) (string, bool) {
	data, err := os.ReadFile(PromptPath(configPath))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to read system prompt: %v", err)
		}
		return "", false
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", false
	}
	return prompt, true
}

// Path returns the backing file.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Save writes the configuration as indented JSON to its backing file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveLocked()
}

func (c *Config) saveLocked() error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(c.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Update applies fn and persists the result.
func (c *Config) Update(fn func(*Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
	return c.saveLocked()
}

// SystemPrompt returns the system prompt and whether one is set.
func (c *Config) SystemPrompt() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.systemPrompt, c.hasPrompt
}

// SetSystemPrompt replaces the in-memory system prompt. An empty prompt clears it.
func (c *Config) SetSystemPrompt(prompt string) {
	prompt = strings.TrimSpace(prompt)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemPrompt = prompt
	c.hasPrompt = prompt != ""
}

// Settings returns a copy of the persisted fields for use outside the lock.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	servers := make([]ServerDescriptor, len(c.Servers))
	copy(servers, c.Servers)

	s := Settings{
		Model:     c.Model,
		Provider:  c.Provider,
		Servers:   servers,
		OutputDir: c.OutputDir,
		BaseURL:   c.BaseURL,
		MaxTurns:  c.MaxTurns,
	}
	if c.Temperature != nil {
		t := *c.Temperature
		s.Temperature = &t
	}
	if s.MaxTurns <= 0 {
		s.MaxTurns = consts.DefaultMaxTurns
	}
	return s
}

// Settings is a lock-free snapshot of Config.
type Settings struct {
	Model       string
	Provider    string
	Servers     []ServerDescriptor
	OutputDir   string
	BaseURL     string
	MaxTurns    int
	Temperature *float64
}

// StateDir returns the per-user state directory used for logs.
func StateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "tldrbot")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "tldrbot")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "tldrbot")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "tldrbot")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "tldrbot")
	}
}

// DefaultLogPath is the log file used when --log-path is not given.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "tldrbot.log")
}
