package llm

import (
	"context"
)

// Message represents a chat message
type Message struct {
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	ToolCalls []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolID    string                   `json:"tool_id,omitempty"`
	ToolName  string                   `json:"tool_name,omitempty"` // Name of the tool for tool responses
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// CompletionRequest represents a single model turn.
type CompletionRequest struct {
	Messages []*Message `json:"messages"`
	// Tools holds OpenAI-style function definitions:
	// {"type": "function", "function": {"name", "description", "parameters"}}.
	Tools        []map[string]interface{} `json:"tools,omitempty"`
	Temperature  *float64                 `json:"temperature,omitempty"`
	MaxTokens    int                      `json:"max_tokens,omitempty"`
	SystemPrompt string                   `json:"system_prompt,omitempty"`
}

// CompletionResponse is the fully accumulated result of a turn.
type CompletionResponse struct {
	Content    string                   `json:"content"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	StopReason string                   `json:"stop_reason"`
	Usage      map[string]interface{}   `json:"usage,omitempty"`
}

// Client streams one model turn.
//
// Stream calls onDelta for every non-empty text chunk in arrival order and
// returns the accumulated response once the provider finishes the turn. Tool
// calls are only reported in the returned response. Providers that do not
// stream text may return content without ever calling onDelta. An error from
// onDelta aborts the stream and is returned unchanged.
type Client interface {
	Stream(ctx context.Context, req *CompletionRequest, onDelta func(chunk string) error) (*CompletionResponse, error)
	ModelName() string
}
