package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/codefionn/tldrbot/internal/consts"
)

// ToolSpec is the static description of a tool: its name, what it does and
// the JSON schema of its parameters.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
}

// ToolExecutor runs a tool with decoded parameters.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) *ToolResult
}

// Tool combines ToolSpec and ToolExecutor.
type Tool interface {
	ToolSpec
	ToolExecutor
}

// StaticSpec is a ToolSpec backed by plain values. Remote tool servers
// describe their tools this way.
type StaticSpec struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]interface{}
}

func (s StaticSpec) Name() string        { return s.ToolName }
func (s StaticSpec) Description() string { return s.ToolDescription }
func (s StaticSpec) Parameters() map[string]interface{} {
	if s.Schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return s.Schema
}

// ToolCall represents a tool call from the LLM
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result"`
	Error  string      `json:"error,omitempty"`

	// UIResult is a short human readable line for progress output. The model
	// always receives Result.
	UIResult string `json:"ui_result,omitempty"`
}

// Errorf builds a failed result.
func Errorf(format string, args ...interface{}) *ToolResult {
	return &ToolResult{Error: fmt.Sprintf(format, args...)}
}

// Text renders the result for the model: strings verbatim, everything else
// as JSON, errors prefixed. Output is capped at MaxToolResultBytes.
func (r *ToolResult) Text() string {
	if r == nil {
		return "Error: tool returned no result"
	}

	var text string
	switch v := r.Result.(type) {
	case nil:
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			text = fmt.Sprintf("%v", v)
		} else {
			text = string(data)
		}
	}

	if r.Error != "" {
		if text == "" {
			text = "Error: " + r.Error
		} else {
			text = "Error: " + r.Error + "\n\n" + text
		}
	}

	if truncated, cut := TruncateStringToBytes(text, consts.MaxToolResultBytes); cut {
		text = truncated + fmt.Sprintf("\n\n[output truncated to %d bytes]", consts.MaxToolResultBytes)
	}
	return text
}

// Registry holds tools in registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Tool)}
}

// Register adds tool, replacing a tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.entries[name]
	return tool, ok
}

// ListSpecs returns the registered specs in registration order.
func (r *Registry) ListSpecs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.entries[name])
	}
	return result
}

// Execute executes a tool call
func (r *Registry) Execute(ctx context.Context, call *ToolCall) *ToolResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		return &ToolResult{
			ID:    call.ID,
			Error: "tool not found: " + call.Name,
		}
	}

	params := call.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	result := tool.Execute(ctx, params)
	if result == nil {
		return &ToolResult{
			ID:    call.ID,
			Error: "tool returned nil result",
		}
	}

	result.ID = call.ID
	return result
}

// FunctionDefinition renders spec as an OpenAI-style function definition
// under the given name.
func FunctionDefinition(name string, spec ToolSpec) map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        name,
			"description": spec.Description(),
			"parameters":  spec.Parameters(),
		},
	}
}

// GetStringParam returns a trimmed string parameter.
func GetStringParam(params map[string]interface{}, key string, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return defaultVal
}

// GetIntParam returns an integer parameter. JSON numbers arrive as float64.
func GetIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

// GetBoolParam returns a boolean parameter.
func GetBoolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := params[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// TruncateStringToBytes trims s to limit bytes without splitting a rune.
func TruncateStringToBytes(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}

	var (
		builder strings.Builder
		used    int
	)
	for _, r := range s {
		rb := []byte(string(r))
		if used+len(rb) > limit {
			break
		}
		builder.Write(rb)
		used += len(rb)
	}

	return builder.String(), true
}
