package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// NewToolCall builds an OpenAI-shaped tool call entry.
func NewToolCall(id, name, arguments string) map[string]interface{} {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	return map[string]interface{}{
		"id":   id,
		"type": "function",
		"function": map[string]interface{}{
			"name":      name,
			"arguments": arguments,
		},
	}
}

// ToolCallParts extracts the id, function name and raw JSON arguments of a
// tool call entry.
func ToolCallParts(tc map[string]interface{}) (id, name, arguments string) {
	if tc == nil {
		return "", "", ""
	}
	id = firstNonEmptyString(tc["id"], tc["call_id"])
	fn, _ := tc["function"].(map[string]interface{})
	if fn == nil {
		return id, "", ""
	}
	name, _ = fn["name"].(string)
	switch v := fn["arguments"].(type) {
	case string:
		arguments = v
	case nil:
	default:
		if data, err := json.Marshal(v); err == nil {
			arguments = string(data)
		}
	}
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	return id, name, arguments
}

// DecodeArguments parses raw tool call arguments into a map. Empty input
// yields an empty map.
func DecodeArguments(raw string) (map[string]interface{}, error) {
	args := make(map[string]interface{})
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = make(map[string]interface{})
	}
	return args, nil
}

// NormalizeToolCallIDs ensures every tool call has a stable identifier.
// Some providers occasionally omit call IDs, which breaks downstream requests
// that require tool_call_id on tool messages.
func NormalizeToolCallIDs(toolCalls []map[string]interface{}) []map[string]interface{} {
	for i, tc := range toolCalls {
		if tc == nil {
			continue
		}

		id := firstNonEmptyString(tc["id"], tc["call_id"])
		if strings.TrimSpace(id) == "" {
			if fn, ok := tc["function"].(map[string]interface{}); ok {
				if name := sanitizeToolName(fn["name"]); name != "" {
					id = fmt.Sprintf("call_%s_%d", name, i+1)
				}
			}
		}
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}

		tc["id"] = id
		tc["call_id"] = id
	}
	return toolCalls
}

func firstNonEmptyString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func sanitizeToolName(raw interface{}) string {
	name, _ := raw.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// toolFunction extracts name, description and parameters from an
// OpenAI-style tool definition.
func toolFunction(tool map[string]interface{}) (name, description string, params map[string]interface{}, ok bool) {
	fn, _ := tool["function"].(map[string]interface{})
	if fn == nil {
		return "", "", nil, false
	}
	name, _ = fn["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", nil, false
	}
	description, _ = fn["description"].(string)
	params, _ = fn["parameters"].(map[string]interface{})
	if params == nil {
		params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return name, strings.TrimSpace(description), params, true
}

func extractStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}

func normalizeRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return RoleUser
	}
	return role
}
