package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/tldrbot/internal/consts"
)

type echoTool struct {
	StaticSpec
	calls int
}

func (e *echoTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	e.calls++
	return &ToolResult{Result: GetStringParam(params, "text", "")}
}

type nilTool struct{ StaticSpec }

func (nilTool) Execute(context.Context, map[string]interface{}) *ToolResult { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoTool{StaticSpec: StaticSpec{ToolName: "b"}})
	reg.Register(&echoTool{StaticSpec: StaticSpec{ToolName: "a"}})
	reg.Register(&echoTool{StaticSpec: StaticSpec{ToolName: "b", ToolDescription: "replaced"}})

	specs := reg.ListSpecs()
	require.Len(t, specs, 2)
	assert.Equal(t, "b", specs[0].Name())
	assert.Equal(t, "replaced", specs[0].Description())
	assert.Equal(t, "a", specs[1].Name())
}

func TestRegistryExecute(t *testing.T) {
	reg := NewRegistry()
	tool := &echoTool{StaticSpec: StaticSpec{ToolName: "echo"}}
	reg.Register(tool)
	reg.Register(nilTool{StaticSpec{ToolName: "nil"}})

	res := reg.Execute(context.Background(), &ToolCall{ID: "call_1", Name: "echo", Parameters: map[string]interface{}{"text": " hi "}})
	assert.Equal(t, "call_1", res.ID)
	assert.Equal(t, "hi", res.Result)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, tool.calls)

	res = reg.Execute(context.Background(), &ToolCall{ID: "call_2", Name: "echo"})
	assert.Equal(t, "", res.Result)

	res = reg.Execute(context.Background(), &ToolCall{ID: "call_3", Name: "missing"})
	assert.Equal(t, "call_3", res.ID)
	assert.Contains(t, res.Error, "tool not found")

	res = reg.Execute(context.Background(), &ToolCall{ID: "call_4", Name: "nil"})
	assert.Equal(t, "call_4", res.ID)
	assert.Equal(t, "tool returned nil result", res.Error)
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "plain", (&ToolResult{Result: "plain"}).Text())
	assert.Equal(t, "{\n  \"status\": 200\n}", (&ToolResult{Result: map[string]interface{}{"status": 200}}).Text())
	assert.Equal(t, "Error: boom", Errorf("boom").Text())
	assert.Equal(t, "Error: not found\n\nbody", (&ToolResult{Result: "body", Error: "not found"}).Text())
	assert.Equal(t, "Error: tool returned no result", (*ToolResult)(nil).Text())

	huge := strings.Repeat("x", consts.MaxToolResultBytes+10)
	text := (&ToolResult{Result: huge}).Text()
	assert.True(t, strings.HasSuffix(text, "bytes]"))
	assert.Less(t, len(text), len(huge))
}

func TestFunctionDefinition(t *testing.T) {
	def := FunctionDefinition("tldr_fetch", StaticSpec{ToolName: "fetch", ToolDescription: "Fetch"})
	assert.Equal(t, "function", def["type"])
	fn, ok := def["function"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "tldr_fetch", fn["name"])
	assert.Equal(t, "Fetch", fn["description"])
	assert.Equal(t, map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}, fn["parameters"])
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{
		"s":  "  text ",
		"f":  float64(42),
		"i":  7,
		"b":  true,
		"bs": "yes",
	}
	assert.Equal(t, "text", GetStringParam(params, "s", "d"))
	assert.Equal(t, "d", GetStringParam(params, "f", "d"))
	assert.Equal(t, 42, GetIntParam(params, "f", 0))
	assert.Equal(t, 7, GetIntParam(params, "i", 0))
	assert.Equal(t, 3, GetIntParam(params, "missing", 3))
	assert.True(t, GetBoolParam(params, "b", false))
	assert.False(t, GetBoolParam(params, "bs", false))
}

func TestTruncateStringToBytes(t *testing.T) {
	out, cut := TruncateStringToBytes("héllo", 2)
	assert.True(t, cut)
	assert.Equal(t, "h", out)

	out, cut = TruncateStringToBytes("hello", 10)
	assert.False(t, cut)
	assert.Equal(t, "hello", out)
}
