package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/tldrbot/internal/llm"
	"github.com/codefionn/tldrbot/internal/tools"
)

type turn struct {
	deltas []string
	resp   *llm.CompletionResponse
	err    error
}

type scriptedClient struct {
	turns    []turn
	requests []*llm.CompletionRequest
}

func (c *scriptedClient) ModelName() string { return "test-model" }

func (c *scriptedClient) Stream(ctx context.Context, req *llm.CompletionRequest, onDelta func(string) error) (*llm.CompletionResponse, error) {
	snapshot := *req
	snapshot.Messages = append([]*llm.Message(nil), req.Messages...)
	c.requests = append(c.requests, &snapshot)

	if len(c.requests) > len(c.turns) {
		return nil, errors.New("unexpected turn")
	}
	t := c.turns[len(c.requests)-1]
	for _, d := range t.deltas {
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.resp, nil
}

type fakeTools struct {
	ready  int
	ended  int
	calls  []*tools.ToolCall
	result func(call *tools.ToolCall) *tools.ToolResult
}

func (f *fakeTools) EnsureReady(ctx context.Context) error {
	f.ready++
	return nil
}

func (f *fakeTools) ToolDefinitions() []map[string]interface{} {
	return []map[string]interface{}{tools.FunctionDefinition("fetch_page", tools.StaticSpec{ToolName: "fetch_page"})}
}

func (f *fakeTools) Call(ctx context.Context, call *tools.ToolCall) *tools.ToolResult {
	f.calls = append(f.calls, call)
	if f.result != nil {
		return f.result(call)
	}
	return &tools.ToolResult{ID: call.ID, Result: "page for " + callURL(call)}
}

func (f *fakeTools) EndExchange() { f.ended++ }

func callURL(call *tools.ToolCall) string {
	return tools.GetStringParam(call.Parameters, "url", "")
}

func collect(t *testing.T, s *Session, prompt string) ([]Fragment, error) {
	t.Helper()
	x, err := s.Open(context.Background())
	require.NoError(t, err)
	defer x.Close()

	var fragments []Fragment
	err = x.Stream(context.Background(), []*llm.Message{{Role: llm.RoleUser, Content: prompt}}, func(f Fragment) error {
		fragments = append(fragments, f)
		return nil
	})
	return fragments, err
}

func TestSessionToolLoop(t *testing.T) {
	client := &scriptedClient{turns: []turn{
		{resp: &llm.CompletionResponse{ToolCalls: []map[string]interface{}{
			llm.NewToolCall("call_1", "fetch_page", `{"url":"https://tldr.tech"}`),
		}}},
		{deltas: []string{"# TLDR", "\n- story"}, resp: &llm.CompletionResponse{Content: "# TLDR\n- story", StopReason: "stop"}},
	}}
	ts := &fakeTools{}
	temp := 0.2
	s := NewSession(client, ts, SessionOptions{Temperature: &temp, MaxTokens: 2048})

	fragments, err := collect(t, s, "summarize")
	require.NoError(t, err)

	require.Len(t, fragments, 4)
	assert.Equal(t, FragmentMessage, fragments[0].Kind)
	assert.Equal(t, llm.RoleAssistant, fragments[0].Message.Role)
	assert.Empty(t, fragments[0].Message.Content)
	assert.Equal(t, FragmentMessage, fragments[1].Kind)
	assert.Equal(t, llm.RoleTool, fragments[1].Message.Role)
	assert.Equal(t, "call_1", fragments[1].Message.ToolID)
	assert.Equal(t, "page for https://tldr.tech", fragments[1].Message.Content)
	assert.Equal(t, DeltaFragment("# TLDR"), fragments[2])
	assert.Equal(t, DeltaFragment("\n- story"), fragments[3])

	require.Len(t, ts.calls, 1)
	assert.Equal(t, "fetch_page", ts.calls[0].Name)
	assert.Equal(t, 1, ts.ended)

	require.Len(t, client.requests, 2)
	second := client.requests[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	assert.Len(t, second.Messages[1].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, second.Messages[2].Role)
	assert.Len(t, second.Tools, 1)
	assert.Equal(t, 0.2, *second.Temperature)
	assert.Equal(t, 2048, second.MaxTokens)
}

func TestSessionNonStreamingTurn(t *testing.T) {
	client := &scriptedClient{turns: []turn{{resp: &llm.CompletionResponse{Content: "whole summary"}}}}
	fragments, err := collect(t, NewSession(client, &fakeTools{}, SessionOptions{}), "go")
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, FragmentMessage, fragments[0].Kind)
	assert.Equal(t, "whole summary", fragments[0].Message.Content)
}

func TestSessionStopsAtMaxTurns(t *testing.T) {
	call := &llm.CompletionResponse{ToolCalls: []map[string]interface{}{llm.NewToolCall("c", "fetch_page", `{"url":"x"}`)}}
	client := &scriptedClient{turns: []turn{{resp: call}, {resp: call}, {resp: call}}}
	ts := &fakeTools{}

	_, err := collect(t, NewSession(client, ts, SessionOptions{MaxTurns: 2}), "go")
	require.NoError(t, err)
	assert.Len(t, client.requests, 2)
	assert.Len(t, ts.calls, 1)
}

func TestSessionBadArgumentsBecomeToolError(t *testing.T) {
	client := &scriptedClient{turns: []turn{
		{resp: &llm.CompletionResponse{ToolCalls: []map[string]interface{}{llm.NewToolCall("c", "fetch_page", `{not json`)}}},
		{resp: &llm.CompletionResponse{Content: "done"}},
	}}
	ts := &fakeTools{}

	fragments, err := collect(t, NewSession(client, ts, SessionOptions{}), "go")
	require.NoError(t, err)
	assert.Empty(t, ts.calls)
	require.Len(t, fragments, 3)
	assert.True(t, strings.HasPrefix(fragments[1].Message.Content, "Error: invalid tool arguments"))
}

func TestSessionStreamError(t *testing.T) {
	client := &scriptedClient{turns: []turn{{deltas: []string{"A", "B"}, err: errors.New("stream reset")}}}
	fragments, err := collect(t, NewSession(client, &fakeTools{}, SessionOptions{}), "go")
	assert.EqualError(t, err, "stream reset")
	assert.Len(t, fragments, 2)
}

func TestExecutorOverSession(t *testing.T) {
	client := &scriptedClient{turns: []turn{
		{deltas: []string{"Checking "}, resp: &llm.CompletionResponse{Content: "Checking ", ToolCalls: []map[string]interface{}{
			llm.NewToolCall("c", "fetch_page", `{"url":"https://tldr.tech"}`),
		}}},
		{deltas: []string{"A", "B", "C"}, resp: &llm.CompletionResponse{Content: "ABC"}},
	}}
	ts := &fakeTools{}

	result, err := NewExecutor(NewSession(client, ts, SessionOptions{}), ExecutorOptions{}).Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "Checking ABC", result)
	assert.Equal(t, 1, ts.ready)
	assert.Equal(t, 1, ts.ended)
}

func TestClosedExchangeRejectsStream(t *testing.T) {
	ts := &fakeTools{}
	x, err := NewSession(&scriptedClient{}, ts, SessionOptions{}).Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, x.Close())
	require.NoError(t, x.Close())
	assert.Equal(t, 1, ts.ended)
	assert.Error(t, x.Stream(context.Background(), nil, func(Fragment) error { return nil }))
}
