package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/tldrbot/internal/config"
)

type fakeMCPClient struct {
	initErr  error
	pages    [][]mcpgo.Tool
	cursors  []mcpgo.Cursor
	callReq  mcpgo.CallToolRequest
	callResp *mcpgo.CallToolResult
	callErr  error
	closed   bool
}

func (f *fakeMCPClient) Initialize(ctx context.Context, req mcpgo.InitializeRequest) (*mcpgo.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	res := &mcpgo.InitializeResult{}
	res.ServerInfo.Name = "playwright"
	return res, nil
}

func (f *fakeMCPClient) ListTools(ctx context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error) {
	f.cursors = append(f.cursors, req.Params.Cursor)
	page := len(f.cursors) - 1
	res := &mcpgo.ListToolsResult{Tools: f.pages[page]}
	if page < len(f.pages)-1 {
		res.NextCursor = mcpgo.Cursor("page2")
	}
	return res, nil
}

func (f *fakeMCPClient) CallTool(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	f.callReq = req
	return f.callResp, f.callErr
}

func (f *fakeMCPClient) Close() error {
	f.closed = true
	return nil
}

func TestRemoteServerListsToolsAcrossPages(t *testing.T) {
	navigate := mcpgo.Tool{Name: "browser_navigate", Description: "Navigate to a URL"}
	navigate.InputSchema.Type = "object"
	navigate.InputSchema.Properties = map[string]interface{}{"url": map[string]interface{}{"type": "string"}}
	navigate.InputSchema.Required = []string{"url"}

	snapshot := mcpgo.Tool{Name: "browser_snapshot", RawInputSchema: json.RawMessage(`{"type":"object","properties":{}}`)}

	c := &fakeMCPClient{pages: [][]mcpgo.Tool{{navigate}, {snapshot}}}
	server, err := startRemote(context.Background(), c, config.ServerDescriptor{Type: KindStdio, Config: map[string]interface{}{"command": "npx"}})
	require.NoError(t, err)

	assert.Equal(t, "playwright", server.Name())
	assert.Equal(t, []mcpgo.Cursor{"", "page2"}, c.cursors)

	specs := server.Tools()
	require.Len(t, specs, 2)
	assert.Equal(t, "browser_navigate", specs[0].Name())
	assert.Equal(t, map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"url": map[string]interface{}{"type": "string"}},
		"required":   []string{"url"},
	}, specs[0].Parameters())
	assert.Equal(t, map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}, specs[1].Parameters())
}

func TestRemoteServerNameOverride(t *testing.T) {
	c := &fakeMCPClient{pages: [][]mcpgo.Tool{nil}}
	server, err := startRemote(context.Background(), c, config.ServerDescriptor{Config: map[string]interface{}{"name": "web"}})
	require.NoError(t, err)
	assert.Equal(t, "web", server.Name())
	assert.Empty(t, server.Tools())
}

func TestRemoteServerInitFailureCloses(t *testing.T) {
	c := &fakeMCPClient{initErr: errors.New("protocol mismatch")}
	_, err := startRemote(context.Background(), c, config.ServerDescriptor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize failed")
	assert.True(t, c.closed)
}

func TestRemoteServerCall(t *testing.T) {
	c := &fakeMCPClient{callResp: &mcpgo.CallToolResult{Content: []mcpgo.Content{
		mcpgo.TextContent{Type: "text", Text: "- Page Title: TLDR"},
		mcpgo.ImageContent{Type: "image", Data: "aGVsbG8=", MIMEType: "image/png"},
	}}}
	server := &remoteServer{name: "playwright", client: c, timeout: time.Second}

	res := server.Call(context.Background(), "browser_navigate", map[string]interface{}{"url": "https://tldr.tech"})
	assert.Empty(t, res.Error)
	assert.Equal(t, "- Page Title: TLDR\n[image image/png, 8 base64 bytes]", res.Result)
	assert.Equal(t, "browser_navigate", c.callReq.Params.Name)
	assert.Equal(t, map[string]interface{}{"url": "https://tldr.tech"}, c.callReq.Params.Arguments)

	c.callResp = &mcpgo.CallToolResult{IsError: true, Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "timeout"}}}
	res = server.Call(context.Background(), "browser_navigate", nil)
	assert.Equal(t, "browser_navigate reported an error", res.Error)
	assert.Equal(t, "timeout", res.Result)

	c.callResp, c.callErr = nil, errors.New("transport closed")
	res = server.Call(context.Background(), "browser_navigate", nil)
	assert.Equal(t, "browser_navigate: transport closed", res.Error)

	require.NoError(t, server.Close())
	assert.True(t, c.closed)
}

func TestRemoteConnectorsValidateConfig(t *testing.T) {
	_, err := StdioConnector{}.Connect(context.Background(), config.ServerDescriptor{Type: KindStdio})
	assert.EqualError(t, err, "stdio server requires a command")

	_, err = SSEConnector{}.Connect(context.Background(), config.ServerDescriptor{Type: KindSSE})
	assert.EqualError(t, err, "sse server requires a url")

	_, err = HTTPConnector{}.Connect(context.Background(), config.ServerDescriptor{Type: KindHTTP})
	assert.EqualError(t, err, "http server requires a url")
}
