package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/tools"
)

const (
	KindStdio = "stdio"
	KindSSE   = "sse"
	KindHTTP  = "http"

	clientName    = "tldrbot"
	clientVersion = "1.0.0"
)

// mcpClient is the part of the mcp-go client used by remoteServer.
type mcpClient interface {
	Initialize(ctx context.Context, req mcpgo.InitializeRequest) (*mcpgo.InitializeResult, error)
	ListTools(ctx context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)
	Close() error
}

// StdioConnector launches an MCP server as a subprocess. Config keys:
// command, args, env, timeout_seconds.
type StdioConnector struct{}

func (StdioConnector) Kind() string { return KindStdio }

func (StdioConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	command := desc.String("command")
	if command == "" {
		return nil, fmt.Errorf("stdio server requires a command")
	}

	env := os.Environ()
	extra := desc.StringMap("env")
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}

	c, err := client.NewStdioMCPClient(command, env, desc.Strings("args")...)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}
	return startRemote(ctx, c, desc)
}

// SSEConnector connects to an MCP server over server-sent events. Config
// keys: url, headers, timeout_seconds.
type SSEConnector struct{}

func (SSEConnector) Kind() string { return KindSSE }

func (SSEConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	endpoint := desc.String("url")
	if endpoint == "" {
		return nil, fmt.Errorf("sse server requires a url")
	}

	var opts []transport.ClientOption
	if headers := desc.StringMap("headers"); len(headers) > 0 {
		opts = append(opts, transport.WithHeaders(headers))
	}

	c, err := client.NewSSEMCPClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sse client for %s: %w", endpoint, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to open sse stream %s: %w", endpoint, err)
	}
	return startRemote(ctx, c, desc)
}

// HTTPConnector connects to an MCP server over streamable HTTP. Config keys:
// url, headers, timeout_seconds.
type HTTPConnector struct{}

func (HTTPConnector) Kind() string { return KindHTTP }

func (HTTPConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	endpoint := desc.String("url")
	if endpoint == "" {
		return nil, fmt.Errorf("http server requires a url")
	}

	var opts []transport.StreamableHTTPCOption
	if headers := desc.StringMap("headers"); len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	c, err := client.NewStreamableHttpClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client for %s: %w", endpoint, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to start http transport %s: %w", endpoint, err)
	}
	return startRemote(ctx, c, desc)
}

func startRemote(ctx context.Context, c mcpClient, desc config.ServerDescriptor) (*remoteServer, error) {
	server, err := newRemoteServer(ctx, c, desc.Label(), desc.Seconds("timeout_seconds", consts.Timeout2Minutes))
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if name := desc.String("name"); name != "" {
		server.name = name
	}
	return server, nil
}

// remoteServer is a ToolServer backed by an MCP client session.
type remoteServer struct {
	name    string
	client  mcpClient
	tools   []tools.ToolSpec
	timeout time.Duration
}

func newRemoteServer(ctx context.Context, c mcpClient, label string, timeout time.Duration) (*remoteServer, error) {
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: clientName, Version: clientVersion}

	initResult, err := c.Initialize(initCtx, initReq)
	if err != nil {
		return nil, fmt.Errorf("initialize failed: %w", err)
	}

	name := label
	if initResult != nil && initResult.ServerInfo.Name != "" {
		name = initResult.ServerInfo.Name
	}

	var specs []tools.ToolSpec
	listReq := mcpgo.ListToolsRequest{}
	for {
		listResult, err := c.ListTools(initCtx, listReq)
		if err != nil {
			return nil, fmt.Errorf("list tools failed: %w", err)
		}
		for _, tool := range listResult.Tools {
			specs = append(specs, convertMCPTool(tool))
		}
		if listResult.NextCursor == "" {
			break
		}
		listReq.Params.Cursor = listResult.NextCursor
	}

	return &remoteServer{name: name, client: c, tools: specs, timeout: timeout}, nil
}

func (s *remoteServer) Name() string { return s.name }

func (s *remoteServer) Tools() []tools.ToolSpec { return s.tools }

func (s *remoteServer) Call(ctx context.Context, name string, args map[string]interface{}) *tools.ToolResult {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := s.client.CallTool(callCtx, req)
	if err != nil {
		return tools.Errorf("%s: %v", name, err)
	}
	return convertCallResult(name, result)
}

func (s *remoteServer) Close() error {
	return s.client.Close()
}

func convertMCPTool(tool mcpgo.Tool) tools.ToolSpec {
	schema := map[string]interface{}{}
	if len(tool.RawInputSchema) > 0 {
		if err := json.Unmarshal(tool.RawInputSchema, &schema); err != nil {
			schema = map[string]interface{}{}
		}
	} else {
		schema["type"] = "object"
		if tool.InputSchema.Type != "" {
			schema["type"] = tool.InputSchema.Type
		}
		props := tool.InputSchema.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		schema["properties"] = props
		if len(tool.InputSchema.Required) > 0 {
			schema["required"] = tool.InputSchema.Required
		}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}

	return tools.StaticSpec{
		ToolName:        tool.Name,
		ToolDescription: tool.Description,
		Schema:          schema,
	}
}

// convertCallResult flattens MCP content blocks into text. Images are
// summarized since the model only receives text tool output.
func convertCallResult(name string, result *mcpgo.CallToolResult) *tools.ToolResult {
	if result == nil {
		return tools.Errorf("%s returned no result", name)
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcpgo.TextContent:
			parts = append(parts, c.Text)
		case *mcpgo.TextContent:
			parts = append(parts, c.Text)
		case mcpgo.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d base64 bytes]", c.MIMEType, len(c.Data)))
		case *mcpgo.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d base64 bytes]", c.MIMEType, len(c.Data)))
		default:
			data, err := json.Marshal(content)
			if err == nil {
				parts = append(parts, string(data))
			}
		}
	}

	text := strings.Join(parts, "\n")
	res := &tools.ToolResult{
		Result:   text,
		UIResult: fmt.Sprintf("%s (%d bytes)", name, len(text)),
	}
	if result.IsError {
		res.Error = fmt.Sprintf("%s reported an error", name)
	}
	return res
}
