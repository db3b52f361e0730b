// Package mcp connects the tool servers listed in the agent configuration
// and exposes their tools to the model as one flat set of functions.
package mcp

import (
	"context"
	"fmt"

	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/tools"
)

// ToolServer is a connected source of tools.
type ToolServer interface {
	Name() string
	Tools() []tools.ToolSpec
	Call(ctx context.Context, name string, args map[string]interface{}) *tools.ToolResult
	Close() error
}

// ExchangeScoped is implemented by servers holding resources that live for
// one model exchange, such as a browser tab.
type ExchangeScoped interface {
	EndExchange()
}

// ToolServerConnector connects descriptors of one kind.
type ToolServerConnector interface {
	Kind() string
	Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error)
}

// registryServer serves in-process tools from a registry.
type registryServer struct {
	name     string
	registry *tools.Registry
	onEnd    func()
	onClose  func() error
}

func newRegistryServer(name string, toolset ...tools.Tool) *registryServer {
	reg := tools.NewRegistry()
	for _, t := range toolset {
		reg.Register(t)
	}
	return &registryServer{name: name, registry: reg}
}

func (s *registryServer) Name() string { return s.name }

func (s *registryServer) Tools() []tools.ToolSpec { return s.registry.ListSpecs() }

func (s *registryServer) Call(ctx context.Context, name string, args map[string]interface{}) *tools.ToolResult {
	return s.registry.Execute(ctx, &tools.ToolCall{Name: name, Parameters: args})
}

func (s *registryServer) EndExchange() {
	if s.onEnd != nil {
		s.onEnd()
	}
}

func (s *registryServer) Close() error {
	if s.onClose != nil {
		return s.onClose()
	}
	return nil
}

// ConnectorFunc adapts a function to ToolServerConnector.
type ConnectorFunc struct {
	KindName string
	Fn       func(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error)
}

func (c ConnectorFunc) Kind() string { return c.KindName }

func (c ConnectorFunc) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	if c.Fn == nil {
		return nil, fmt.Errorf("connector %s has no connect function", c.KindName)
	}
	return c.Fn(ctx, desc)
}
