package mcp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/logger"
	"github.com/codefionn/tldrbot/internal/tools"
)

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateReady
)

func (s sessionState) String() string {
	if s == stateReady {
		return "ready"
	}
	return "uninitialized"
}

var invalidToolNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Tool names must fit the function-name rules of every provider.
const maxToolNameLength = 64

type toolRoute struct {
	server ToolServer
	name   string
}

// Manager owns the tool session: the connected servers and the merged tool
// set offered to the model. It starts Uninitialized and becomes Ready once
// every configured server connected.
type Manager struct {
	mu          sync.Mutex
	descriptors []config.ServerDescriptor
	connectors  map[string]ToolServerConnector
	state       sessionState
	servers     []ToolServer
	routes      map[string]toolRoute
	definitions []map[string]interface{}
	log         *logger.Logger
}

// NewManager creates a manager for descriptors without any connectors.
func NewManager(descriptors []config.ServerDescriptor) *Manager {
	return &Manager{
		descriptors: append([]config.ServerDescriptor(nil), descriptors...),
		connectors:  make(map[string]ToolServerConnector),
		routes:      make(map[string]toolRoute),
		log:         logger.Global().WithPrefix("tools"),
	}
}

// NewDefaultManager creates a manager with every built-in connector.
func NewDefaultManager(descriptors []config.ServerDescriptor) *Manager {
	m := NewManager(descriptors)
	m.AddConnector(StdioConnector{})
	m.AddConnector(SSEConnector{})
	m.AddConnector(HTTPConnector{})
	m.AddConnector(OpenAPIConnector{})
	m.AddConnector(FetchConnector{})
	m.AddConnector(BrowserConnector{})
	return m
}

// AddConnector registers c for its kind, replacing an earlier one.
func (m *Manager) AddConnector(c ToolServerConnector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectors[strings.ToLower(c.Kind())] = c
}

// Ready reports whether EnsureReady has completed.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateReady
}

// EnsureReady connects every configured server in declared order. It does
// nothing once the session is ready. If a server fails, the servers already
// connected are closed, the session stays uninitialized and a later call
// starts over.
func (m *Manager) EnsureReady(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateReady {
		return nil
	}

	var (
		servers     []ToolServer
		routes      = make(map[string]toolRoute)
		definitions []map[string]interface{}
		nameUsage   = make(map[string]int)
	)

	fail := func(err error) error {
		for i := len(servers) - 1; i >= 0; i-- {
			if closeErr := servers[i].Close(); closeErr != nil {
				m.log.Warn("closing %s after failed connect: %v", servers[i].Name(), closeErr)
			}
		}
		return err
	}

	for i, desc := range m.descriptors {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		connector, ok := m.connectors[strings.ToLower(desc.Type)]
		if !ok {
			return fail(fmt.Errorf("tool server %d (%s): unsupported type %q", i, desc.Label(), desc.Type))
		}

		m.log.Info("connecting %s server %s", desc.Type, desc.Label())
		server, err := connector.Connect(ctx, desc)
		if err != nil {
			return fail(fmt.Errorf("tool server %d (%s): %w", i, desc.Label(), err))
		}
		servers = append(servers, server)

		specs := server.Tools()
		for _, spec := range specs {
			exposed := uniqueToolName(exposedToolName(spec.Name()), nameUsage)
			routes[exposed] = toolRoute{server: server, name: spec.Name()}
			definitions = append(definitions, tools.FunctionDefinition(exposed, spec))
		}
		m.log.Info("%s ready with %d tools", server.Name(), len(specs))
	}

	m.servers = servers
	m.routes = routes
	m.definitions = definitions
	m.state = stateReady
	return nil
}

// ToolDefinitions returns the function definitions of every tool, in server
// order. It is empty until the session is ready.
func (m *Manager) ToolDefinitions() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}(nil), m.definitions...)
}

// ServerNames lists the connected servers.
func (m *Manager) ServerNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.servers))
	for _, s := range m.servers {
		names = append(names, s.Name())
	}
	return names
}

// Call routes call to the server that owns the tool.
func (m *Manager) Call(ctx context.Context, call *tools.ToolCall) *tools.ToolResult {
	m.mu.Lock()
	route, ok := m.routes[call.Name]
	m.mu.Unlock()

	if !ok {
		return &tools.ToolResult{ID: call.ID, Error: "tool not found: " + call.Name}
	}

	args := call.Parameters
	if args == nil {
		args = map[string]interface{}{}
	}

	m.log.Debug("calling %s on %s", route.name, route.server.Name())
	result := route.server.Call(ctx, route.name, args)
	if result == nil {
		result = &tools.ToolResult{Error: "tool returned nil result"}
	}
	result.ID = call.ID
	if result.Error != "" {
		m.log.Warn("%s failed: %s", call.Name, result.Error)
	}
	return result
}

// EndExchange releases per-exchange resources on every server. Connections
// stay open.
func (m *Manager) EndExchange() {
	m.mu.Lock()
	servers := append([]ToolServer(nil), m.servers...)
	m.mu.Unlock()

	for _, s := range servers {
		if scoped, ok := s.(ExchangeScoped); ok {
			scoped.EndExchange()
		}
	}
}

// Close disconnects every server in reverse order and resets the session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.servers) - 1; i >= 0; i-- {
		if err := m.servers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.servers[i].Name(), err))
		}
	}

	m.servers = nil
	m.routes = make(map[string]toolRoute)
	m.definitions = nil
	m.state = stateUninitialized
	return errors.Join(errs...)
}

func exposedToolName(name string) string {
	name = strings.Trim(invalidToolNameChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "tool"
	}
	if len(name) > maxToolNameLength-3 {
		name = name[:maxToolNameLength-3]
	}
	return name
}
