package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/tools"
)

type fakeServer struct {
	name     string
	specs    []tools.ToolSpec
	calls    []string
	closed   int
	ended    int
	closeErr error
}

func (f *fakeServer) Name() string            { return f.name }
func (f *fakeServer) Tools() []tools.ToolSpec { return f.specs }
func (f *fakeServer) EndExchange()            { f.ended++ }

func (f *fakeServer) Call(ctx context.Context, name string, args map[string]interface{}) *tools.ToolResult {
	f.calls = append(f.calls, name)
	return &tools.ToolResult{Result: fmt.Sprintf("%s:%s:%v", f.name, name, args["url"])}
}

func (f *fakeServer) Close() error {
	f.closed++
	return f.closeErr
}

type fakeConnector struct {
	kind     string
	servers  map[string]*fakeServer
	failures map[string]int
	order    []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{kind: "fake", servers: map[string]*fakeServer{}, failures: map[string]int{}}
}

func (c *fakeConnector) Kind() string { return c.kind }

func (c *fakeConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	name := desc.String("name")
	c.order = append(c.order, name)
	if c.failures[name] > 0 {
		c.failures[name]--
		return nil, errors.New("connection refused")
	}
	server := &fakeServer{name: name}
	for _, tool := range desc.Strings("tools") {
		server.specs = append(server.specs, tools.StaticSpec{ToolName: tool, ToolDescription: "does " + tool})
	}
	c.servers[name] = server
	return server, nil
}

func fakeDescriptor(name string, toolNames ...interface{}) config.ServerDescriptor {
	return config.ServerDescriptor{Type: "FAKE", Config: map[string]interface{}{"name": name, "tools": toolNames}}
}

func TestEnsureReadyConnectsOnceInOrder(t *testing.T) {
	conn := newFakeConnector()
	m := NewManager([]config.ServerDescriptor{
		fakeDescriptor("playwright", "browser_navigate", "browser_snapshot"),
		fakeDescriptor("fetcher", "fetch_page"),
	})
	m.AddConnector(conn)

	assert.False(t, m.Ready())
	assert.Empty(t, m.ToolDefinitions())

	require.NoError(t, m.EnsureReady(context.Background()))
	require.NoError(t, m.EnsureReady(context.Background()))

	assert.True(t, m.Ready())
	assert.Equal(t, []string{"playwright", "fetcher"}, conn.order)
	assert.Equal(t, []string{"playwright", "fetcher"}, m.ServerNames())

	defs := m.ToolDefinitions()
	require.Len(t, defs, 3)
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def["function"].(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"browser_navigate", "browser_snapshot", "fetch_page"}, names)
}

func TestEnsureReadyFailureClosesPartialConnections(t *testing.T) {
	conn := newFakeConnector()
	conn.failures["second"] = 1
	m := NewManager([]config.ServerDescriptor{
		fakeDescriptor("first", "a"),
		fakeDescriptor("second", "b"),
	})
	m.AddConnector(conn)

	err := m.EnsureReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, m.Ready())
	assert.Equal(t, 1, conn.servers["first"].closed)
	assert.Empty(t, m.ToolDefinitions())

	require.NoError(t, m.EnsureReady(context.Background()))
	assert.True(t, m.Ready())
	assert.Equal(t, []string{"first", "second", "first", "second"}, conn.order)
	assert.Equal(t, 0, conn.servers["first"].closed)
}

func TestEnsureReadyUnknownKind(t *testing.T) {
	m := NewManager([]config.ServerDescriptor{{Type: "carrier-pigeon"}})
	err := m.EnsureReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported type "carrier-pigeon"`)
	assert.False(t, m.Ready())
}

func TestEnsureReadyHonoursCancellation(t *testing.T) {
	conn := newFakeConnector()
	m := NewManager([]config.ServerDescriptor{fakeDescriptor("a")})
	m.AddConnector(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.EnsureReady(ctx), context.Canceled)
	assert.Empty(t, conn.order)
}

func TestEnsureReadyWithNoServers(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.EnsureReady(context.Background()))
	assert.True(t, m.Ready())
	assert.Empty(t, m.ToolDefinitions())
}

func TestDuplicateToolNamesAreSuffixed(t *testing.T) {
	conn := newFakeConnector()
	m := NewManager([]config.ServerDescriptor{
		fakeDescriptor("one", "search"),
		fakeDescriptor("two", "search", "bad name!"),
	})
	m.AddConnector(conn)
	require.NoError(t, m.EnsureReady(context.Background()))

	res := m.Call(context.Background(), &tools.ToolCall{ID: "c1", Name: "search", Parameters: map[string]interface{}{"url": "u"}})
	assert.Equal(t, "c1", res.ID)
	assert.Equal(t, "one:search:u", res.Result)

	res = m.Call(context.Background(), &tools.ToolCall{ID: "c2", Name: "search_2"})
	assert.Equal(t, "two:search:<nil>", res.Result)

	res = m.Call(context.Background(), &tools.ToolCall{ID: "c3", Name: "bad_name"})
	assert.Equal(t, "two:bad name!:<nil>", res.Result)

	res = m.Call(context.Background(), &tools.ToolCall{ID: "c4", Name: "missing"})
	assert.Equal(t, "c4", res.ID)
	assert.Equal(t, "tool not found: missing", res.Error)
}

func TestSuffixedNamesNeverShadowRealTools(t *testing.T) {
	conn := newFakeConnector()
	m := NewManager([]config.ServerDescriptor{
		fakeDescriptor("one", "search", "search"),
		fakeDescriptor("two", "search_2", "search"),
	})
	m.AddConnector(conn)
	require.NoError(t, m.EnsureReady(context.Background()))

	var names []string
	for _, def := range m.ToolDefinitions() {
		names = append(names, def["function"].(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"search", "search_2", "search_2_2", "search_3"}, names)

	res := m.Call(context.Background(), &tools.ToolCall{ID: "c1", Name: "search_2"})
	assert.Equal(t, "one:search:<nil>", res.Result)
	res = m.Call(context.Background(), &tools.ToolCall{ID: "c2", Name: "search_2_2"})
	assert.Equal(t, "two:search_2:<nil>", res.Result)
	res = m.Call(context.Background(), &tools.ToolCall{ID: "c3", Name: "search_3"})
	assert.Equal(t, "two:search:<nil>", res.Result)
}

func TestEndExchangeAndClose(t *testing.T) {
	conn := newFakeConnector()
	m := NewManager([]config.ServerDescriptor{fakeDescriptor("a", "x"), fakeDescriptor("b", "y")})
	m.AddConnector(conn)
	require.NoError(t, m.EnsureReady(context.Background()))

	m.EndExchange()
	assert.Equal(t, 1, conn.servers["a"].ended)
	assert.Equal(t, 1, conn.servers["b"].ended)
	assert.True(t, m.Ready())

	conn.servers["b"].closeErr = errors.New("broken pipe")
	err := m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: broken pipe")
	assert.Equal(t, 1, conn.servers["a"].closed)
	assert.False(t, m.Ready())
	assert.Empty(t, m.ToolDefinitions())
}

func TestExposedToolName(t *testing.T) {
	assert.Equal(t, "browser_navigate", exposedToolName("browser_navigate"))
	assert.Equal(t, "ns_tool", exposedToolName("ns.tool"))
	assert.Equal(t, "tool", exposedToolName("..."))
	assert.Len(t, exposedToolName(strings.Repeat("a", 100)), maxToolNameLength-3)
}
