package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/tools"
)

const (
	KindFetch   = "fetch"
	KindBrowser = "browser"
)

// FetchConnector serves the in-process fetch_page tool. Config keys:
// timeout_seconds, max_bytes, user_agent, cache_seconds.
type FetchConnector struct {
	HTTPClient *http.Client
}

func (FetchConnector) Kind() string { return KindFetch }

func (c FetchConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	fetch := tools.NewFetchPageTool(tools.FetchOptions{
		HTTPClient: c.HTTPClient,
		Timeout:    desc.Seconds("timeout_seconds", consts.Timeout30Seconds),
		MaxBytes:   desc.Int("max_bytes", consts.DefaultFetchMaxBytes),
		CacheTTL:   desc.Seconds("cache_seconds", 0),
		UserAgent:  desc.String("user_agent"),
	})
	return newRegistryServer(serverName(desc, "fetch"), fetch), nil
}

// BrowserConnector launches a headless Chrome and serves browser_open and
// browser_links. Config keys: timeout_seconds, max_chars, user_agent,
// headless (default true).
type BrowserConnector struct {
	// NewRenderer replaces Chrome, mainly for tests.
	NewRenderer func(ctx context.Context, desc config.ServerDescriptor) (PageRenderer, error)
}

// PageRenderer is a browser the connector can drive. ReleaseTab closes the
// current tab and Close shuts the browser down.
type PageRenderer interface {
	tools.PageRenderer
	ReleaseTab()
	Close() error
}

func (BrowserConnector) Kind() string { return KindBrowser }

func (c BrowserConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	newRenderer := c.NewRenderer
	if newRenderer == nil {
		newRenderer = launchChrome
	}

	renderer, err := newRenderer(ctx, desc)
	if err != nil {
		return nil, err
	}

	server := newRegistryServer(serverName(desc, "browser"),
		tools.NewBrowserOpenTool(renderer, desc.Int("max_chars", consts.DefaultBrowserMaxChars)),
		tools.NewBrowserLinksTool(renderer),
	)
	server.onEnd = renderer.ReleaseTab
	server.onClose = renderer.Close
	return server, nil
}

func launchChrome(ctx context.Context, desc config.ServerDescriptor) (PageRenderer, error) {
	browser := tools.NewChromeBrowser(tools.BrowserOptions{
		Timeout:   desc.Seconds("timeout_seconds", consts.Timeout60Seconds),
		UserAgent: desc.String("user_agent"),
		Headless:  desc.Bool("headless", true),
	})
	if err := browser.Start(ctx); err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}
	return browser, nil
}

func serverName(desc config.ServerDescriptor, def string) string {
	if name := desc.String("name"); name != "" {
		return name
	}
	return def
}
