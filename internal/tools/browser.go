package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/htmlconv"
	"github.com/codefionn/tldrbot/internal/logger"
)

const (
	ToolNameBrowserOpen  = "browser_open"
	ToolNameBrowserLinks = "browser_links"

	browserDefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36 tldrbot/1.0"
	browserDefaultLinkLimit = 100
)

// PageSnapshot is the rendered DOM of the current tab.
type PageSnapshot struct {
	URL  string
	HTML string
}

// PageLink is an anchor found on the current page.
type PageLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// PageRenderer navigates a browser tab and reads back what it shows.
type PageRenderer interface {
	Render(ctx context.Context, rawURL string) (*PageSnapshot, error)
	Links(ctx context.Context) ([]PageLink, error)
}

// BrowserOptions configures a ChromeBrowser.
type BrowserOptions struct {
	Timeout   time.Duration
	UserAgent string
	Headless  bool
}

// ChromeBrowser drives a headless Chrome through chromedp. The browser
// process lives until Close; each exchange gets its own tab, released by
// ReleaseTab.
type ChromeBrowser struct {
	opts BrowserOptions

	// launch starts the browser process on the context it is given. The
	// process lives as long as that context.
	launch func(ctx context.Context) error

	mu            sync.Mutex
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	tabCtx        context.Context
	cancelTab     context.CancelFunc
}

// NewChromeBrowser creates a browser that is launched by Start.
func NewChromeBrowser(opts BrowserOptions) *ChromeBrowser {
	if opts.Timeout <= 0 {
		opts.Timeout = consts.Timeout60Seconds
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browserDefaultUserAgent
	}
	return &ChromeBrowser{
		opts: opts,
		launch: func(ctx context.Context) error {
			return chromedp.Run(ctx)
		},
	}
}

// Start launches the browser process. ctx and the configured timeout bound
// only the launch; the process keeps running until Close.
func (b *ChromeBrowser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.UserAgent(b.opts.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug("chromedp: "+format, args...)
		}),
	)

	// The first Run owns the Chrome process, so it gets the long-lived
	// browser context and only the wait is bounded.
	launched := make(chan error, 1)
	go func() { launched <- b.launch(browserCtx) }()

	timer := time.NewTimer(b.opts.Timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-launched:
	case <-timer.C:
		err = fmt.Errorf("timed out after %s", b.opts.Timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.cancelAlloc = cancelAlloc
	b.browserCtx = browserCtx
	b.cancelBrowser = cancelBrowser
	logger.Info("browser: launched (headless=%t)", b.opts.Headless)
	return nil
}

// tab returns the exchange's tab, opening one on first use.
func (b *ChromeBrowser) tab() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		return nil, fmt.Errorf("browser is not running")
	}
	if b.tabCtx == nil {
		b.tabCtx, b.cancelTab = chromedp.NewContext(b.browserCtx)
	}
	return b.tabCtx, nil
}

func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, err := b.tab()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Render navigates the tab to rawURL and returns the rendered document.
func (b *ChromeBrowser) Render(ctx context.Context, rawURL string) (*PageSnapshot, error) {
	var html, location string
	err := b.run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", rawURL, err)
	}
	if location == "" {
		location = rawURL
	}
	return &PageSnapshot{URL: location, HTML: html}, nil
}

const collectLinksScript = `Array.from(document.querySelectorAll('a[href]')).map(a => ({text: (a.innerText || '').trim(), href: a.href}))`

// Links lists the anchors of the page currently shown in the tab.
func (b *ChromeBrowser) Links(ctx context.Context) ([]PageLink, error) {
	var links []PageLink
	if err := b.run(ctx, chromedp.Evaluate(collectLinksScript, &links)); err != nil {
		return nil, fmt.Errorf("failed to collect links: %w", err)
	}
	return links, nil
}

// ReleaseTab closes the current tab. The next Render opens a fresh one.
func (b *ChromeBrowser) ReleaseTab() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelTab != nil {
		b.cancelTab()
	}
	b.tabCtx = nil
	b.cancelTab = nil
}

// Close shuts down the browser process.
func (b *ChromeBrowser) Close() error {
	b.ReleaseTab()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelBrowser != nil {
		b.cancelBrowser()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	b.browserCtx = nil
	b.cancelBrowser = nil
	b.cancelAlloc = nil
	return nil
}

// BrowserOpenTool renders a page in the browser and returns the readable
// article as markdown.
type BrowserOpenTool struct {
	renderer PageRenderer
	maxChars int
}

// NewBrowserOpenTool creates a browser_open tool.
func NewBrowserOpenTool(renderer PageRenderer, maxChars int) *BrowserOpenTool {
	if maxChars <= 0 {
		maxChars = consts.DefaultBrowserMaxChars
	}
	return &BrowserOpenTool{renderer: renderer, maxChars: maxChars}
}

func (t *BrowserOpenTool) Name() string { return ToolNameBrowserOpen }

func (t *BrowserOpenTool) Description() string {
	return "Open a URL in a headless browser, wait for it to render and return the main article as markdown. Use this for pages that need JavaScript."
}

func (t *BrowserOpenTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to open (http or https).",
			},
			"max_chars": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum characters of article text to return (default %d).", t.maxChars),
			},
		},
		"required": []string{"url"},
	}
}

func (t *BrowserOpenTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	rawURL := GetStringParam(params, "url", "")
	if rawURL == "" {
		return Errorf("url is required")
	}
	reqURL, err := normalizeFetchURL(rawURL)
	if err != nil {
		return Errorf("invalid url: %v", err)
	}

	maxChars := GetIntParam(params, "max_chars", t.maxChars)
	if maxChars <= 0 {
		maxChars = t.maxChars
	}

	started := time.Now()
	snapshot, err := t.renderer.Render(ctx, reqURL.String())
	if err != nil {
		return Errorf("%v", err)
	}

	title, markdown := extractArticle(snapshot)
	text, truncated := truncateRunes(markdown, maxChars)

	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", title)
	}
	fmt.Fprintf(&sb, "URL: %s\n\n", snapshot.URL)
	sb.WriteString(text)
	if truncated {
		fmt.Fprintf(&sb, "\n\n[truncated at %d characters]", maxChars)
	}

	return &ToolResult{
		Result:   sb.String(),
		UIResult: fmt.Sprintf("opened %s (%d chars, %s)", snapshot.URL, utf8.RuneCountInString(text), time.Since(started).Round(time.Millisecond)),
	}
}

// extractArticle runs readability over the rendered page and falls back to
// converting the whole document when no article is found.
func extractArticle(snapshot *PageSnapshot) (string, string) {
	pageURL, err := url.Parse(snapshot.URL)
	if err != nil {
		pageURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(snapshot.HTML), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		if markdown, convErr := htmlconv.Convert(article.Content); convErr == nil && markdown != "" {
			return strings.TrimSpace(article.Title), markdown
		}
	}
	if err != nil {
		logger.Debug("browser_open: readability failed for %s: %v", snapshot.URL, err)
	}

	markdown, convErr := htmlconv.Convert(snapshot.HTML)
	if convErr != nil {
		return strings.TrimSpace(article.Title), strings.TrimSpace(article.TextContent)
	}
	return strings.TrimSpace(article.Title), markdown
}

func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}

// BrowserLinksTool lists the links of the page the browser currently shows.
type BrowserLinksTool struct {
	renderer PageRenderer
}

// NewBrowserLinksTool creates a browser_links tool.
func NewBrowserLinksTool(renderer PageRenderer) *BrowserLinksTool {
	return &BrowserLinksTool{renderer: renderer}
}

func (t *BrowserLinksTool) Name() string { return ToolNameBrowserLinks }

func (t *BrowserLinksTool) Description() string {
	return "List the links on the page last opened with browser_open. Optionally filter by a substring of the link text or URL."
}

func (t *BrowserLinksTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"contains": map[string]interface{}{
				"type":        "string",
				"description": "Only return links whose text or URL contains this string (case-insensitive).",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum number of links (default %d).", browserDefaultLinkLimit),
			},
		},
	}
}

func (t *BrowserLinksTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	links, err := t.renderer.Links(ctx)
	if err != nil {
		return Errorf("%v", err)
	}

	filter := strings.ToLower(GetStringParam(params, "contains", ""))
	limit := GetIntParam(params, "limit", browserDefaultLinkLimit)
	if limit <= 0 {
		limit = browserDefaultLinkLimit
	}

	var sb strings.Builder
	seen := make(map[string]bool)
	count := 0
	for _, link := range links {
		if link.Href == "" || seen[link.Href] {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(link.Text), filter) && !strings.Contains(strings.ToLower(link.Href), filter) {
			continue
		}
		seen[link.Href] = true

		text := strings.Join(strings.Fields(link.Text), " ")
		if text == "" {
			text = link.Href
		}
		fmt.Fprintf(&sb, "- [%s](%s)\n", text, link.Href)

		count++
		if count >= limit {
			break
		}
	}

	if count == 0 {
		return &ToolResult{Result: "No links found.", UIResult: "0 links"}
	}
	return &ToolResult{Result: strings.TrimRight(sb.String(), "\n"), UIResult: fmt.Sprintf("%d links", count)}
}
