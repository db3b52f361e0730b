package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/htmlconv"
	"github.com/codefionn/tldrbot/internal/logger"
)

const (
	ToolNameFetchPage = "fetch_page"

	fetchDefaultCacheTTL  = 10 * time.Minute
	fetchDefaultUserAgent = "tldrbot/1.0 (+https://tldr.tech)"
)

// FetchOptions configures NewFetchPageTool.
type FetchOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxBytes   int
	CacheTTL   time.Duration
	UserAgent  string
	Now        func() time.Time
}

// FetchPageTool performs GET requests and hands the page back as markdown.
// Responses are cached briefly so repeated looks at the same issue page
// within one run hit the network once.
type FetchPageTool struct {
	client    *http.Client
	maxBytes  int
	userAgent string
	cache     *pageCache
}

// NewFetchPageTool constructs a FetchPageTool.
func NewFetchPageTool(opts FetchOptions) *FetchPageTool {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = consts.Timeout30Seconds
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = consts.DefaultFetchMaxBytes
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = fetchDefaultCacheTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = fetchDefaultUserAgent
	}

	return &FetchPageTool{
		client:    client,
		maxBytes:  maxBytes,
		userAgent: userAgent,
		cache:     newPageCache(ttl, now),
	}
}

func (t *FetchPageTool) Name() string { return ToolNameFetchPage }

func (t *FetchPageTool) Description() string {
	return "Fetch a web page with an HTTP GET request. HTML is reduced to its main content and returned as markdown. Set raw to true to get the body unchanged."
}

func (t *FetchPageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to fetch (http or https). A missing scheme defaults to https.",
			},
			"raw": map[string]interface{}{
				"type":        "boolean",
				"description": "Return the response body without HTML to markdown conversion.",
			},
		},
		"required": []string{"url"},
	}
}

type fetchedPage struct {
	url         string
	status      int
	contentType string
	body        string
	truncated   bool
}

func (t *FetchPageTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	rawURL := GetStringParam(params, "url", "")
	if rawURL == "" {
		return Errorf("url is required")
	}

	reqURL, err := normalizeFetchURL(rawURL)
	if err != nil {
		return Errorf("invalid url: %v", err)
	}

	page, cached := t.cache.get(reqURL.String())
	if !cached {
		page, err = t.fetch(ctx, reqURL)
		if err != nil {
			return Errorf("%v", err)
		}
		if page.status >= 200 && page.status < 300 {
			t.cache.put(reqURL.String(), page)
		}
	}

	content := page.body
	if !GetBoolParam(params, "raw", false) {
		if converted, ok := htmlconv.ConvertIfHTML(content); ok {
			content = converted
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\nStatus: %d\n", page.url, page.status)
	if page.contentType != "" {
		fmt.Fprintf(&sb, "Content-Type: %s\n", page.contentType)
	}
	if page.truncated {
		fmt.Fprintf(&sb, "Truncated: body exceeded %d bytes\n", t.maxBytes)
	}
	sb.WriteString("\n")
	sb.WriteString(content)

	uiResult := fmt.Sprintf("GET %s -> %d (%d bytes", page.url, page.status, len(page.body))
	if page.truncated {
		uiResult += ", truncated"
	}
	if cached {
		uiResult += ", cached"
	}
	uiResult += ")"

	result := &ToolResult{Result: sb.String(), UIResult: uiResult}
	if page.status < 200 || page.status >= 300 {
		result.Error = fmt.Sprintf("GET %s returned status %d", page.url, page.status)
	}
	return result
}

func (t *FetchPageTool) fetch(ctx context.Context, reqURL *url.URL) (*fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	truncated := len(bodyBytes) > t.maxBytes
	if truncated {
		bodyBytes = bodyBytes[:t.maxBytes]
	}

	finalURL := reqURL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	logger.Debug("fetch_page: GET %s -> %d (%d bytes)", finalURL, resp.StatusCode, len(bodyBytes))

	return &fetchedPage{
		url:         finalURL,
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        string(bodyBytes),
		truncated:   truncated,
	}, nil
}

// normalizeFetchURL ensures the URL has a scheme and host and only allows HTTP/S.
func normalizeFetchURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty url")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		parsed, err = url.Parse("https://" + trimmed)
		if err != nil {
			return nil, err
		}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("missing host")
	}

	return parsed, nil
}

type cacheEntry struct {
	url     string
	page    *fetchedPage
	expires time.Time
}

// pageCache keys entries by the xxhash of the URL. Colliding URLs are told
// apart by the stored URL.
type pageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uint64]cacheEntry
}

func newPageCache(ttl time.Duration, now func() time.Time) *pageCache {
	return &pageCache{ttl: ttl, now: now, entries: make(map[uint64]cacheEntry)}
}

func (c *pageCache) get(rawURL string) (*fetchedPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := xxhash.Sum64String(rawURL)
	entry, ok := c.entries[key]
	if !ok || entry.url != rawURL {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.page, true
}

func (c *pageCache) put(rawURL string, page *fetchedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
	c.entries[xxhash.Sum64String(rawURL)] = cacheEntry{url: rawURL, page: page, expires: now.Add(c.ttl)}
}
