package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/codefionn/tldrbot/internal/consts"
)

// OpenAPIParameter describes an OpenAPI parameter exposed to the tool schema.
type OpenAPIParameter struct {
	Name        string
	In          string
	Key         string
	Required    bool
	Schema      map[string]interface{}
	Description string
}

// OpenAPIRequestBody captures body metadata for the tool execution.
type OpenAPIRequestBody struct {
	Required    bool
	ContentType string
	Schema      map[string]interface{}
}

// OpenAPIToolConfig contains the information required to build an OpenAPITool.
type OpenAPIToolConfig struct {
	Name           string
	Description    string
	BaseURL        string
	Method         string
	Path           string
	Parameters     []*OpenAPIParameter
	RequestBody    *OpenAPIRequestBody
	DefaultHeaders map[string]string
	DefaultQuery   map[string]string
	HTTPClient     *http.Client
	Timeout        time.Duration
}

// OpenAPITool exposes one OpenAPI operation as a tool, e.g. a newsletter
// archive or feed API.
type OpenAPITool struct {
	name           string
	description    string
	method         string
	baseURL        string
	path           string
	parameters     []*OpenAPIParameter
	requestBody    *OpenAPIRequestBody
	defaultHeaders map[string]string
	defaultQuery   map[string]string
	client         *http.Client
	timeout        time.Duration
}

// NewOpenAPITool constructs a new OpenAPITool from config.
func NewOpenAPITool(cfg *OpenAPIToolConfig) *OpenAPITool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = consts.Timeout30Seconds
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &OpenAPITool{
		name:           cfg.Name,
		description:    cfg.Description,
		method:         strings.ToUpper(cfg.Method),
		baseURL:        cfg.BaseURL,
		path:           cfg.Path,
		parameters:     cfg.Parameters,
		requestBody:    cfg.RequestBody,
		defaultHeaders: cfg.DefaultHeaders,
		defaultQuery:   cfg.DefaultQuery,
		client:         client,
		timeout:        timeout,
	}
}

// Name implements ToolSpec.
func (o *OpenAPITool) Name() string {
	return o.name
}

// Description implements ToolSpec.
func (o *OpenAPITool) Description() string {
	if o.description != "" {
		return o.description
	}
	return fmt.Sprintf("Invoke %s %s", o.method, o.path)
}

// Parameters implements ToolSpec. Parameter locations are encoded as an
// "in" hint so the model can tell path, query and header values apart.
func (o *OpenAPITool) Parameters() map[string]interface{} {
	properties := make(map[string]interface{})
	required := make([]string, 0)

	for _, p := range o.parameters {
		if p == nil {
			continue
		}

		schema := cloneJSON(p.Schema)
		if schema == nil {
			schema = map[string]interface{}{"type": "string"}
		}
		if p.Description != "" {
			schema["description"] = strings.TrimSpace(p.Description)
		}
		schema["in"] = p.In

		properties[p.Key] = schema
		if p.Required {
			required = append(required, p.Key)
		}
	}

	if o.requestBody != nil {
		bodySchema := cloneJSON(o.requestBody.Schema)
		if bodySchema == nil {
			bodySchema = map[string]interface{}{"type": "object"}
		}
		if o.requestBody.ContentType != "" {
			bodySchema["content_type"] = o.requestBody.ContentType
		}
		bodySchema["description"] = "HTTP request body payload"
		properties["body"] = bodySchema
		if o.requestBody.Required {
			required = append(required, "body")
		}
	}

	result := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		result["required"] = required
	}

	return result
}

// Execute performs the HTTP request described by the operation. Transport
// failures and non-2xx statuses are reported as tool errors so the model can
// react to them.
func (o *OpenAPITool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	reqURL, err := o.buildURL(params)
	if err != nil {
		return Errorf("%v", err)
	}

	bodyReader, contentType, err := o.encodeBody(params)
	if err != nil {
		return Errorf("%v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, o.method, reqURL, bodyReader)
	if err != nil {
		return Errorf("failed to create request: %v", err)
	}

	for k, v := range o.defaultHeaders {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.5")
	}

	for _, p := range o.parameters {
		if p == nil || p.In != "header" {
			continue
		}
		value, ok := params[p.Key]
		if !ok {
			continue
		}
		for _, item := range paramValues(value) {
			req.Header.Add(p.Name, item)
		}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, consts.DefaultFetchMaxBytes+1))
	if err != nil {
		return Errorf("failed to read response body: %v", err)
	}
	truncated := len(respBody) > consts.DefaultFetchMaxBytes
	if truncated {
		respBody = respBody[:consts.DefaultFetchMaxBytes]
	}

	result := map[string]interface{}{
		"url":    req.URL.String(),
		"method": o.method,
		"status": resp.StatusCode,
	}
	if truncated {
		result["truncated"] = true
	}

	var parsed interface{}
	switch {
	case len(respBody) == 0:
		result["body"] = ""
	case json.Unmarshal(respBody, &parsed) == nil:
		result["body"] = parsed
	default:
		result["body"] = string(respBody)
	}

	toolResult := &ToolResult{
		Result:   result,
		UIResult: fmt.Sprintf("%s %s -> %d", o.method, req.URL.String(), resp.StatusCode),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		toolResult.Error = fmt.Sprintf("%s %s returned %s", o.method, req.URL.Path, resp.Status)
	}
	return toolResult
}

func (o *OpenAPITool) encodeBody(params map[string]interface{}) (io.Reader, string, error) {
	if o.requestBody == nil {
		return nil, "", nil
	}

	bodyValue, ok := params["body"]
	if !ok || bodyValue == nil {
		if o.requestBody.Required {
			return nil, "", fmt.Errorf("body is required")
		}
		return nil, "", nil
	}

	contentType := o.requestBody.ContentType
	if s, ok := bodyValue.(string); ok {
		return strings.NewReader(s), contentType, nil
	}

	data, err := json.Marshal(bodyValue)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal body: %w", err)
	}
	if contentType == "" {
		contentType = "application/json"
	}
	return bytes.NewReader(data), contentType, nil
}

func paramValues(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return v
	default:
		return []string{fmt.Sprint(v)}
	}
}

func (o *OpenAPITool) buildURL(params map[string]interface{}) (string, error) {
	baseURL := strings.TrimSpace(o.baseURL)
	relativePath := o.path

	// Substitute path parameters.
	for _, p := range o.parameters {
		if p == nil || p.In != "path" {
			continue
		}
		value, ok := params[p.Key]
		if !ok {
			if p.Required {
				return "", fmt.Errorf("missing required path parameter: %s", p.Key)
			}
			continue
		}
		replacement := url.PathEscape(fmt.Sprint(value))
		relativePath = strings.ReplaceAll(relativePath, "{"+p.Name+"}", replacement)
	}

	var fullURL string
	if baseURL == "" {
		fullURL = relativePath
	} else {
		base, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
		}
		if !strings.HasPrefix(relativePath, "/") {
			relativePath = "/" + relativePath
		}
		base.Path = path.Join(strings.TrimSuffix(base.Path, "/"), relativePath)
		fullURL = base.String()
	}

	parsedURL, err := url.Parse(fullURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", fullURL, err)
	}

	queryValues := parsedURL.Query()
	for key, val := range o.defaultQuery {
		queryValues.Set(key, val)
	}

	for _, p := range o.parameters {
		if p == nil || p.In != "query" {
			continue
		}
		value, ok := params[p.Key]
		if !ok {
			if p.Required {
				return "", fmt.Errorf("missing required query parameter: %s", p.Key)
			}
			continue
		}
		queryValues.Del(p.Name)
		for _, item := range paramValues(value) {
			queryValues.Add(p.Name, item)
		}
	}

	parsedURL.RawQuery = queryValues.Encode()
	return parsedURL.String(), nil
}

func cloneJSON(val map[string]interface{}) map[string]interface{} {
	if val == nil {
		return nil
	}
	out := make(map[string]interface{}, len(val))
	for k, v := range val {
		out[k] = v
	}
	return out
}
