package mcp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/codefionn/tldrbot/internal/config"
	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/tools"
)

// KindOpenAPI turns every operation of an OpenAPI document into a tool.
const KindOpenAPI = "openapi"

// OpenAPIConnector loads an OpenAPI document with kin-openapi. Config keys:
// spec_path (file or URL), url (API base URL, defaults to the first server in
// the document), default_headers, default_query, auth_bearer_env,
// timeout_seconds.
type OpenAPIConnector struct {
	HTTPClient *http.Client
}

func (OpenAPIConnector) Kind() string { return KindOpenAPI }

func (c OpenAPIConnector) Connect(ctx context.Context, desc config.ServerDescriptor) (ToolServer, error) {
	specPath := desc.String("spec_path")
	if specPath == "" {
		return nil, fmt.Errorf("openapi spec_path is required")
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true

	var (
		doc *openapi3.T
		err error
	)
	if isURL(specPath) {
		doc, err = loader.LoadFromURI(parseURL(specPath))
	} else {
		doc, err = loader.LoadFromFile(specPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}

	baseURL := desc.String("url")
	if baseURL == "" && len(doc.Servers) > 0 && doc.Servers[0] != nil {
		baseURL = strings.TrimSpace(doc.Servers[0].URL)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("openapi server URL is required for %s", specPath)
	}

	headers := desc.StringMap("default_headers")
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, exists := headers["Authorization"]; !exists {
		if env := desc.String("auth_bearer_env"); env != "" {
			if bearer := strings.TrimSpace(os.Getenv(env)); bearer != "" {
				headers["Authorization"] = "Bearer " + bearer
			}
		}
	}

	name := desc.String("name")
	if name == "" && doc.Info != nil && doc.Info.Title != "" {
		name = doc.Info.Title
	}
	if name == "" {
		name = desc.Label()
	}

	toolset, err := buildOpenAPITools(doc, &tools.OpenAPIToolConfig{
		BaseURL:        baseURL,
		DefaultHeaders: headers,
		DefaultQuery:   desc.StringMap("default_query"),
		HTTPClient:     c.HTTPClient,
		Timeout:        desc.Seconds("timeout_seconds", consts.Timeout60Seconds),
	})
	if err != nil {
		return nil, err
	}

	return newRegistryServer(name, toolset...), nil
}

// buildOpenAPITools creates one tool per operation, sorted by path and
// method so tool names are stable between runs.
func buildOpenAPITools(doc *openapi3.T, base *tools.OpenAPIToolConfig) ([]tools.Tool, error) {
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("openapi spec contains no paths")
	}

	paths := doc.Paths.InMatchingOrder()
	sort.Strings(paths)

	var (
		result    []tools.Tool
		nameUsage = make(map[string]int)
	)
	for _, path := range paths {
		pathItem := doc.Paths.Value(path)
		if pathItem == nil {
			continue
		}

		operations := pathItem.Operations()
		methods := make([]string, 0, len(operations))
		for method := range operations {
			methods = append(methods, method)
		}
		sort.Strings(methods)

		for _, method := range methods {
			operation := operations[method]
			if operation == nil {
				continue
			}

			description := operation.Summary
			if description == "" {
				description = operation.Description
			}
			if description == "" {
				description = fmt.Sprintf("Call %s %s", strings.ToUpper(method), path)
			}

			result = append(result, tools.NewOpenAPITool(&tools.OpenAPIToolConfig{
				Name:           uniqueToolName(sanitizeName(detectOperationName(operation, method, path)), nameUsage),
				Description:    description,
				BaseURL:        base.BaseURL,
				Method:         method,
				Path:           path,
				Parameters:     collectParameters(pathItem.Parameters, operation.Parameters),
				RequestBody:    collectRequestBody(operation.RequestBody),
				DefaultHeaders: cloneStringMap(base.DefaultHeaders),
				DefaultQuery:   base.DefaultQuery,
				HTTPClient:     base.HTTPClient,
				Timeout:        base.Timeout,
			}))
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no operations discovered in OpenAPI spec")
	}
	return result, nil
}

func collectParameters(pathParams openapi3.Parameters, opParams openapi3.Parameters) []*tools.OpenAPIParameter {
	all := make([]*tools.OpenAPIParameter, 0, len(pathParams)+len(opParams))
	seen := make(map[string]bool)

	appendParam := func(paramRef *openapi3.ParameterRef) {
		if paramRef == nil || paramRef.Value == nil {
			return
		}
		param := paramRef.Value
		key := fmt.Sprintf("%s:%s", param.In, param.Name)
		if seen[key] {
			return
		}
		seen[key] = true

		all = append(all, &tools.OpenAPIParameter{
			Name:        param.Name,
			In:          param.In,
			Key:         buildParameterKey(param),
			Required:    param.Required,
			Schema:      schemaRefToJSONSchema(param.Schema),
			Description: param.Description,
		})
	}

	for _, p := range pathParams {
		appendParam(p)
	}
	for _, p := range opParams {
		appendParam(p)
	}

	return all
}

func collectRequestBody(requestBodyRef *openapi3.RequestBodyRef) *tools.OpenAPIRequestBody {
	if requestBodyRef == nil || requestBodyRef.Value == nil {
		return nil
	}

	contentType := ""
	var schemaRef *openapi3.SchemaRef

	for ctype, media := range requestBodyRef.Value.Content {
		if schemaRef == nil {
			contentType = ctype
			schemaRef = media.Schema
		}
		if ctype == "application/json" {
			contentType = ctype
			schemaRef = media.Schema
			break
		}
	}

	return &tools.OpenAPIRequestBody{
		Required:    requestBodyRef.Value.Required,
		ContentType: contentType,
		Schema:      schemaRefToJSONSchema(schemaRef),
	}
}

func schemaRefToJSONSchema(schemaRef *openapi3.SchemaRef) map[string]interface{} {
	if schemaRef == nil || schemaRef.Value == nil {
		return nil
	}
	schema := schemaRef.Value

	result := map[string]interface{}{}
	if schema.Type != nil {
		types := schema.Type.Slice()
		if len(types) == 1 {
			result["type"] = types[0]
		} else if len(types) > 1 {
			result["type"] = types
		}
	}
	if schema.Format != "" {
		result["format"] = schema.Format
	}
	if schema.Description != "" {
		result["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		result["enum"] = schema.Enum
	}
	if schema.Default != nil {
		result["default"] = schema.Default
	}
	if schema.Example != nil {
		result["example"] = schema.Example
	}
	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}
	if schema.Items != nil {
		result["items"] = schemaRefToJSONSchema(schema.Items)
	}
	if schema.Properties != nil {
		props := make(map[string]interface{}, len(schema.Properties))
		for key, propRef := range schema.Properties {
			props[key] = schemaRefToJSONSchema(propRef)
		}
		result["properties"] = props
	}
	if schema.AdditionalProperties.Schema != nil {
		result["additionalProperties"] = schemaRefToJSONSchema(schema.AdditionalProperties.Schema)
	} else if schema.AdditionalProperties.Has != nil {
		result["additionalPropertiesAllowed"] = *schema.AdditionalProperties.Has
	}
	if schema.AnyOf != nil {
		result["anyOf"] = schemaRefsToSlice(schema.AnyOf)
	}
	if schema.AllOf != nil {
		result["allOf"] = schemaRefsToSlice(schema.AllOf)
	}
	if schema.OneOf != nil {
		result["oneOf"] = schemaRefsToSlice(schema.OneOf)
	}

	return result
}

func schemaRefsToSlice(refs openapi3.SchemaRefs) []interface{} {
	out := make([]interface{}, 0, len(refs))
	for _, ref := range refs {
		out = append(out, schemaRefToJSONSchema(ref))
	}
	return out
}

func buildParameterKey(param *openapi3.Parameter) string {
	if param == nil {
		return ""
	}
	parts := []string{param.In, param.Name}
	return sanitizeName(strings.Join(parts, "_"))
}

func sanitizeName(name string) string {
	if name == "" {
		return "tool"
	}
	name = strings.ToLower(name)
	var b strings.Builder
	prevUnderscore := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	result := strings.Trim(b.String(), "_")
	if result == "" {
		return "tool"
	}
	return result
}

func uniqueToolName(base string, usage map[string]int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "tool"
	}
	if usage[base] == 0 {
		usage[base] = 1
		return base
	}
	// A suffixed name can collide with a tool that is literally named that way.
	for {
		usage[base]++
		candidate := fmt.Sprintf("%s_%d", base, usage[base])
		if usage[candidate] == 0 {
			usage[candidate] = 1
			return candidate
		}
	}
}

func cloneStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}

func detectOperationName(operation *openapi3.Operation, method, path string) string {
	if operation != nil && operation.OperationID != "" {
		return operation.OperationID
	}
	return fmt.Sprintf("%s_%s", method, strings.Trim(path, "/"))
}

func isURL(path string) bool {
	parsed, err := url.Parse(path)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}

func parseURL(raw string) *url.URL {
	parsed, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return parsed
}
