package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GoogleGenAIClient streams turns through the official Google GenAI SDK.
type GoogleGenAIClient struct {
	modelName string
	client    *genai.Client
}

// NewGoogleAIClient creates a Google GenAI client for the provided model.
func NewGoogleAIClient(ctx context.Context, apiKey, modelName string) (*GoogleGenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("google client requires an API key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google GenAI client: %w", err)
	}

	return &GoogleGenAIClient{
		modelName: normalizeGoogleModelName(modelName),
		client:    client,
	}, nil
}

func (c *GoogleGenAIClient) ModelName() string {
	return c.modelName
}

func (c *GoogleGenAIClient) Stream(ctx context.Context, req *CompletionRequest, onDelta func(chunk string) error) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("google completion request cannot be nil")
	}

	contents, err := convertMessagesToGenAI(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("google completion requires at least one message")
	}

	cfg := buildGenAIGenerationConfig(req)

	resp := &CompletionResponse{}
	var text strings.Builder
	for result, err := range c.client.Models.GenerateContentStream(ctx, c.modelName, contents, cfg) {
		if err != nil {
			return nil, fmt.Errorf("google genai stream failed: %w", err)
		}
		if result.UsageMetadata != nil {
			resp.Usage = map[string]interface{}{
				"prompt_tokens":     result.UsageMetadata.PromptTokenCount,
				"completion_tokens": result.UsageMetadata.CandidatesTokenCount,
				"total_tokens":      result.UsageMetadata.TotalTokenCount,
			}
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			continue
		}

		candidate := result.Candidates[0]
		if candidate.FinishReason != "" {
			resp.StopReason = string(candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, convertGenAIFunctionCall(part.FunctionCall))
				continue
			}
			if part.Text == "" || part.Thought {
				continue
			}
			text.WriteString(part.Text)
			if err := onDelta(part.Text); err != nil {
				return nil, err
			}
		}
	}

	resp.Content = text.String()
	resp.ToolCalls = NormalizeToolCallIDs(resp.ToolCalls)
	if resp.StopReason == "" {
		resp.StopReason = "stop"
	}
	return resp, nil
}

func convertGenAIFunctionCall(call *genai.FunctionCall) map[string]interface{} {
	argsJSON, err := json.Marshal(call.Args)
	if err != nil || call.Args == nil {
		argsJSON = []byte("{}")
	}
	return NewToolCall(call.ID, call.Name, string(argsJSON))
}

func convertMessagesToGenAI(messages []*Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}

		switch normalizeRole(msg.Role) {
		case RoleAssistant:
			content, err := convertAssistantMessage(msg)
			if err != nil {
				return nil, err
			}
			contents = append(contents, content)
		case RoleTool:
			contents = append(contents, convertToolResponseMessage(msg))
		default:
			if msg.Content == "" {
				continue
			}
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, nil
}

func convertAssistantMessage(msg *Message) (*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)

	if msg.Content != "" {
		parts = append(parts, genai.NewPartFromText(msg.Content))
	}

	for _, tc := range msg.ToolCalls {
		id, name, args := ToolCallParts(tc)
		if name == "" {
			continue
		}
		argsMap, err := DecodeArguments(args)
		if err != nil {
			return nil, fmt.Errorf("invalid function call arguments: %w", err)
		}
		part := genai.NewPartFromFunctionCall(name, argsMap)
		part.FunctionCall.ID = id
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(""))
	}

	return genai.NewContentFromParts(parts, genai.RoleModel), nil
}

func convertToolResponseMessage(msg *Message) *genai.Content {
	responsePayload := make(map[string]any)
	if strings.TrimSpace(msg.Content) != "" {
		if err := json.Unmarshal([]byte(msg.Content), &responsePayload); err != nil {
			responsePayload = map[string]any{"output": msg.Content}
		}
	}

	part := genai.NewPartFromFunctionResponse(msg.ToolName, responsePayload)
	if msg.ToolID != "" {
		part.FunctionResponse.ID = msg.ToolID
	}

	return genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser)
}

func buildGenAIGenerationConfig(req *CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	system := strings.TrimSpace(req.SystemPrompt)
	for _, msg := range req.Messages {
		if msg != nil && normalizeRole(msg.Role) == RoleSystem && strings.TrimSpace(msg.Content) != "" {
			if system != "" {
				system += "\n\n"
			}
			system += strings.TrimSpace(msg.Content)
		}
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		cfg.Temperature = &temp
	}

	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	if tools := convertToolsToGenAI(req.Tools); len(tools) > 0 {
		cfg.Tools = tools
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}

	return cfg
}

func convertToolsToGenAI(tools []map[string]interface{}) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		name, description, params, ok := toolFunction(tool)
		if !ok {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 name,
			Description:          description,
			ParametersJsonSchema: params,
		})
	}

	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func normalizeGoogleModelName(modelName string) string {
	trimmed := strings.TrimSpace(modelName)
	if trimmed == "" {
		return "models/gemini-2.0-flash"
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "models/") || strings.HasPrefix(lowered, "publishers/") {
		return trimmed
	}

	return "models/" + trimmed
}
