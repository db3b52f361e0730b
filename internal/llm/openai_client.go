package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/codefionn/tldrbot/internal/consts"
)

// OpenAIClient streams chat completions from OpenAI or any endpoint that
// speaks the same protocol, including the Hugging Face inference router.
type OpenAIClient struct {
	client openai.Client
	model  string
	label  string
}

// OpenAIOptions configures NewOpenAIClient.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	// Label names the backend in error messages.
	Label      string
	HTTPClient *http.Client
}

// NewOpenAIClient creates a streaming chat completions client.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("openai client requires an API key")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, fmt.Errorf("openai client requires a model")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: consts.Timeout5Minutes}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}

	label := opts.Label
	if label == "" {
		label = "openai"
	}

	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		model:  model,
		label:  label,
	}, nil
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}

func (c *OpenAIClient) Stream(ctx context.Context, req *CompletionRequest, onDelta func(chunk string) error) (*CompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onDelta(choice.Delta.Content); err != nil {
				return nil, err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%s stream failed: %w", c.label, err)
	}

	return buildOpenAIResponse(&acc), nil
}

func (c *OpenAIClient) buildParams(req *CompletionRequest) (openai.ChatCompletionNewParams, error) {
	if req == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("%s completion request cannot be nil", c.label)
	}

	messages, err := convertMessagesToOpenAI(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("%s completion requires at least one message", c.label)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertOpenAITools(req.Tools)
	}
	return params, nil
}

func convertMessagesToOpenAI(req *CompletionRequest) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	for idx, msg := range req.Messages {
		if msg == nil {
			continue
		}

		switch normalizeRole(msg.Role) {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				asst.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				id, name, args := ToolCallParts(tc)
				if name == "" {
					return nil, fmt.Errorf("assistant message %d has a tool call without a name", idx)
				}
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: id,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      name,
						Arguments: args,
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case RoleTool:
			if msg.ToolID == "" {
				messages = append(messages, openai.UserMessage(msg.Content))
				continue
			}
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolID))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return messages, nil
}

func convertOpenAITools(tools []map[string]interface{}) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		name, description, params, ok := toolFunction(tool)
		if !ok {
			continue
		}
		def := openai.FunctionDefinitionParam{
			Name:       name,
			Parameters: openai.FunctionParameters(params),
		}
		if description != "" {
			def.Description = openai.String(description)
		}
		result = append(result, openai.ChatCompletionToolParam{Function: def})
	}
	return result
}

func buildOpenAIResponse(acc *openai.ChatCompletionAccumulator) *CompletionResponse {
	resp := &CompletionResponse{StopReason: "stop"}
	if acc.Usage.TotalTokens > 0 {
		resp.Usage = map[string]interface{}{
			"prompt_tokens":     acc.Usage.PromptTokens,
			"completion_tokens": acc.Usage.CompletionTokens,
			"total_tokens":      acc.Usage.TotalTokens,
		}
	}
	if len(acc.Choices) == 0 {
		return resp
	}

	choice := acc.Choices[0]
	resp.Content = choice.Message.Content
	if reason := strings.TrimSpace(string(choice.FinishReason)); reason != "" {
		resp.StopReason = reason
	}

	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	resp.ToolCalls = NormalizeToolCallIDs(resp.ToolCalls)
	return resp
}
