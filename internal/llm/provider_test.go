package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/tldrbot/internal/provider"
	"github.com/codefionn/tldrbot/internal/securemem"
)

func TestNewClientSelectsBackend(t *testing.T) {
	key := securemem.NewString("test-key")
	defer key.Destroy()

	nebius, err := provider.Lookup("nebius")
	require.NoError(t, err)
	client, err := NewClient(context.Background(), ClientOptions{Provider: nebius, APIKey: key, Model: "Qwen/Qwen2.5-72B-Instruct"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "Qwen/Qwen2.5-72B-Instruct:nebius", client.ModelName())

	anthropicInfo, err := provider.Lookup("anthropic")
	require.NoError(t, err)
	client, err = NewClient(context.Background(), ClientOptions{Provider: anthropicInfo, APIKey: key, Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, client)
}

func TestNewClientErrors(t *testing.T) {
	openaiInfo, err := provider.Lookup("openai")
	require.NoError(t, err)
	_, err = NewClient(context.Background(), ClientOptions{Provider: openaiInfo, Model: "gpt-4o"})
	assert.Error(t, err)

	key := securemem.NewString("k")
	defer key.Destroy()
	compatible, err := provider.Lookup("openai-compatible")
	require.NoError(t, err)
	_, err = NewClient(context.Background(), ClientOptions{Provider: compatible, APIKey: key, Model: "local"})
	assert.ErrorContains(t, err, "base_url")
}
