package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/codefionn/tldrbot/internal/llm"
	"github.com/codefionn/tldrbot/internal/logger"
)

// ExecutorOptions configures NewExecutor.
type ExecutorOptions struct {
	// SystemPrompt is read at the start of every run so prompt file reloads
	// apply to the next task.
	SystemPrompt func() string

	// Echo receives every aggregated piece of text as it arrives.
	Echo io.Writer
}

// Executor turns a prompt into one aggregated document.
type Executor struct {
	conv         Conversation
	systemPrompt func() string
	echo         io.Writer
	log          *logger.Logger
}

// NewExecutor creates an Executor over conv.
func NewExecutor(conv Conversation, opts ExecutorOptions) *Executor {
	echo := opts.Echo
	if echo == nil {
		echo = io.Discard
	}
	return &Executor{
		conv:         conv,
		systemPrompt: opts.SystemPrompt,
		echo:         echo,
		log:          logger.Global().WithPrefix("executor"),
	}
}

// Run sends prompt to the model and returns the concatenation of every
// streamed delta and every non-empty assistant message, in arrival order.
// On any failure no partial text is returned.
func (e *Executor) Run(ctx context.Context, prompt string) (string, error) {
	if err := e.conv.EnsureReady(ctx); err != nil {
		return "", fmt.Errorf("tool session not ready: %w", err)
	}

	messages := e.buildConversation(prompt)

	exchange, err := e.conv.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open exchange: %w", err)
	}
	defer func() {
		if closeErr := exchange.Close(); closeErr != nil {
			e.log.Warn("closing exchange: %v", closeErr)
		}
	}()

	var (
		result  strings.Builder
		ignored int
	)
	err = exchange.Stream(ctx, messages, func(f Fragment) error {
		text, ok := contribution(f)
		if !ok {
			ignored++
			return nil
		}
		result.WriteString(text)
		_, _ = io.WriteString(e.echo, text)
		return nil
	})
	if err != nil {
		e.log.Error("exchange failed after %d bytes: %v", result.Len(), err)
		return "", err
	}

	e.log.Debug("exchange finished: %d bytes, %d fragments ignored", result.Len(), ignored)
	return result.String(), nil
}

func (e *Executor) buildConversation(prompt string) []*llm.Message {
	messages := make([]*llm.Message, 0, 2)
	if e.systemPrompt != nil {
		if system := e.systemPrompt(); system != "" {
			messages = append(messages, &llm.Message{Role: llm.RoleSystem, Content: system})
		}
	}
	return append(messages, &llm.Message{Role: llm.RoleUser, Content: prompt})
}

// contribution returns the text a fragment adds to the document.
func contribution(f Fragment) (string, bool) {
	switch f.Kind {
	case FragmentDelta:
		return f.Delta, true
	case FragmentMessage:
		if f.Message != nil && f.Message.Role == llm.RoleAssistant && f.Message.Content != "" {
			return f.Message.Content, true
		}
	}
	return "", false
}
