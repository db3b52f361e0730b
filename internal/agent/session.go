// Package agent runs one prompt against the model and its tool servers and
// folds the streamed output into a single document.
package agent

import (
	"context"
	"fmt"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/llm"
	"github.com/codefionn/tldrbot/internal/logger"
	"github.com/codefionn/tldrbot/internal/tools"
)

// FragmentKind tells a streamed text piece from a complete message.
type FragmentKind int

const (
	FragmentDelta FragmentKind = iota
	FragmentMessage
)

func (k FragmentKind) String() string {
	if k == FragmentMessage {
		return "message"
	}
	return "delta"
}

// Fragment is one item of an exchange stream.
type Fragment struct {
	Kind    FragmentKind
	Delta   string
	Message *llm.Message
}

// DeltaFragment wraps a streamed text piece.
func DeltaFragment(text string) Fragment {
	return Fragment{Kind: FragmentDelta, Delta: text}
}

// MessageFragment wraps a complete message.
func MessageFragment(msg *llm.Message) Fragment {
	return Fragment{Kind: FragmentMessage, Message: msg}
}

// Conversation opens exchanges with the model.
type Conversation interface {
	EnsureReady(ctx context.Context) error
	Open(ctx context.Context) (Exchange, error)
}

// Exchange streams the fragments produced for one conversation. Close must
// be called once the exchange is no longer used.
type Exchange interface {
	Stream(ctx context.Context, messages []*llm.Message, yield func(Fragment) error) error
	Close() error
}

// ToolSession is the tool side of a conversation.
type ToolSession interface {
	EnsureReady(ctx context.Context) error
	ToolDefinitions() []map[string]interface{}
	Call(ctx context.Context, call *tools.ToolCall) *tools.ToolResult
	EndExchange()
}

// SessionOptions tunes the model turns of a Session.
type SessionOptions struct {
	MaxTurns    int
	MaxTokens   int
	Temperature *float64
}

// Session binds a model client to a tool session.
type Session struct {
	client llm.Client
	tools  ToolSession
	opts   SessionOptions
	log    *logger.Logger
}

// NewSession creates a Session. MaxTurns defaults to DefaultMaxTurns.
func NewSession(client llm.Client, toolSession ToolSession, opts SessionOptions) *Session {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = consts.DefaultMaxTurns
	}
	return &Session{
		client: client,
		tools:  toolSession,
		opts:   opts,
		log:    logger.Global().WithPrefix("session"),
	}
}

// EnsureReady connects the tool servers.
func (s *Session) EnsureReady(ctx context.Context) error {
	return s.tools.EnsureReady(ctx)
}

// Open starts an exchange. The session must be ready.
func (s *Session) Open(ctx context.Context) (Exchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &toolExchange{session: s}, nil
}

// toolExchange runs the model/tool loop for one conversation.
type toolExchange struct {
	session *Session
	closed  bool
}

// Stream runs model turns until one finishes without tool calls or the turn
// limit is hit. Text deltas are yielded as they arrive; a turn whose text
// never streamed is yielded as one assistant message. Every tool result is
// yielded as a tool message.
func (x *toolExchange) Stream(ctx context.Context, messages []*llm.Message, yield func(Fragment) error) error {
	if x.closed {
		return fmt.Errorf("exchange is closed")
	}

	s := x.session
	history := append([]*llm.Message(nil), messages...)
	definitions := s.tools.ToolDefinitions()

	for turn := 1; turn <= s.opts.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := &llm.CompletionRequest{
			Messages:    history,
			Tools:       definitions,
			Temperature: s.opts.Temperature,
			MaxTokens:   s.opts.MaxTokens,
		}

		streamed := false
		resp, err := s.client.Stream(ctx, req, func(chunk string) error {
			streamed = true
			return yield(DeltaFragment(chunk))
		})
		if err != nil {
			return err
		}

		assistant := &llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		history = append(history, assistant)
		s.log.Debug("turn %d: %d chars, %d tool calls, stop=%s", turn, len(resp.Content), len(resp.ToolCalls), resp.StopReason)

		if !streamed {
			if err := yield(MessageFragment(assistant)); err != nil {
				return err
			}
		}

		if len(resp.ToolCalls) == 0 {
			return nil
		}
		if turn == s.opts.MaxTurns {
			s.log.Warn("stopping after %d turns with %d tool calls pending", turn, len(resp.ToolCalls))
			return nil
		}

		for _, tc := range resp.ToolCalls {
			result := x.callTool(ctx, tc)
			history = append(history, result)
			if err := yield(MessageFragment(result)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *toolExchange) callTool(ctx context.Context, tc map[string]interface{}) *llm.Message {
	id, name, rawArgs := llm.ToolCallParts(tc)
	msg := &llm.Message{Role: llm.RoleTool, ToolID: id, ToolName: name}

	args, err := llm.DecodeArguments(rawArgs)
	if err != nil {
		msg.Content = (&tools.ToolResult{Error: err.Error()}).Text()
		return msg
	}

	result := x.session.tools.Call(ctx, &tools.ToolCall{ID: id, Name: name, Parameters: args})
	if result != nil && result.UIResult != "" {
		x.session.log.Info("%s: %s", name, result.UIResult)
	}
	msg.Content = result.Text()
	return msg
}

// Close ends the exchange's tool resources. Connections stay open.
func (x *toolExchange) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	x.session.tools.EndExchange()
	return nil
}
