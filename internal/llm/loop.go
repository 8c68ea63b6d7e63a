package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// defaultMaxIterations bounds the tool-use cycle to keep a misbehaving
// conversation from running unattended forever.
const defaultMaxIterations = 50

// ErrStopped is returned when a stop signal interrupts the loop.
var ErrStopped = errors.New("stop signal received")

// ToolDispatcher executes a named tool call. The returned content goes back
// to the model verbatim; isError marks it as a tool failure.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) (content string, isError bool)
}

// StopChecker reports whether an external stop signal is set. Checked once
// per iteration.
type StopChecker interface {
	Stopped() bool
}

// StreamEvent is one observable moment of a loop run.
type StreamEvent struct {
	Type    string // "text", "tool_use", "tool_result", "done", "error"
	Content string
	Tool    string
	Input   json.RawMessage
}

// LoopResult summarizes a completed loop run.
type LoopResult struct {
	Output     string
	TokensIn   int64
	TokensOut  int64
	ToolCalls  int
	Iterations int
	Stopped    bool
}

// Loop drives the model through repeated tool-use rounds until it stops
// calling tools, a stop signal fires, or the iteration limit is hit.
type Loop struct {
	client        *Client
	dispatcher    ToolDispatcher
	tools         []anthropic.ToolUnionParam
	stop          StopChecker
	onStream      func(StreamEvent)
	maxIterations int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithStopChecker attaches an external stop signal source.
func WithStopChecker(s StopChecker) LoopOption {
	return func(l *Loop) { l.stop = s }
}

// WithStreamHandler attaches a callback for loop events.
func WithStreamHandler(fn func(StreamEvent)) LoopOption {
	return func(l *Loop) { l.onStream = fn }
}

// WithMaxIterations overrides the iteration cap.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) { l.maxIterations = n }
}

// NewLoop creates a Loop over the given client, dispatcher, and tool set.
func NewLoop(client *Client, dispatcher ToolDispatcher, tools []anthropic.ToolUnionParam, opts ...LoopOption) *Loop {
	l := &Loop{
		client:        client,
		dispatcher:    dispatcher,
		tools:         tools,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) emit(event StreamEvent) {
	if l.onStream != nil {
		l.onStream(event)
	}
}

func (l *Loop) stopped() bool {
	return l.stop != nil && l.stop.Stopped()
}

// Run executes the tool-use cycle with the given prompts.
func (l *Loop) Run(ctx context.Context, systemPrompt, userPrompt string) (*LoopResult, error) {
	result := &LoopResult{}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		if l.stopped() {
			result.Stopped = true
			return result, ErrStopped
		}

		resp, err := l.client.inner.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     l.client.model,
			MaxTokens: 8192,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: messages,
			Tools:    l.tools,
		})
		if err != nil {
			l.emit(StreamEvent{Type: "error", Content: err.Error()})
			return result, fmt.Errorf("chat completion: %w", err)
		}

		result.TokensIn += resp.Usage.InputTokens
		result.TokensOut += resp.Usage.OutputTokens

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var textOutput string

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				textOutput += variant.Text
				l.emit(StreamEvent{Type: "text", Content: variant.Text})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				result.ToolCalls++
				l.emit(StreamEvent{Type: "tool_use", Tool: variant.Name, Input: variant.Input})
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				content, isError := l.dispatcher.Dispatch(ctx, variant.Name, variant.Input)
				l.emit(StreamEvent{Type: "tool_result", Tool: variant.Name, Content: content})
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, content, isError))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn {
			result.Output = textOutput
			l.emit(StreamEvent{Type: "done"})
			return result, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	return result, fmt.Errorf("max iterations (%d) reached", l.maxIterations)
}
