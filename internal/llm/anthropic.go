package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicConfig configures an AnthropicClient. Only APIKey is required;
// the rest take the same defaults the constructor below documents.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string

	// MaxRetries and RetryDelay govern the exponential backoff applied to
	// retryable stream-creation errors: delay = RetryDelay * 2^attempt.
	MaxRetries int
	RetryDelay time.Duration
}

// AnthropicClient adapts anthropic-sdk-go's streaming Messages API to
// llm.Client.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: anthropic API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (c *AnthropicClient) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (<-chan Delta, error) {
	if model == "" {
		model = c.defaultModel
	}

	params, err := c.buildParams(model, messages, tools)
	if err != nil {
		return nil, err
	}

	deltas := make(chan Delta)

	go func() {
		defer close(deltas)

		// The SDK surfaces connection failures through stream.Err() only
		// after the first Next() call, so priming is how we detect a
		// retryable failure before committing to this stream for the rest
		// of processStream.
		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var primed bool
		for attempt := 0; ; attempt++ {
			stream = c.client.Messages.NewStreaming(ctx, params)
			primed = stream.Next()
			if primed || !isRetryableStreamErr(stream.Err()) || attempt >= c.maxRetries {
				break
			}
			backoff := c.retryDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: ctx.Err()}
				return
			case <-time.After(backoff):
			}
		}

		stop := watchCancel(ctx, func() { stream.Close() })
		defer stop()

		c.processStream(ctx, stream, primed, deltas)
	}()

	return deltas, nil
}

func isRetryableStreamErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"429", "rate_limit", "500", "502", "503", "504", "timeout", "deadline exceeded", "connection reset", "connection refused"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

func (c *AnthropicClient) buildParams(model string, messages []Message, tools []Tool) (anthropic.MessageNewParams, error) {
	var system []anthropic.TextBlockParam
	var converted []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == "system" {
			if msg.Content != "" {
				system = append(system, anthropic.TextBlockParam{Type: "text", Text: msg.Content})
			}
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		if msg.Role == "tool" {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return anthropic.MessageNewParams{}, fmt.Errorf("llm: invalid tool call input for %s: %w", tc.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		var m anthropic.MessageParam
		if msg.Role == "assistant" {
			m = anthropic.NewAssistantMessage(content...)
		} else {
			m = anthropic.NewUserMessage(content...)
		}
		converted = append(converted, m)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  converted,
		MaxTokens: 4096,
	}
	if len(system) > 0 {
		params.System = system
	}

	if len(tools) > 0 {
		converted, err := convertToolsAnthropic(tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = converted
	}

	return params, nil
}

func convertToolsAnthropic(tools []Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("llm: invalid tool schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("llm: invalid tool schema for %s", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

// maxEmptyStreamEvents caps consecutive events that carry no payload we
// forward, guarding against a malformed upstream that floods empty frames.
const maxEmptyStreamEvents = 300

func (c *AnthropicClient) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], primed bool, deltas chan<- Delta) {
	merger := NewStreamMerger()
	toolIndex := 0
	inToolBlock := false
	empty := 0
	var inputTokens, outputTokens int

	for ok := primed; ok; ok = stream.Next() {
		if ctx.Err() != nil {
			deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: ctx.Err()}
			return
		}

		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				merger.Add(&ToolCallFragment{Index: toolIndex, ID: toolUse.ID, Name: toolUse.Name})
				inToolBlock = true
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					deltas <- Delta{Type: DeltaText, Text: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					merger.Add(&ToolCallFragment{Index: toolIndex, ArgsDelta: delta.PartialJSON})
					processed = true
				}
			}

		case "content_block_stop":
			if inToolBlock {
				toolIndex++
				inToolBlock = false
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			processed = true

		case "message_stop":
			finish := FinishStop
			calls := merger.Finish()
			if len(calls) > 0 {
				finish = FinishToolCalls
			}
			deltas <- Delta{
				Type:         DeltaFinishReason,
				Finish:       finish,
				ToolCalls:    calls,
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}
			return

		case "error":
			deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: errors.New("llm: anthropic stream error")}
			return
		}

		if processed {
			empty = 0
		} else {
			empty++
			if empty >= maxEmptyStreamEvents {
				deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: fmt.Errorf("llm: anthropic stream malformed after %d empty events", empty)}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: err}
	}
}
