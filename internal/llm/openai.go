package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// OpenAIClient adapts sashabaranov/go-openai's chat completion stream to
// llm.Client.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: openai API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:       openai.NewClientWithConfig(oaiCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (<-chan Delta, error) {
	if model == "" {
		model = c.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessagesOpenAI(messages),
		Stream:   true,
	}
	if len(tools) > 0 {
		req.Tools = convertToolsOpenAI(tools)
	}

	var stream *openai.ChatCompletionStream
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		stream, lastErr = c.client.CreateChatCompletionStream(ctx, req)
		if lastErr == nil {
			break
		}
		if !isRetryableStreamErr(lastErr) {
			return nil, fmt.Errorf("llm: openai non-retryable error: %w", lastErr)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("llm: openai max retries exceeded: %w", lastErr)
	}

	deltas := make(chan Delta)
	go func() {
		defer close(deltas)
		stop := watchCancel(ctx, func() { stream.Close() })
		defer stop()
		c.processStream(ctx, stream, deltas)
	}()

	return deltas, nil
}

func (c *OpenAIClient) processStream(ctx context.Context, stream *openai.ChatCompletionStream, deltas chan<- Delta) {
	defer stream.Close()

	merger := NewStreamMerger()
	var inputTokens, outputTokens int

	for {
		if ctx.Err() != nil {
			deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: ctx.Err()}
			return
		}

		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				c.emitFinish(deltas, merger, FinishStop, inputTokens, outputTokens)
				return
			}
			deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: err}
			return
		}

		if resp.Usage != nil {
			inputTokens = resp.Usage.PromptTokens
			outputTokens = resp.Usage.CompletionTokens
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.Delta.Content != "" {
			deltas <- Delta{Type: DeltaText, Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			merger.Add(&ToolCallFragment{
				Index:     index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				ArgsDelta: tc.Function.Arguments,
			})
		}

		switch choice.FinishReason {
		case "tool_calls":
			c.emitFinish(deltas, merger, FinishToolCalls, inputTokens, outputTokens)
			return
		case "length":
			c.emitFinish(deltas, merger, FinishLength, inputTokens, outputTokens)
			return
		case "stop":
			c.emitFinish(deltas, merger, FinishStop, inputTokens, outputTokens)
			return
		}
	}
}

func (c *OpenAIClient) emitFinish(deltas chan<- Delta, merger *StreamMerger, finish FinishReason, inputTokens, outputTokens int) {
	calls := merger.Finish()
	if len(calls) > 0 && finish == FinishStop {
		finish = FinishToolCalls
	}
	deltas <- Delta{
		Type:         DeltaFinishReason,
		Finish:       finish,
		ToolCalls:    calls,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

func convertMessagesOpenAI(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Input),
						},
					}
				}
			}
			result = append(result, oaiMsg)
		default:
			result = append(result, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
		}
	}
	return result
}

func convertToolsOpenAI(tools []Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}
