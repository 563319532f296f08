package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// GeminiClient adapts google.golang.org/genai's streaming GenerateContent to
// llm.Client.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: gemini API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini failed to create client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (<-chan Delta, error) {
	if model == "" {
		model = c.defaultModel
	}

	contents := convertMessagesGemini(messages)
	config := buildGeminiConfig(messages, tools)

	deltas := make(chan Delta)
	go func() {
		defer close(deltas)

		var lastErr error
		for attempt := 0; attempt < c.maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: ctx.Err()}
					return
				case <-time.After(c.retryDelay * time.Duration(1<<uint(attempt-1))):
				}
			}

			streamIter := c.client.Models.GenerateContentStream(ctx, model, contents, config)
			lastErr = processGeminiStream(ctx, streamIter, deltas)
			if lastErr == nil {
				return
			}
			if !isRetryableGeminiErr(lastErr) {
				deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: lastErr}
				return
			}
		}
		deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: fmt.Errorf("llm: gemini max retries exceeded: %w", lastErr)}
	}()

	return deltas, nil
}

func isRetryableGeminiErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded", "resource_exhausted", "unavailable"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// processGeminiStream drains one attempt's iterator and emits deltas. It
// returns the stream error, if any, so Chat's retry loop can decide whether
// to attempt again; a successful run emits the terminal finish delta itself
// and returns nil.
func processGeminiStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], deltas chan<- Delta) error {
	merger := NewStreamMerger()
	toolIndex := 0
	sawToolCall := false
	var streamErr error

	streamIter(func(resp *genai.GenerateContentResponse, err error) bool {
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			return false
		}
		if err != nil {
			streamErr = err
			return false
		}
		if resp == nil {
			return true
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					deltas <- Delta{Type: DeltaText, Text: part.Text}
				}
				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					merger.Add(&ToolCallFragment{Index: toolIndex, ID: part.FunctionCall.Name, Name: part.FunctionCall.Name, ArgsDelta: string(argsJSON)})
					toolIndex++
					sawToolCall = true
				}
			}
		}
		return true
	})

	if streamErr != nil {
		return streamErr
	}

	finish := FinishStop
	var calls []ToolCall
	if sawToolCall {
		finish = FinishToolCalls
		calls = merger.Finish()
	}
	deltas <- Delta{Type: DeltaFinishReason, Finish: finish, ToolCalls: calls}
	return nil
}

func convertMessagesGemini(messages []Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case "assistant":
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(tc.Input, &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args}})
		}
		if msg.Role == "tool" {
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]any{"result": msg.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{Name: msg.ToolCallID, Response: response}})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result
}

func buildGeminiConfig(messages []Message, tools []Tool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	for _, msg := range messages {
		if msg.Role == "system" && msg.Content != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			break
		}
	}
	if len(tools) > 0 {
		config.Tools = convertToolsGemini(tools)
	}
	return config
}

func convertToolsGemini(tools []Tool) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(t.InputSchema, &schemaMap); err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  geminiSchemaFromMap(schemaMap),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func geminiSchemaFromMap(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = geminiSchemaFromMap(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = geminiSchemaFromMap(items)
	}
	return schema
}
