package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConfig configures a BedrockClient. Credentials default to the AWS
// SDK's standard chain (env, shared config, IAM role) unless AccessKeyID and
// SecretAccessKey are both set.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

// BedrockClient adapts the ConverseStream API to llm.Client.
type BedrockClient struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (c *BedrockClient) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (<-chan Delta, error) {
	if model == "" {
		model = c.defaultModel
	}

	req := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: convertMessagesBedrock(messages),
	}
	for _, msg := range messages {
		if msg.Role == "system" && msg.Content != "" {
			req.System = append(req.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		}
	}
	if len(tools) > 0 {
		toolConfig, err := convertToolsBedrock(tools)
		if err != nil {
			return nil, err
		}
		req.ToolConfig = toolConfig
	}

	var stream *bedrockruntime.ConverseStreamOutput
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(1<<uint(attempt-1))):
			}
		}
		stream, lastErr = c.client.ConverseStream(ctx, req)
		if lastErr == nil {
			break
		}
		if !isRetryableBedrockErr(lastErr) {
			return nil, fmt.Errorf("llm: bedrock non-retryable error: %w", lastErr)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("llm: bedrock max retries exceeded: %w", lastErr)
	}

	deltas := make(chan Delta)
	go c.processStream(ctx, stream, deltas)
	return deltas, nil
}

func isRetryableBedrockErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"throttlingexception", "toomanyrequestsexception", "serviceunavailableexception", "rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

func (c *BedrockClient) processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, deltas chan<- Delta) {
	defer close(deltas)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	merger := NewStreamMerger()
	toolIndex := 0

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: ctx.Err()}
			return
		case event, ok := <-eventChan:
			if !ok {
				if err := eventStream.Err(); err != nil {
					deltas <- Delta{Type: DeltaFinishReason, Finish: FinishError, Err: err}
				} else {
					deltas <- Delta{Type: DeltaFinishReason, Finish: FinishStop}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					merger.Add(&ToolCallFragment{
						Index: toolIndex,
						ID:    aws.ToString(toolUse.Value.ToolUseId),
						Name:  aws.ToString(toolUse.Value.Name),
					})
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						deltas <- Delta{Type: DeltaText, Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						merger.Add(&ToolCallFragment{Index: toolIndex, ArgsDelta: *delta.Value.Input})
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				toolIndex++

			case *types.ConverseStreamOutputMemberMessageStop:
				calls := merger.Finish()
				finish := FinishStop
				if len(calls) > 0 {
					finish = FinishToolCalls
				}
				deltas <- Delta{Type: DeltaFinishReason, Finish: finish, ToolCalls: calls}
				return
			}
		}
	}
}

func convertMessagesBedrock(messages []Message) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []types.ContentBlock
		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		if msg.Role == "tool" {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.Content}},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var input any
			if err := json.Unmarshal(tc.Input, &input); err != nil {
				input = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				},
			})
		}

		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result
}

func convertToolsBedrock(tools []Tool) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		var schema any
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("llm: invalid tool schema for %s: %w", t.Name, err)
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpec{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}
