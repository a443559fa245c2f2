// Package bedrock provides a model wrapper for the AWS Bedrock Converse API.
// It splits system from conversational messages, encodes tool schemas into
// Bedrock's ToolConfiguration and translates Converse responses (text +
// tool_use blocks) back into the normalized Response type.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
)

const defaultRegion = "us-east-1"

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client required
// by the adapter. It matches *bedrockruntime.Client so callers can pass either
// the real client or a mock in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock model adapter.
type Options struct {
	// Region selects the AWS region. Defaults to AWS_REGION or us-east-1.
	Region string
}

// Model wraps the Bedrock Converse API behind the generic model.Model interface.
type Model struct {
	runtime RuntimeClient
}

// NewModel creates a Bedrock model reading credentials from the environment
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, optional AWS_SESSION_TOKEN).
// Missing credentials are not an error here; they surface as an
// unauthenticated provider error on the first invocation.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{Region: os.Getenv("AWS_REGION")}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Region == "" {
		opts.Region = defaultRegion
	}

	client := bedrockruntime.New(bedrockruntime.Options{
		Region: opts.Region,
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
			secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
			if accessKey == "" || secretKey == "" {
				return aws.Credentials{}, errors.New("aws credentials not configured")
			}
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		}),
	})

	return NewModelFromClient(client)
}

// NewModelFromClient creates a Bedrock model from an existing runtime client.
func NewModelFromClient(runtime RuntimeClient) *Model {
	return &Model{runtime: runtime}
}

// Invoke performs one Converse call and normalizes the result.
func (m *Model) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.ModelName),
		Messages: buildMessages(req.Messages),
	}
	if system := buildSystemBlocks(req.Messages); len(system) > 0 {
		input.System = system
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = buildToolConfig(req.Tools)
	}
	input.InferenceConfig = inferenceConfig(req)

	output, err := m.runtime.Converse(ctx, input)
	if err != nil {
		return nil, translateError(err)
	}

	return translateResponse(output)
}

func inferenceConfig(req model.Request) *brtypes.InferenceConfiguration {
	cfg := brtypes.InferenceConfiguration{
		Temperature: aws.Float32(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.TopP != nil {
		cfg.TopP = aws.Float32(float32(*req.TopP))
	}
	return &cfg
}

// buildSystemBlocks lifts system messages into Converse system content blocks.
func buildSystemBlocks(msgs []core.Message) []brtypes.SystemContentBlock {
	var system []brtypes.SystemContentBlock
	for _, msg := range msgs {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: msg.Content})
		}
	}
	return system
}

// buildMessages converts normalized messages into Converse messages. Bedrock
// expects tool_result blocks in user messages, correlated to a prior tool_use.
func buildMessages(msgs []core.Message) []brtypes.Message {
	var conversation []brtypes.Message

	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			var blocks []brtypes.ContentBlock
			if msg.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]any
				if len(tc.Arguments) > 0 {
					_ = json.Unmarshal(tc.Arguments, &input)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
			if len(blocks) > 0 {
				conversation = append(conversation, brtypes.Message{
					Role:    brtypes.ConversationRoleAssistant,
					Content: blocks,
				})
			}
		case core.RoleTool:
			conversation = append(conversation, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolResult{
						Value: brtypes.ToolResultBlock{
							ToolUseId: aws.String(msg.ToolCallID),
							Content: []brtypes.ToolResultContentBlock{
								&brtypes.ToolResultContentBlockMemberText{Value: msg.Content},
							},
						},
					},
				},
			})
		default:
			if msg.Content != "" {
				conversation = append(conversation, brtypes.Message{
					Role: brtypes.ConversationRoleUser,
					Content: []brtypes.ContentBlock{
						&brtypes.ContentBlockMemberText{Value: msg.Content},
					},
				})
			}
		}
	}

	return conversation
}

// buildToolConfig encodes tool definitions into Bedrock's ToolConfiguration.
func buildToolConfig(tools []model.ToolDefinition) *brtypes.ToolConfiguration {
	toolList := make([]brtypes.Tool, 0, len(tools))
	for _, tdef := range tools {
		spec := brtypes.ToolSpecification{
			Name:        aws.String(tdef.Name),
			Description: aws.String(tdef.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{
				Value: document.NewLazyDocument(tdef.Parameters),
			},
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	return &brtypes.ToolConfiguration{Tools: toolList}
}

// translateResponse folds the Converse output into the normalized Response.
func translateResponse(output *bedrockruntime.ConverseOutput) (*model.Response, error) {
	if output == nil {
		return nil, model.NewProviderError("bedrock", model.ErrMalformed, "response is nil", nil)
	}

	resp := &model.Response{FinishReason: string(output.StopReason)}

	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				resp.Content += v.Value
			case *brtypes.ContentBlockMemberToolUse:
				args := json.RawMessage(`{}`)
				if v.Value.Input != nil {
					var payload any
					if err := v.Value.Input.UnmarshalSmithyDocument(&payload); err == nil {
						if raw, err := json.Marshal(payload); err == nil {
							args = raw
						}
					}
				}
				resp.ToolCalls = append(resp.ToolCalls, core.ToolCall{
					ID:        aws.ToString(v.Value.ToolUseId),
					Name:      aws.ToString(v.Value.Name),
					Arguments: args,
				})
			}
		}
	}

	if usage := output.Usage; usage != nil {
		resp.Usage = core.TokenUsage{
			InputTokens:  int(aws.ToInt32(usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(usage.OutputTokens)),
		}
	}

	return resp, nil
}

// translateError maps smithy errors to the provider error taxonomy. Throttling
// codes are recognized even without an HTTP status attached.
func translateError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			pe := model.NewProviderError("bedrock", model.ErrRateLimited, apiErr.ErrorMessage(), err)
			pe.Status = http.StatusTooManyRequests
			return pe
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			pe := model.NewProviderError("bedrock", model.ErrUnauthenticated, apiErr.ErrorMessage(), err)
			pe.Status = http.StatusForbidden
			return pe
		case "ValidationException":
			return model.NewProviderError("bedrock", model.ErrMalformed, apiErr.ErrorMessage(), err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		pe := model.NewProviderError(
			"bedrock",
			model.KindFromStatus(status),
			fmt.Sprintf("bedrock api error (status %d)", status),
			err,
		)
		pe.Status = status
		return pe
	}

	return model.NewProviderError("bedrock", model.ErrUnavailable, err.Error(), err)
}

// Info returns metadata describing this Bedrock model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          "bedrock",
		Provider:      "bedrock",
		SupportsTools: true,
	}
}
