package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"github.com/leadline-ai/leadline-voice-service/pkg/retry"
	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// A hung completion holds a live phone call open, so the per-request
	// timeout is tight.
	requestTimeout = 15 * time.Second

	maxAttempts = 2
	backoff     = 750 * time.Millisecond
)

// OpenAIConfig configures the completion client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// RequestsPerSecond caps outbound completion traffic across all calls.
	// Zero disables limiting.
	RequestsPerSecond float64
}

// OpenAIClient implements Client against an OpenAI-compatible chat
// completion endpoint.
type OpenAIClient struct {
	client  openaigo.Client
	model   string
	limiter *rate.Limiter
	policy  retry.Policy
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("completion api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("completion model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(requestTimeout),
		option.WithMaxRetries(0), // retries are ours
	}
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &OpenAIClient{
		client:  openaigo.NewClient(opts...),
		model:   model,
		limiter: limiter,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     backoff,
			Retryable:   isRetryable,
		},
	}, nil
}

// Complete sends one chat completion request, retrying transient failures.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(c.model),
		Messages: c.buildMessages(req),
	}
	if tools := buildTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	var resp *openaigo.ChatCompletion
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		resp, err = c.client.Chat.Completions.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	msg := resp.Choices[0].Message
	completion := &Completion{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		if strings.TrimSpace(tc.Type) != "function" {
			logger.Base().Warn("ignoring non-function tool call", zap.String("type", tc.Type))
			continue
		}
		call := tc.AsFunction()
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return completion, nil
}

func (c *OpenAIClient) buildMessages(req Request) []openaigo.ChatCompletionMessageParamUnion {
	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openaigo.SystemMessage(req.System))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			messages = append(messages, openaigo.UserMessage(m.Content))
		case RoleTool:
			messages = append(messages, openaigo.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openaigo.AssistantMessage(m.Content))
				continue
			}
			assistant := openaigo.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = param.NewOpt(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaigo.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openaigo.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openaigo.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			messages = append(messages, openaigo.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleSystem:
			messages = append(messages, openaigo.SystemMessage(m.Content))
		}
	}
	return messages
}

func buildTools(specs []ToolSpec) []openaigo.ChatCompletionToolUnionParam {
	tools := make([]openaigo.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openaigo.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: param.NewOpt(spec.Description),
			Parameters:  shared.FunctionParameters(spec.Parameters),
		}))
	}
	return tools
}

// isRetryable marks timeouts, rate limits and server errors as worth a
// second attempt; everything else (auth, bad request) fails fast.
func isRetryable(err error) bool {
	var apierr *openaigo.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Treat transport-level failures (timeouts, resets) as transient.
	return true
}
