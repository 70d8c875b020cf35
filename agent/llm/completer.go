package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	openrouterx "github.com/tanpawarit/pulse-agent/pkg/openrouter"
)

var _ contractx.Completer = (*Completer)(nil)

// Completer sends completion requests to an OpenAI-compatible endpoint,
// picking the model per agent kind.
type Completer struct {
	client *openai.Client
	cfg    Config
	logger *zerolog.Logger
}

type CompleterOption func(*Completer)

func WithLogger(logger *zerolog.Logger) CompleterOption {
	return func(c *Completer) { c.logger = logger }
}

func NewCompleter(client *openai.Client, cfg Config, opts ...CompleterOption) (*Completer, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Completer{client: client, cfg: cfg, logger: &log.Logger}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Completer) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	rc := c.cfg.OpenRouterFor(req.AgentKind)
	params, err := buildParams(rc, req)
	if err != nil {
		return contractx.CompletionResponse{}, err
	}

	started := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params, openrouterx.RequestOptions(rc)...)
	if err != nil {
		return contractx.CompletionResponse{}, fmt.Errorf("chat completion (%s): %w", rc.Model, err)
	}

	c.logger.Debug().
		Str("agent", string(req.AgentKind)).
		Str("model", rc.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Int64("total_tokens", resp.Usage.TotalTokens).
		Dur("elapsed", time.Since(started)).
		Msg("llm: completion")

	return convertResponse(resp), nil
}

func buildParams(rc openrouterx.Config, req contractx.CompletionRequest) (openai.ChatCompletionNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	n := req.N
	if n <= 0 {
		n = 1
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(rc.Model),
		Messages:    messages,
		N:           openai.Int(int64(n)),
		Temperature: openai.Float(float64(rc.Temperature)),
	}
	if rc.MaxCompletionToken != nil && *rc.MaxCompletionToken > 0 {
		params.MaxCompletionTokens = openai.Int(int64(*rc.MaxCompletionToken))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	if f := req.ResponseFormat; f != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   f.Name,
					Schema: f.Schema,
					Strict: openai.Bool(f.Strict),
				},
			},
		}
	}
	return params, nil
}

func convertMessages(entries []contractx.Entry) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(entries))
	for i, e := range entries {
		switch e.Role {
		case contractx.RoleSystem:
			out = append(out, openai.SystemMessage(e.Content))
		case contractx.RoleUser:
			out = append(out, openai.UserMessage(e.Content))
		case contractx.RoleTool:
			out = append(out, openai.ToolMessage(e.Content, e.ToolCallID))
		case contractx.RoleAssistant:
			if len(e.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(e.Content))
				continue
			}
			msg := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, 0, len(e.ToolCalls)),
			}
			if e.Content != "" {
				msg.Content.OfString = openai.String(e.Content)
			}
			for _, call := range e.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.FunctionName,
						Arguments: call.ArgumentsJSON,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: msg})
		default:
			return nil, fmt.Errorf("%w: entry %d has unknown role %q", contractx.ErrValidation, i, e.Role)
		}
	}
	return out, nil
}

func convertTools(tools []contractx.ToolDescriptor) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: shared.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}

func convertResponse(resp *openai.ChatCompletion) contractx.CompletionResponse {
	out := contractx.CompletionResponse{Choices: make([]contractx.CompletionChoice, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		msg := contractx.CompletionMessage{Content: choice.Message.Content}
		for _, call := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, contractx.ToolCall{
				ID:            call.ID,
				FunctionName:  call.Function.Name,
				ArgumentsJSON: call.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, contractx.CompletionChoice{Message: msg})
	}
	return out
}
