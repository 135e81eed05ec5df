package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int64         `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

// Client adapts the OpenAI SDK pointed at OpenRouter to the model contract
// the roles depend on.
type Client struct {
	sdk   openaisdk.Client
	model string
	cfg   Config
}

var _ contractx.ModelClient = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openrouter: model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	// OpenRouter attribution headers.
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	return &Client{
		sdk:   openaisdk.NewClient(opts...),
		model: strings.TrimSpace(cfg.Model),
		cfg:   cfg,
	}, nil
}

func MustNew(cfg Config) *Client {
	c, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Client) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return contractx.CompletionResponse{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:               openaisdk.ChatModel(c.model),
		Messages:            messages,
		Temperature:         openaisdk.Float(c.cfg.Temperature),
		MaxCompletionTokens: openaisdk.Int(c.cfg.MaxCompletionToken),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	completion, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.CompletionResponse{}, fmt.Errorf("%w: %v", contractx.ErrModelUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return contractx.CompletionResponse{}, fmt.Errorf("%w: completion returned no choices", contractx.ErrModelUnavailable)
	}

	choice := completion.Choices[0].Message
	resp := contractx.CompletionResponse{Message: choice.Content}
	for _, call := range choice.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return contractx.CompletionResponse{}, fmt.Errorf("%w: malformed tool arguments for %q: %v", contractx.ErrModelUnavailable, call.Function.Name, err)
			}
		}
		resp.Invocations = append(resp.Invocations, statex.ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		})
	}
	return resp, nil
}

func buildMessages(req contractx.CompletionRequest) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	if strings.TrimSpace(req.Instructions) != "" {
		messages = append(messages, openaisdk.SystemMessage(req.Instructions))
	}

	for _, msg := range req.History {
		switch msg.Kind {
		case statex.MessageCustomer:
			messages = append(messages, openaisdk.UserMessage(msg.Content))

		case statex.MessageAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openaisdk.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				rawArgs, err := json.Marshal(call.Args)
				if err != nil {
					return nil, fmt.Errorf("openrouter: encode tool arguments for %q: %w", call.Name, err)
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: string(rawArgs),
						},
					},
				})
			}
			messages = append(messages, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case statex.MessageTool:
			messages = append(messages, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return messages, nil
}

func buildTools(defs []contractx.ToolDefinition) []openaisdk.ChatCompletionToolUnionParam {
	tools := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openaisdk.String(def.Description),
			Parameters:  buildSchema(def),
		}))
	}
	return tools
}

func buildSchema(def contractx.ToolDefinition) shared.FunctionParameters {
	properties := map[string]any{}
	var required []string
	for name, info := range def.Params {
		properties[name] = map[string]any{
			"type":        string(info.Type),
			"description": info.Description,
		}
		if info.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := shared.FunctionParameters{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
