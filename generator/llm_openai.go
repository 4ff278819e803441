package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements Client using the official openai-go SDK (chat completions with
// a strict json_schema response format). Works against any OpenAI-compatible gateway.
type OpenAILLM struct {
	Model       string
	Temperature *float64
	client      openai.Client
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	// Retries belong to WithRetry, not the SDK.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		client:      openai.NewClient(opts...),
	}, nil
}

func (o *OpenAILLM) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	name := req.schemaName()
	if req.Schema == nil {
		return nil, wrapError(name, errors.New("schema is required"))
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.Document(),
					Strict:      openai.Bool(true),
				},
			},
		},
	}
	if o.Temperature != nil {
		params.Temperature = openai.Float(*o.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(name, classifyOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, wrapError(name, fmt.Errorf("%w: openai: empty choices", ErrResponseInvalid))
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, wrapError(name, fmt.Errorf("%w: model refused: %s", ErrResponseInvalid, truncate(msg.Refusal, 200)))
	}
	raw, err := req.Schema.Validate([]byte(msg.Content))
	if err != nil {
		return nil, wrapError(name, err)
	}
	return raw, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	}
	return err
}
