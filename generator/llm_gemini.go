package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiLLM implements Client with the google.golang.org/genai SDK. Gemini gets the schema
// in the system instruction and a JSON MIME type; conformance is enforced locally.
type GeminiLLM struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiLLMFromConfig(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	temp := float32(0.2)
	if cfg.Temperature != nil {
		temp = float32(*cfg.Temperature)
	}
	return &GeminiLLM{client: client, model: cfg.Model, temperature: temp}, nil
}

func (g *GeminiLLM) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	name := req.schemaName()
	if req.Schema == nil {
		return nil, wrapError(name, errors.New("schema is required"))
	}

	system := req.System + "\n\nRespond only with a JSON object that validates against this JSON schema:\n" + string(req.Schema.JSON())

	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		[]*genai.Content{
			{Parts: []*genai.Part{{Text: req.User}}, Role: "user"},
		},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: system}},
			},
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr(g.temperature),
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(name, err)
		}
		return nil, wrapError(name, classifyGeminiError(err))
	}

	raw, err := req.Schema.Validate([]byte(resp.Text()))
	if err != nil {
		return nil, wrapError(name, err)
	}
	return raw, nil
}

// classifyGeminiError maps API status codes onto the retry classes. Other 4xx
// responses (bad key, unknown model) stay unclassified and are not retried.
func classifyGeminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	default:
		// transport failure before any response
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case code == http.StatusRequestTimeout, code >= 500:
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return err
}
