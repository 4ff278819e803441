package generator

import (
	"context"
	"encoding/json"
)

// Client produces a JSON value that validates against req.Schema, or fails with an *Error.
type Client interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// Request is one structured generation call.
type Request struct {
	System string
	User   string
	Schema *Schema
}

func (r Request) schemaName() string {
	if r.Schema == nil {
		return ""
	}
	return r.Schema.Name
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (json.RawMessage, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// LLMSettings is the base configuration handed to concrete backends.
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature *float64
}
