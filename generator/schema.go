package generator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a named JSON schema with strict semantics. The raw document is sent to the
// model endpoint as-is; the resolved form validates whatever comes back.
type Schema struct {
	Name        string
	Description string

	doc      map[string]any
	raw      json.RawMessage
	resolved *jsonschema.Resolved
}

// NewSchema parses and resolves a JSON schema document.
func NewSchema(name, description string, raw []byte) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema %s: %w", name, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	return &Schema{
		Name:        name,
		Description: description,
		doc:         doc,
		raw:         append(json.RawMessage(nil), raw...),
		resolved:    resolved,
	}, nil
}

// MustSchema is NewSchema for package-level schema definitions.
func MustSchema(name, description string, raw []byte) *Schema {
	s, err := NewSchema(name, description, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Document returns the schema as a generic JSON object for request payloads.
func (s *Schema) Document() map[string]any { return s.doc }

// JSON returns the schema document bytes.
func (s *Schema) JSON() json.RawMessage { return append(json.RawMessage(nil), s.raw...) }

// Validate cleans model output, checks it is JSON and that it conforms to the schema.
// Failures wrap ErrResponseInvalid.
func (s *Schema) Validate(output []byte) (json.RawMessage, error) {
	cleaned := cleanJSON(output)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrResponseInvalid)
	}
	if !json.Valid(cleaned) {
		return nil, fmt.Errorf("%w: not JSON (raw: %s)", ErrResponseInvalid, truncate(string(cleaned), 200))
	}
	var instance any
	if err := json.Unmarshal(cleaned, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: schema %s: %v", ErrResponseInvalid, s.Name, err)
	}
	return json.RawMessage(cleaned), nil
}

// Decode converts validated output into T, rejecting fields T does not declare.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: decode: %v", ErrResponseInvalid, err)
	}
	return out, nil
}

// cleanJSON strips surrounding whitespace and a Markdown code fence, if any.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
