package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockLLM is a scripted Client for tests and local debugging; it never calls a model.
// Outputs are queued per schema name (the last one repeats) and still pass through
// schema validation.
type MockLLM struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	requests  []Request
}

func NewMockLLM() *MockLLM {
	return &MockLLM{
		responses: make(map[string][]string),
		errs:      make(map[string]error),
	}
}

// Respond queues outputs for the named schema.
func (m *MockLLM) Respond(schema string, outputs ...string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[schema] = append(m.responses[schema], outputs...)
	return m
}

// Fail makes every call for the named schema return err.
func (m *MockLLM) Fail(schema string, err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[schema] = err
	return m
}

// Requests returns the calls made for schema; an empty name returns all calls.
func (m *MockLLM) Requests(schema string) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.requests {
		if schema == "" || r.schemaName() == schema {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockLLM) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	name := req.schemaName()
	m.mu.Lock()
	m.requests = append(m.requests, req)
	err := m.errs[name]
	queue := m.responses[name]
	var out string
	if err == nil && len(queue) > 0 {
		out = queue[0]
		if len(queue) > 1 {
			m.responses[name] = queue[1:]
		}
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, wrapError(name, err)
	}
	if err != nil {
		return nil, wrapError(name, err)
	}
	if len(queue) == 0 {
		return nil, wrapError(name, fmt.Errorf("mock: no response scripted for %q", name))
	}
	if req.Schema == nil {
		return json.RawMessage(out), nil
	}
	raw, verr := req.Schema.Validate([]byte(out))
	if verr != nil {
		return nil, wrapError(name, verr)
	}
	return raw, nil
}
