package assistant

import (
	"context"
	"errors"
	"strings"

	"pdpl_assistant/generator"
)

// ScopeClassifier decides whether a question concerns the law at all.
type ScopeClassifier struct {
	llm  generator.Client
	tmpl generator.Template
}

func NewScopeClassifier(llm generator.Client, prompts *generator.PromptBook) (*ScopeClassifier, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	tmpl, err := prompts.Template(PromptScope)
	if err != nil {
		return nil, err
	}
	return &ScopeClassifier{llm: llm, tmpl: tmpl}, nil
}

// Classify reports whether question is in scope. Errors wrap ErrScopeClassification.
func (c *ScopeClassifier) Classify(ctx context.Context, question string) (bool, error) {
	if strings.TrimSpace(question) == "" {
		return false, stageError(ErrScopeClassification, ErrInvalidInput)
	}
	raw, err := c.llm.Generate(ctx, c.tmpl.Request(map[string]string{"user_input": question}, scopeSchema))
	if err != nil {
		return false, stageError(ErrScopeClassification, err)
	}
	out, err := generator.Decode[struct {
		Value bool `json:"value"`
	}](raw)
	if err != nil {
		return false, stageError(ErrScopeClassification, err)
	}
	return out.Value, nil
}
