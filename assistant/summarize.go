package assistant

import (
	"context"
	"errors"
	"strings"

	"pdpl_assistant/generator"
)

// Summarizer condenses history plus a new question into one self-contained query.
type Summarizer struct {
	llm  generator.Client
	tmpl generator.Template
}

func NewSummarizer(llm generator.Client, prompts *generator.PromptBook) (*Summarizer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	tmpl, err := prompts.Template(PromptSummary)
	if err != nil {
		return nil, err
	}
	return &Summarizer{llm: llm, tmpl: tmpl}, nil
}

// Summarize returns question unchanged, without a model call, when history is empty.
// history is oldest first. Errors wrap ErrSummarization.
func (s *Summarizer) Summarize(ctx context.Context, question string, history []string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	raw, err := s.llm.Generate(ctx, s.tmpl.Request(map[string]string{
		"question": question,
		"history":  strings.Join(history, "\n"),
	}, summarySchema))
	if err != nil {
		return "", stageError(ErrSummarization, err)
	}
	out, err := generator.Decode[struct {
		Summary string `json:"summary"`
	}](raw)
	if err != nil {
		return "", stageError(ErrSummarization, err)
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", stageError(ErrSummarization, errors.New("empty summary"))
	}
	return summary, nil
}
