package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"pdpl_assistant/generator"
	"pdpl_assistant/index"
	"pdpl_assistant/logging"
)

const noneText = "(none)"

// AnswerGenerator produces a cited answer from a question, history and context.
type AnswerGenerator struct {
	llm    generator.Client
	tmpl   generator.Template
	logger *slog.Logger
}

func NewAnswerGenerator(llm generator.Client, prompts *generator.PromptBook) (*AnswerGenerator, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	tmpl, err := prompts.Template(PromptAnswer)
	if err != nil {
		return nil, err
	}
	return &AnswerGenerator{llm: llm, tmpl: tmpl, logger: logging.New("answer")}, nil
}

type answerPayload struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Answer generates the answer. Citations naming a passage that is not in items are
// dropped and counted. Errors wrap ErrAnswerGeneration; an empty answer is an error.
func (g *AnswerGenerator) Answer(ctx context.Context, question string, history []string, items []ContextItem) (AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return AnswerResult{}, stageError(ErrAnswerGeneration, ErrInvalidInput)
	}
	serialized, err := serializeContext(items)
	if err != nil {
		return AnswerResult{}, stageError(ErrAnswerGeneration, err)
	}
	hist := strings.Join(history, "\n")
	if hist == "" {
		hist = noneText
	}
	raw, err := g.llm.Generate(ctx, g.tmpl.Request(map[string]string{
		"user_question":        question,
		"conversation_history": hist,
		"relevant_context":     serialized,
	}, answerSchema))
	if err != nil {
		return AnswerResult{}, stageError(ErrAnswerGeneration, err)
	}
	payload, err := generator.Decode[answerPayload](raw)
	if err != nil {
		return AnswerResult{}, stageError(ErrAnswerGeneration, err)
	}
	answer := strings.TrimSpace(payload.Answer)
	if answer == "" {
		return AnswerResult{}, stageError(ErrAnswerGeneration, errors.New("model returned an empty answer"))
	}

	result := groundCitations(answer, payload.Citations, items)
	if result.DroppedCitations > 0 {
		g.logger.WarnContext(ctx, "dropped citations outside the supplied context",
			"dropped", result.DroppedCitations, "kept", len(result.Citations))
	}
	return result, nil
}

// contextLine is the JSON shape of one passage in the answer prompt.
type contextLine struct {
	Content   string `json:"content"`
	Article   int    `json:"article number"`
	Paragraph int    `json:"paragraph number"`
}

// serializeContext renders items one JSON object per line, in order.
func serializeContext(items []ContextItem) (string, error) {
	if len(items) == 0 {
		return noneText, nil
	}
	var b strings.Builder
	for i, it := range items {
		line, err := json.Marshal(contextLine{Content: it.Content, Article: it.Article, Paragraph: it.Paragraph})
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.Write(line)
	}
	return b.String(), nil
}

// groundCitations keeps only citations whose article and paragraph appear in items,
// preserving model order. The returned Citations is never nil.
func groundCitations(answer string, citations []Citation, items []ContextItem) AnswerResult {
	allowed := make(map[index.Key]bool, len(items))
	for _, it := range items {
		allowed[it.Key()] = true
	}
	res := AnswerResult{Answer: answer, Citations: []Citation{}}
	for _, c := range citations {
		if !allowed[c.Key()] {
			res.DroppedCitations++
			continue
		}
		res.Citations = append(res.Citations, c)
	}
	return res
}
