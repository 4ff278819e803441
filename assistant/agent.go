package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdpl_assistant/generator"
	"pdpl_assistant/logging"
)

// Stage is a state of the per-query pipeline:
// received → scope_checked → (rejected | summarized → context_retrieved → answered).
type Stage string

const (
	StageReceived         Stage = "received"
	StageScopeChecked     Stage = "scope_checked"
	StageRejected         Stage = "rejected"
	StageSummarized       Stage = "summarized"
	StageContextRetrieved Stage = "context_retrieved"
	StageAnswered         Stage = "answered"
)

// Query is one question with its session language and history (oldest first).
type Query struct {
	Question string
	Language Language
	History  []ConversationTurn
}

// Outcome reports how far a query got and what each stage produced.
type Outcome struct {
	Stage    Stage    `json:"stage"`
	Language Language `json:"language"`
	InScope  bool     `json:"in_scope"`

	// Question is the question in English, as seen by every stage.
	Question  string             `json:"question"`
	Summary   string             `json:"summary,omitempty"`
	Mentions  []ReferenceMention `json:"mentions,omitempty"`
	Context   []ContextItem      `json:"context,omitempty"`
	Answer    AnswerResult       `json:"answer"`
	Fallbacks []string           `json:"fallbacks,omitempty"`

	// EnglishAnswer is the answer text before outbound translation.
	EnglishAnswer string `json:"-"`
}

var rejectionMessages = map[Language]string{
	English: "Your question does not appear to relate to the Personal Data Protection Law. Please ask about the law's provisions on personal data.",
	Arabic:  "يبدو أن سؤالك لا يتعلق بنظام حماية البيانات الشخصية. يرجى طرح سؤال حول أحكام النظام المتعلقة بالبيانات الشخصية.",
}

// RejectionMessage is the fixed reply to an out-of-scope question.
func RejectionMessage(lang Language) string {
	if msg, ok := rejectionMessages[lang]; ok {
		return msg
	}
	return rejectionMessages[English]
}

// Config wires the pipeline. LLM and Index are shared process-wide.
type Config struct {
	LLM     generator.Client
	Index   Searcher
	Prompts *generator.PromptBook
	Metrics *Metrics

	TopK               int
	MaxArticlePassages int
}

// Agent runs the question-answering pipeline. Safe for concurrent use.
type Agent struct {
	Scope      *ScopeClassifier
	References *ReferenceExtractor
	Summarizer *Summarizer
	Retriever  *Retriever
	Answers    *AnswerGenerator
	Translator *Translator

	metrics *Metrics
	logger  *slog.Logger
}

func NewAgent(cfg Config) (*Agent, error) {
	if cfg.LLM == nil {
		return nil, errors.New("llm client is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("index is required")
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if err := prompts.Require(requiredPrompts...); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}

	a := &Agent{metrics: cfg.Metrics, logger: logging.New("agent")}
	var err error
	if a.Scope, err = NewScopeClassifier(cfg.LLM, prompts); err != nil {
		return nil, err
	}
	if a.References, err = NewReferenceExtractor(cfg.LLM, prompts); err != nil {
		return nil, err
	}
	if a.Summarizer, err = NewSummarizer(cfg.LLM, prompts); err != nil {
		return nil, err
	}
	if a.Retriever, err = NewRetriever(cfg.Index, a.References, RetrieverOptions{
		TopK:               cfg.TopK,
		MaxArticlePassages: cfg.MaxArticlePassages,
	}); err != nil {
		return nil, err
	}
	if a.Answers, err = NewAnswerGenerator(cfg.LLM, prompts); err != nil {
		return nil, err
	}
	if a.Translator, err = NewTranslator(cfg.LLM, prompts); err != nil {
		return nil, err
	}
	return a, nil
}

// Ask runs one query to completion. Scope, summary and outbound translation failures
// fall back to a default and are listed in Outcome.Fallbacks; inbound translation,
// retrieval and answer failures abort the query. On error the returned Outcome holds
// the last stage reached.
func (a *Agent) Ask(ctx context.Context, q Query) (Outcome, error) {
	start := time.Now()
	out := Outcome{Stage: StageReceived, Language: q.Language}
	if out.Language == "" {
		out.Language = English
	}
	out, err := a.ask(ctx, q, out)
	switch {
	case err != nil:
		a.metrics.query("error")
		a.logger.ErrorContext(ctx, "query failed", "stage", out.Stage, "error", err,
			"latency_ms", time.Since(start).Milliseconds())
	case out.Stage == StageRejected:
		a.metrics.query("rejected")
		a.logger.InfoContext(ctx, "query rejected as out of scope",
			"latency_ms", time.Since(start).Milliseconds())
	default:
		a.metrics.query("answered")
		a.logger.InfoContext(ctx, "query answered",
			"context_items", len(out.Context),
			"citations", len(out.Answer.Citations),
			"fallbacks", strings.Join(out.Fallbacks, ","),
			"latency_ms", time.Since(start).Milliseconds())
	}
	return out, err
}

func (a *Agent) ask(ctx context.Context, q Query, out Outcome) (Outcome, error) {
	question := strings.TrimSpace(q.Question)
	if question == "" {
		return out, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if !out.Language.Supported() {
		return out, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, out.Language)
	}
	for _, t := range q.History {
		if err := t.Validate(); err != nil {
			return out, err
		}
	}
	history := HistoryLines(q.History)

	if out.Language != English {
		t := time.Now()
		en, err := a.Translator.ToEnglish(ctx, out.Language, question)
		a.metrics.observe("translate_in", t)
		if err != nil {
			return out, err
		}
		question = en
	}
	out.Question = question

	t := time.Now()
	inScope, err := a.Scope.Classify(ctx, question)
	a.metrics.observe("scope", t)
	if err != nil {
		a.fallback(ctx, &out, "scope", err)
		inScope = true
	}
	out.Stage = StageScopeChecked
	out.InScope = inScope
	if !inScope {
		out.Stage = StageRejected
		out.Answer = AnswerResult{Answer: RejectionMessage(out.Language), Citations: []Citation{}}
		out.EnglishAnswer = RejectionMessage(English)
		return out, nil
	}

	t = time.Now()
	summary, err := a.Summarizer.Summarize(ctx, question, history)
	a.metrics.observe("summary", t)
	if err != nil {
		a.fallback(ctx, &out, "summary", err)
		summary = question
	}
	out.Summary = summary
	out.Stage = StageSummarized

	t = time.Now()
	retrieval, err := a.Retriever.Retrieve(ctx, summary)
	a.metrics.observe("retrieval", t)
	if err != nil {
		return out, err
	}
	if retrieval.Degraded {
		a.metrics.fallback("references")
		out.Fallbacks = append(out.Fallbacks, "references")
	}
	out.Mentions = retrieval.Mentions
	out.Context = retrieval.Items
	out.Stage = StageContextRetrieved

	// The generator sees the question itself, not the summary.
	t = time.Now()
	answer, err := a.Answers.Answer(ctx, question, history, retrieval.Items)
	a.metrics.observe("answer", t)
	if err != nil {
		return out, err
	}

	out.EnglishAnswer = answer.Answer
	if out.Language != English {
		t = time.Now()
		translated, err := a.Translator.FromEnglish(ctx, out.Language, answer.Answer)
		a.metrics.observe("translate_out", t)
		if err != nil {
			a.fallback(ctx, &out, "translate_out", err)
		} else {
			answer.Answer = translated
		}
	}
	out.Answer = answer
	out.Stage = StageAnswered
	return out, nil
}

func (a *Agent) fallback(ctx context.Context, out *Outcome, stage string, err error) {
	a.metrics.fallback(stage)
	out.Fallbacks = append(out.Fallbacks, stage)
	a.logger.WarnContext(ctx, "stage failed, continuing with default", "stage", stage, "error", err)
}
