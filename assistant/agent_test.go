package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pdpl_assistant/generator"
	"pdpl_assistant/index"
)

const groundedAnswer = `{"answer": "Article 23 paragraph 6 limits health data processing.",
  "citations": [{"article": 23, "paragraph": 6, "text": "Health data may be processed only"}]}`

func scriptedPipeline() *generator.MockLLM {
	return generator.NewMockLLM().
		Respond(ScopeSchemaName, `{"value": true}`).
		Respond(SummarySchemaName, `{"summary": "What does paragraph 6 of Article 23 say about health data?"}`).
		Respond(ExtractionSchemaName, `{"articles": [{"article": 23, "paragraphs": [6]}], "sectors": ["Health & Medical Services"]}`).
		Respond(AnswerSchemaName, groundedAnswer)
}

func article23Index() *fakeIndex {
	return &fakeIndex{
		semantic: []index.Passage{passage(4, 1, "right to be informed")},
		passages: []index.Passage{passage(23, 6, "Health data may be processed only ...")},
	}
}

func TestAsk_FullPipeline(t *testing.T) {
	llm := scriptedPipeline()
	idx := article23Index()
	a := newTestAgent(t, llm, idx)

	out, err := a.Ask(context.Background(), Query{
		Question: "And paragraph 6 of it?",
		History: []ConversationTurn{
			{Role: RoleUser, Text: "Tell me about Article 23"},
			{Role: RoleAssistant, Text: "Article 23 covers health data."},
		},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.Stage != StageAnswered || !out.InScope || len(out.Fallbacks) != 0 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.Summary != "What does paragraph 6 of Article 23 say about health data?" {
		t.Errorf("summary = %q", out.Summary)
	}
	if diff := cmp.Diff([]index.Key{{Article: 4, Paragraph: 1}, {Article: 23, Paragraph: 6}}, keys(out.Context)); diff != "" {
		t.Errorf("context mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]Citation{{Article: 23, Paragraph: 6, Text: "Health data may be processed only"}}, out.Answer.Citations); diff != "" {
		t.Errorf("citations mismatch:\n%s", diff)
	}

	// Retrieval uses the summary; the answer prompt uses the literal question.
	if diff := cmp.Diff([]string{out.Summary}, idx.searches); diff != "" {
		t.Errorf("search query mismatch:\n%s", diff)
	}
	ans := llm.Requests(AnswerSchemaName)[0]
	if !strings.Contains(ans.User, "And paragraph 6 of it?") || strings.Contains(ans.User, out.Summary) {
		t.Errorf("answer prompt should carry the question, not the summary: %q", ans.User)
	}
	if !strings.Contains(ans.User, "User: Tell me about Article 23\nAssistant: Article 23 covers health data.") {
		t.Errorf("answer prompt missing history: %q", ans.User)
	}
}

func TestAsk_OutOfScopeStopsPipeline(t *testing.T) {
	llm := generator.NewMockLLM().Respond(ScopeSchemaName, `{"value": false}`)
	idx := article23Index()
	a := newTestAgent(t, llm, idx)

	out, err := a.Ask(context.Background(), Query{
		Question: "Who won the football match?",
		History:  []ConversationTurn{{Role: RoleUser, Text: "hi"}},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.Stage != StageRejected || out.InScope {
		t.Errorf("expected rejection, got %+v", out)
	}
	if out.Answer.Answer != RejectionMessage(English) || out.Answer.Citations == nil {
		t.Errorf("unexpected rejection answer %#v", out.Answer)
	}
	for _, schema := range []string{SummarySchemaName, ExtractionSchemaName, AnswerSchemaName} {
		if n := len(llm.Requests(schema)); n != 0 {
			t.Errorf("%s called %d times after rejection", schema, n)
		}
	}
	if len(idx.searches) != 0 {
		t.Errorf("index searched after rejection: %v", idx.searches)
	}
}

func TestAsk_FailOpenStages(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	llm := scriptedPipeline().
		Fail(ScopeSchemaName, generator.ErrUpstream).
		Fail(SummarySchemaName, generator.ErrRateLimited).
		Fail(ExtractionSchemaName, generator.ErrResponseInvalid)
	idx := article23Index()
	a, err := NewAgent(Config{LLM: llm, Index: idx, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}

	out, err := a.Ask(context.Background(), Query{
		Question: "What does Article 23 say?",
		History:  []ConversationTurn{{Role: RoleUser, Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.Stage != StageAnswered || !out.InScope {
		t.Errorf("expected answered, got %+v", out)
	}
	if out.Summary != "What does Article 23 say?" {
		t.Errorf("summary should fall back to the question, got %q", out.Summary)
	}
	if diff := cmp.Diff([]string{"scope", "summary", "references"}, out.Fallbacks); diff != "" {
		t.Errorf("fallbacks mismatch:\n%s", diff)
	}
	for _, stage := range []string{"scope", "summary", "references"} {
		if v := testutil.ToFloat64(m.fallbacks.WithLabelValues(stage)); v != 1 {
			t.Errorf("fallback counter %s = %v, want 1", stage, v)
		}
	}
	if v := testutil.ToFloat64(m.queries.WithLabelValues("answered")); v != 1 {
		t.Errorf("answered counter = %v", v)
	}
}

func TestAsk_FatalStages(t *testing.T) {
	t.Run("retrieval", func(t *testing.T) {
		idx := article23Index()
		idx.searchErr = errBoom
		a := newTestAgent(t, scriptedPipeline(), idx)
		out, err := a.Ask(context.Background(), Query{Question: "Article 23?"})
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected ErrRetrieval, got %v", err)
		}
		if out.Stage != StageSummarized {
			t.Errorf("stage = %s, want %s", out.Stage, StageSummarized)
		}
	})
	t.Run("answer", func(t *testing.T) {
		llm := scriptedPipeline().Fail(AnswerSchemaName, generator.ErrUpstream)
		a := newTestAgent(t, llm, article23Index())
		out, err := a.Ask(context.Background(), Query{Question: "Article 23?"})
		if !errors.Is(err, ErrAnswerGeneration) {
			t.Fatalf("expected ErrAnswerGeneration, got %v", err)
		}
		if out.Stage != StageContextRetrieved || out.Answer.Answer != "" {
			t.Errorf("no answer may be fabricated: %+v", out)
		}
	})
	t.Run("input", func(t *testing.T) {
		a := newTestAgent(t, scriptedPipeline(), article23Index())
		if _, err := a.Ask(context.Background(), Query{Question: "  "}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("empty question: %v", err)
		}
		if _, err := a.Ask(context.Background(), Query{Question: "q", Language: "fr"}); !errors.Is(err, ErrUnsupportedLanguage) {
			t.Errorf("unsupported language: %v", err)
		}
		bad := []ConversationTurn{{Role: "system", Text: "x"}}
		if _, err := a.Ask(context.Background(), Query{Question: "q", History: bad}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("bad role: %v", err)
		}
	})
}

func TestAsk_ArabicTranslatesAtTheEdges(t *testing.T) {
	llm := scriptedPipeline().Respond(TranslationSchemaName,
		`{"translation": "What does paragraph 6 of Article 23 say?"}`,
		`{"translation": "تقيد المادة 23 الفقرة 6 معالجة البيانات الصحية."}`)
	a := newTestAgent(t, llm, article23Index())

	out, err := a.Ask(context.Background(), Query{Question: "ماذا تقول الفقرة 6 من المادة 23؟", Language: Arabic})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.Question != "What does paragraph 6 of Article 23 say?" {
		t.Errorf("inbound translation not applied: %q", out.Question)
	}
	if scope := llm.Requests(ScopeSchemaName)[0]; !strings.Contains(scope.User, "What does paragraph 6 of Article 23 say?") {
		t.Errorf("scope check should see English: %q", scope.User)
	}
	if out.Answer.Answer != "تقيد المادة 23 الفقرة 6 معالجة البيانات الصحية." {
		t.Errorf("outbound translation not applied: %q", out.Answer.Answer)
	}
	if diff := cmp.Diff([]Citation{{Article: 23, Paragraph: 6, Text: "Health data may be processed only"}}, out.Answer.Citations); diff != "" {
		t.Errorf("citations must stay untranslated:\n%s", diff)
	}
	reqs := llm.Requests(TranslationSchemaName)
	if len(reqs) != 2 || !strings.Contains(reqs[1].User, "Article 23 paragraph 6 limits health data processing.") {
		t.Errorf("outbound translation request: %+v", reqs)
	}
}

func TestAsk_ArabicRejectionAndTranslationFailures(t *testing.T) {
	llm := generator.NewMockLLM().
		Respond(TranslationSchemaName, `{"translation": "Who won the match?"}`).
		Respond(ScopeSchemaName, `{"value": false}`)
	a := newTestAgent(t, llm, article23Index())
	out, err := a.Ask(context.Background(), Query{Question: "من فاز بالمباراة؟", Language: Arabic})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.Answer.Answer != RejectionMessage(Arabic) {
		t.Errorf("rejection should be in Arabic, got %q", out.Answer.Answer)
	}
	if n := len(llm.Requests(TranslationSchemaName)); n != 1 {
		t.Errorf("rejection message must not be model-translated; translation calls = %d", n)
	}

	failing := scriptedPipeline().Fail(TranslationSchemaName, generator.ErrUpstream)
	a = newTestAgent(t, failing, article23Index())
	if _, err := a.Ask(context.Background(), Query{Question: "سؤال", Language: Arabic}); !errors.Is(err, ErrTranslation) {
		t.Errorf("inbound translation failure should abort, got %v", err)
	}
}

func TestAsk_EmptyIndexStillAnswers(t *testing.T) {
	llm := generator.NewMockLLM().
		Respond(ScopeSchemaName, `{"value": true}`).
		Respond(ExtractionSchemaName, noMentions).
		Respond(AnswerSchemaName, `{"answer": "The law passages available do not address this.", "citations": []}`)
	a := newTestAgent(t, llm, &fakeIndex{})

	out, err := a.Ask(context.Background(), Query{Question: "What are the retention limits?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(out.Context) != 0 || out.Answer.Answer == "" || out.Answer.Citations == nil || len(out.Answer.Citations) != 0 {
		t.Errorf("unexpected outcome %#v", out)
	}
	if n := len(llm.Requests(SummarySchemaName)); n != 0 {
		t.Errorf("summary called %d times with empty history", n)
	}
}

func TestSession_HistoryAndLanguage(t *testing.T) {
	llm := scriptedPipeline()
	s := NewSession("s1", English, newTestAgent(t, llm, article23Index()), 0)

	if _, err := s.Ask(context.Background(), "What does Article 23 say?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := s.Ask(context.Background(), "And paragraph 6?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	lang, hist := s.Snapshot()
	if lang != English || len(hist) != 4 {
		t.Fatalf("snapshot = %s, %d turns", lang, len(hist))
	}
	if hist[0] != (ConversationTurn{Role: RoleUser, Text: "What does Article 23 say?"}) || hist[1].Role != RoleAssistant {
		t.Errorf("unexpected history %+v", hist)
	}
	// First question had no history, so only the second is summarized.
	if n := len(llm.Requests(SummarySchemaName)); n != 1 {
		t.Errorf("summary calls = %d, want 1", n)
	}

	if s.SetLanguage(English) {
		t.Error("same language should not reset")
	}
	if !s.SetLanguage(Arabic) {
		t.Error("language change should reset")
	}
	if _, hist := s.Snapshot(); len(hist) != 0 {
		t.Errorf("history not cleared: %+v", hist)
	}
}

func TestSession_FailedQueryLeavesHistory(t *testing.T) {
	llm := scriptedPipeline().Fail(AnswerSchemaName, generator.ErrUpstream)
	s := NewSession("s2", English, newTestAgent(t, llm, article23Index()), 0)
	if _, err := s.Ask(context.Background(), "Article 23?"); err == nil {
		t.Fatal("expected error")
	}
	if _, hist := s.Snapshot(); len(hist) != 0 {
		t.Errorf("failed query should not be recorded: %+v", hist)
	}
}

func TestSession_ArabicHistoryIsKeptInEnglish(t *testing.T) {
	llm := scriptedPipeline().Respond(TranslationSchemaName,
		`{"translation": "What does Article 23 say?"}`,
		`{"translation": "تقيد المادة 23 معالجة البيانات الصحية."}`,
		`{"translation": "And paragraph 6?"}`,
		`{"translation": "الفقرة 6 تقيد المعالجة."}`)
	s := NewSession("s3", Arabic, newTestAgent(t, llm, article23Index()), 0)

	if _, err := s.Ask(context.Background(), "ماذا تقول المادة 23؟"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := s.Ask(context.Background(), "والفقرة 6؟"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	summaries := llm.Requests(SummarySchemaName)
	if len(summaries) != 1 {
		t.Fatalf("summary calls = %d, want 1", len(summaries))
	}
	prompt := summaries[0].User
	for _, want := range []string{"User: What does Article 23 say?", "Assistant: Article 23 paragraph 6 limits health data processing."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("summary prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "المادة") {
		t.Errorf("summary prompt should not carry Arabic history:\n%s", prompt)
	}
	answers := llm.Requests(AnswerSchemaName)
	if last := answers[len(answers)-1].User; strings.Contains(last, "المادة") {
		t.Errorf("answer prompt should not carry Arabic history:\n%s", last)
	}

	_, hist := s.Snapshot()
	want := []ConversationTurn{
		{Role: RoleUser, Text: "What does Article 23 say?", Display: "ماذا تقول المادة 23؟"},
		{Role: RoleAssistant, Text: "Article 23 paragraph 6 limits health data processing.", Display: "تقيد المادة 23 معالجة البيانات الصحية."},
	}
	if diff := cmp.Diff(want, hist[:2]); diff != "" {
		t.Errorf("history mismatch:\n%s", diff)
	}
}

func TestSession_FullHistoryRejectsQuery(t *testing.T) {
	llm := scriptedPipeline()
	s := NewSession("s4", English, newTestAgent(t, llm, article23Index()), 2)
	if _, err := s.Ask(context.Background(), "What does Article 23 say?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	calls := len(llm.Requests(""))
	if _, err := s.Ask(context.Background(), "And paragraph 6?"); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
	if n := len(llm.Requests("")); n != calls {
		t.Errorf("full session still called the model (%d -> %d)", calls, n)
	}
	if s.Len() != 2 {
		t.Errorf("history length = %d, want 2", s.Len())
	}
}
