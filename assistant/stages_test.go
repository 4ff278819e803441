package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdpl_assistant/generator"
)

func TestScopeClassifier(t *testing.T) {
	llm := generator.NewMockLLM().Respond(ScopeSchemaName, `{"value": false}`)
	c, err := NewScopeClassifier(llm, DefaultPrompts())
	if err != nil {
		t.Fatal(err)
	}
	in, err := c.Classify(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if in {
		t.Error("expected out of scope")
	}
	reqs := llm.Requests(ScopeSchemaName)
	if len(reqs) != 1 || !strings.Contains(reqs[0].User, "capital of France") {
		t.Errorf("question not substituted into prompt: %+v", reqs)
	}
	if strings.Contains(reqs[0].User, "{{") {
		t.Errorf("unrendered placeholder in prompt: %q", reqs[0].User)
	}

	llm.Fail(ScopeSchemaName, generator.ErrUpstream)
	_, err = c.Classify(context.Background(), "q")
	if !errors.Is(err, ErrScopeClassification) || !errors.Is(err, generator.ErrGeneration) {
		t.Errorf("expected scope+generation error, got %v", err)
	}
}

func TestReferenceExtractor(t *testing.T) {
	llm := generator.NewMockLLM().Respond(ExtractionSchemaName,
		`{"articles": [{"article": 1, "paragraphs": [4, 5, 4]}, {"article": 23, "paragraphs": [6]}, {"article": 1, "paragraphs": [6]}],
		  "sectors": ["Health & Medical Services", "Health & Medical Services"]}`)
	e, err := NewReferenceExtractor(llm, DefaultPrompts())
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Extract(context.Background(), "Articel 1, paragraphs 4, 5 and 6, and paragraph 6 in Article 23")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := Extraction{
		Articles: []ReferenceMention{
			{Article: 1, Paragraphs: []int{4, 5}},
			{Article: 23, Paragraphs: []int{6}},
			{Article: 1, Paragraphs: []int{6}},
		},
		Sectors: []Sector{SectorHealth},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract mismatch:\n%s", diff)
	}
}

func TestReferenceExtractor_RejectsSchemaViolations(t *testing.T) {
	bad := []string{
		`{"articles": [{"article": 0, "paragraphs": []}], "sectors": []}`,
		`{"articles": [{"article": 2, "paragraphs": [0]}], "sectors": []}`,
		`{"articles": [{"article": 2, "paragraphs": [1], "title": "x"}], "sectors": []}`,
		`{"articles": [], "sectors": ["Retail"]}`,
		`{"sectors": []}`,
	}
	for _, out := range bad {
		llm := generator.NewMockLLM().Respond(ExtractionSchemaName, out)
		e, _ := NewReferenceExtractor(llm, DefaultPrompts())
		got, err := e.Extract(context.Background(), "Article 2")
		if !errors.Is(err, ErrExtraction) {
			t.Errorf("output %s: expected ErrExtraction, got %v (%+v)", out, err, got)
		}
	}
}

func TestReferenceExtractor_EmptyTextSkipsModel(t *testing.T) {
	llm := generator.NewMockLLM()
	e, _ := NewReferenceExtractor(llm, DefaultPrompts())
	got, err := e.Extract(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Articles) != 0 || got.Articles == nil {
		t.Errorf("expected empty non-nil articles, got %#v", got.Articles)
	}
	if n := len(llm.Requests("")); n != 0 {
		t.Errorf("model called %d times", n)
	}
}

func TestSummarizer_EmptyHistoryIsPassThrough(t *testing.T) {
	llm := generator.NewMockLLM()
	s, err := NewSummarizer(llm, DefaultPrompts())
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{"What is Article 4?", "", "  spaced  ", "ما هي المادة 4؟"} {
		got, err := s.Summarize(context.Background(), q, nil)
		if err != nil || got != q {
			t.Errorf("Summarize(%q, nil) = %q, %v", q, got, err)
		}
	}
	if n := len(llm.Requests("")); n != 0 {
		t.Errorf("model called %d times for empty history", n)
	}
}

func TestSummarizer_WithHistory(t *testing.T) {
	llm := generator.NewMockLLM().Respond(SummarySchemaName, `{"summary": "What rights does Article 4 give data subjects?"}`)
	s, _ := NewSummarizer(llm, DefaultPrompts())
	got, err := s.Summarize(context.Background(), "What rights does it give?",
		[]string{"User: Tell me about Article 4", "Assistant: Article 4 covers data subject rights."})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "What rights does Article 4 give data subjects?" {
		t.Errorf("summary = %q", got)
	}
	req := llm.Requests(SummarySchemaName)[0]
	if !strings.Contains(req.User, "User: Tell me about Article 4\nAssistant: Article 4 covers") {
		t.Errorf("history not joined into prompt: %q", req.User)
	}

	llm.Fail(SummarySchemaName, generator.ErrRateLimited)
	if _, err := s.Summarize(context.Background(), "q", []string{"User: hi"}); !errors.Is(err, ErrSummarization) {
		t.Errorf("expected ErrSummarization, got %v", err)
	}
}

func TestTranslator(t *testing.T) {
	llm := generator.NewMockLLM().Respond(TranslationSchemaName, `{"translation": "What does Article 5 say?"}`)
	tr, err := NewTranslator(llm, DefaultPrompts())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	got, err := tr.ToEnglish(ctx, English, "unchanged")
	if err != nil || got != "unchanged" {
		t.Errorf("English pass-through = %q, %v", got, err)
	}
	got, err = tr.ToEnglish(ctx, Arabic, "ماذا تقول المادة 5؟")
	if err != nil || got != "What does Article 5 say?" {
		t.Errorf("ToEnglish = %q, %v", got, err)
	}
	req := llm.Requests(TranslationSchemaName)[0]
	if !strings.Contains(req.User, "ماذا تقول المادة 5؟") {
		t.Errorf("arabic_text not substituted: %q", req.User)
	}
	if _, err := tr.FromEnglish(ctx, Language("fr"), "x"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{"": English, "en": English, "AR": Arabic, " ar ": Arabic} {
		got, err := ParseLanguage(in)
		if err != nil || got != want {
			t.Errorf("ParseLanguage(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLanguage("fr"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestLoadPrompts_RequiresAllTemplates(t *testing.T) {
	book, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts(\"\"): %v", err)
	}
	if got := len(book.Names()); got != len(requiredPrompts) {
		t.Errorf("built-in book has %d templates, want %d", got, len(requiredPrompts))
	}

	partial, err := generator.ParsePromptBook([]byte("prompts:\n  extractor:\n    user_prompt: x\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewAgent(Config{LLM: generator.NewMockLLM(), Index: &fakeIndex{}, Prompts: partial}); err == nil {
		t.Error("expected error for prompt book missing templates")
	}
}

func TestHistoryLines(t *testing.T) {
	got := HistoryLines([]ConversationTurn{
		{Role: RoleUser, Text: " first "},
		{Role: RoleAssistant, Text: "reply"},
		{Role: RoleUser, Text: ""},
	})
	if diff := cmp.Diff([]string{"User: first", "Assistant: reply"}, got); diff != "" {
		t.Errorf("HistoryLines mismatch:\n%s", diff)
	}
}
