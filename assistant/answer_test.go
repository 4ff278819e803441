package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdpl_assistant/generator"
)

var article23 = []ContextItem{{Content: "Health data may be processed only ...", Article: 23, Paragraph: 6}}

func TestAnswer_GroundsCitations(t *testing.T) {
	llm := generator.NewMockLLM().Respond(AnswerSchemaName, `{
		"answer": "Paragraph 6 restricts health data processing.",
		"citations": [
			{"article": 23, "paragraph": 6, "text": "Health data may be processed only"},
			{"article": 40, "paragraph": 1, "text": "invented"}
		]}`)
	g, err := NewAnswerGenerator(llm, DefaultPrompts())
	if err != nil {
		t.Fatal(err)
	}
	got, err := g.Answer(context.Background(), "What about paragraph 6 in Article 23?", nil, article23)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	want := AnswerResult{
		Answer:           "Paragraph 6 restricts health data processing.",
		Citations:        []Citation{{Article: 23, Paragraph: 6, Text: "Health data may be processed only"}},
		DroppedCitations: 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Answer mismatch:\n%s", diff)
	}

	req := llm.Requests(AnswerSchemaName)[0]
	if !strings.Contains(req.User, `{"content":"Health data may be processed only ...","article number":23,"paragraph number":6}`) {
		t.Errorf("context not serialized into prompt: %q", req.User)
	}
}

func TestAnswer_EmptyContext(t *testing.T) {
	llm := generator.NewMockLLM().Respond(AnswerSchemaName,
		`{"answer": "The provided context does not cover this question.", "citations": []}`)
	g, _ := NewAnswerGenerator(llm, DefaultPrompts())

	got, err := g.Answer(context.Background(), "What is Article 99?", nil, nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Answer == "" || got.Citations == nil || len(got.Citations) != 0 {
		t.Errorf("expected non-empty answer with empty citations, got %#v", got)
	}
	if req := llm.Requests(AnswerSchemaName)[0]; !strings.Contains(req.User, noneText) {
		t.Errorf("empty context should be marked in prompt: %q", req.User)
	}
}

func TestAnswer_Failures(t *testing.T) {
	cases := map[string]*generator.MockLLM{
		"empty answer":      generator.NewMockLLM().Respond(AnswerSchemaName, `{"answer": "  ", "citations": []}`),
		"missing citations": generator.NewMockLLM().Respond(AnswerSchemaName, `{"answer": "x"}`),
		"paragraph zero":    generator.NewMockLLM().Respond(AnswerSchemaName, `{"answer": "x", "citations": [{"article": 1, "paragraph": 0, "text": ""}]}`),
		"upstream":          generator.NewMockLLM().Fail(AnswerSchemaName, generator.ErrUpstream),
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			g, _ := NewAnswerGenerator(llm, DefaultPrompts())
			_, err := g.Answer(context.Background(), "q", []string{"User: hi"}, article23)
			if !errors.Is(err, ErrAnswerGeneration) {
				t.Fatalf("expected ErrAnswerGeneration, got %v", err)
			}
		})
	}
}

func TestGroundCitations_NilBecomesEmpty(t *testing.T) {
	got := groundCitations("a", nil, nil)
	if got.Citations == nil {
		t.Error("Citations should be an empty slice, not nil")
	}
}
