package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testPrompts = `
prompts:
  greet:
    system_prompt: "You greet people."
    user_prompt: "Hello {{ name }}, you asked: {{question}}"
  bare:
    user_prompt: "{{ text }}"
`

func TestParsePromptBook(t *testing.T) {
	book, err := ParsePromptBook([]byte(testPrompts))
	if err != nil {
		t.Fatalf("ParsePromptBook: %v", err)
	}
	if diff := cmp.Diff([]string{"bare", "greet"}, book.Names()); diff != "" {
		t.Errorf("Names mismatch:\n%s", diff)
	}
	tmpl, err := book.Template("greet")
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if tmpl.System != "You greet people." {
		t.Errorf("System = %q", tmpl.System)
	}
}

func TestParsePromptBook_Errors(t *testing.T) {
	if _, err := ParsePromptBook([]byte("other: {}")); err == nil {
		t.Error("expected error for missing prompts key")
	}
	if _, err := ParsePromptBook([]byte("prompts:\n  x:\n    system_prompt: s\n")); err == nil {
		t.Error("expected error for empty user_prompt")
	}
	if _, err := ParsePromptBook([]byte("prompts: [unclosed")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestLoadPromptBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yml")
	if err := os.WriteFile(path, []byte(testPrompts), 0o644); err != nil {
		t.Fatal(err)
	}
	book, err := LoadPromptBook(path)
	if err != nil {
		t.Fatalf("LoadPromptBook: %v", err)
	}
	if err := book.Require("greet", "bare"); err != nil {
		t.Errorf("Require: %v", err)
	}
	err = book.Require("greet", "missing_one", "missing_two")
	if err == nil || !strings.Contains(err.Error(), "missing_one, missing_two") {
		t.Errorf("Require missing = %v", err)
	}
	if _, err := LoadPromptBook(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Hello {{ name }}, question: {{question_ja}} {{ unknown }}", map[string]string{
		"name":        "user",
		"question_ja": "テスト質問",
	})
	want := "Hello user, question: テスト質問 {{ unknown }}"
	if got != want {
		t.Errorf("RenderTemplate = %q, want %q", got, want)
	}
}

func TestRenderTemplate_NoReexpansion(t *testing.T) {
	got := RenderTemplate("Q: {{ question }} / H: {{ history }}", map[string]string{
		"question": "what is {{ history }}?",
		"history":  "none",
	})
	want := "Q: what is {{ history }}? / H: none"
	if got != want {
		t.Errorf("RenderTemplate = %q, want %q", got, want)
	}
}

func TestTemplateRequest(t *testing.T) {
	schema := MustSchema("s", "", []byte(`{"type":"object"}`))
	tmpl := Template{System: "sys {{ name }}", User: "user {{ name }}"}
	req := tmpl.Request(map[string]string{"name": "x"}, schema)
	if req.System != "sys x" || req.User != "user x" || req.Schema != schema {
		t.Errorf("unexpected request: %+v", req)
	}
}
