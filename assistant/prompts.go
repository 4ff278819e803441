package assistant

import (
	_ "embed"

	"pdpl_assistant/generator"
)

// Template names the pipeline looks up in the prompt book.
const (
	PromptScope       = "scope_classifier"
	PromptExtractor   = "extractor"
	PromptSummary     = "conversation_history_prompt"
	PromptAnswer      = "response_with_citations"
	PromptArabicToEN  = "translate_ar_en"
	PromptEnglishToAR = "translate_en_ar"
)

var requiredPrompts = []string{
	PromptScope,
	PromptExtractor,
	PromptSummary,
	PromptAnswer,
	PromptArabicToEN,
	PromptEnglishToAR,
}

//go:embed prompts.yml
var defaultPrompts []byte

// DefaultPrompts returns the built-in prompt book.
func DefaultPrompts() *generator.PromptBook {
	book, err := generator.ParsePromptBook(defaultPrompts)
	if err != nil {
		panic("assistant: embedded prompts.yml: " + err.Error())
	}
	return book
}

// LoadPrompts reads a prompt book from path, or returns the built-in one when path is
// empty. Every template the pipeline uses must be present.
func LoadPrompts(path string) (*generator.PromptBook, error) {
	book := DefaultPrompts()
	if path != "" {
		var err error
		if book, err = generator.LoadPromptBook(path); err != nil {
			return nil, err
		}
	}
	if err := book.Require(requiredPrompts...); err != nil {
		return nil, err
	}
	return book, nil
}
