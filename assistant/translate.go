package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdpl_assistant/generator"
)

// Language is a session language code.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

func (l Language) Supported() bool { return l == English || l == Arabic }

// ParseLanguage accepts "en" and "ar" in any case; empty means English.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "", English:
		return English, nil
	case Arabic:
		return Arabic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

type translationPair struct {
	toEnglish, fromEnglish generator.Template
	nativeVar, englishVar  string
}

// Translator moves text between English and the supported session languages.
type Translator struct {
	llm   generator.Client
	pairs map[Language]translationPair
}

func NewTranslator(llm generator.Client, prompts *generator.PromptBook) (*Translator, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	toEN, err := prompts.Template(PromptArabicToEN)
	if err != nil {
		return nil, err
	}
	fromEN, err := prompts.Template(PromptEnglishToAR)
	if err != nil {
		return nil, err
	}
	return &Translator{
		llm: llm,
		pairs: map[Language]translationPair{
			Arabic: {toEnglish: toEN, fromEnglish: fromEN, nativeVar: "arabic_text", englishVar: "english_text"},
		},
	}, nil
}

// ToEnglish translates text written in lang into English. English passes through.
func (t *Translator) ToEnglish(ctx context.Context, lang Language, text string) (string, error) {
	if lang == English {
		return text, nil
	}
	pair, ok := t.pairs[lang]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return t.translate(ctx, pair.toEnglish, pair.nativeVar, text)
}

// FromEnglish translates English text into lang. English passes through.
func (t *Translator) FromEnglish(ctx context.Context, lang Language, text string) (string, error) {
	if lang == English {
		return text, nil
	}
	pair, ok := t.pairs[lang]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return t.translate(ctx, pair.fromEnglish, pair.englishVar, text)
}

func (t *Translator) translate(ctx context.Context, tmpl generator.Template, key, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	raw, err := t.llm.Generate(ctx, tmpl.Request(map[string]string{key: text}, translationSchema))
	if err != nil {
		return "", stageError(ErrTranslation, err)
	}
	out, err := generator.Decode[struct {
		Translation string `json:"translation"`
	}](raw)
	if err != nil {
		return "", stageError(ErrTranslation, err)
	}
	if strings.TrimSpace(out.Translation) == "" {
		return "", stageError(ErrTranslation, errors.New("empty translation"))
	}
	return out.Translation, nil
}
