package assistant

import (
	"context"
	"errors"
	"strings"

	"pdpl_assistant/generator"
)

// ReferenceExtractor pulls explicit article/paragraph mentions and sectors out of text.
type ReferenceExtractor struct {
	llm  generator.Client
	tmpl generator.Template
}

func NewReferenceExtractor(llm generator.Client, prompts *generator.PromptBook) (*ReferenceExtractor, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	tmpl, err := prompts.Template(PromptExtractor)
	if err != nil {
		return nil, err
	}
	return &ReferenceExtractor{llm: llm, tmpl: tmpl}, nil
}

// Extract returns the mentions in text. Output never contains a number below 1, and
// paragraphs within a mention are unique in first-seen order. Errors wrap ErrExtraction.
func (e *ReferenceExtractor) Extract(ctx context.Context, text string) (Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return Extraction{Articles: []ReferenceMention{}, Sectors: []Sector{}}, nil
	}
	raw, err := e.llm.Generate(ctx, e.tmpl.Request(map[string]string{"document_text": text}, extractionSchema))
	if err != nil {
		return Extraction{}, stageError(ErrExtraction, err)
	}
	out, err := generator.Decode[Extraction](raw)
	if err != nil {
		return Extraction{}, stageError(ErrExtraction, err)
	}
	return normalizeExtraction(out), nil
}

// normalizeExtraction keeps mentions in extraction order, drops paragraphs repeated
// within a mention, repeated sectors and anything below 1.
func normalizeExtraction(in Extraction) Extraction {
	out := Extraction{Articles: []ReferenceMention{}, Sectors: []Sector{}}
	for _, m := range in.Articles {
		if m.Article < 1 {
			continue
		}
		mention := ReferenceMention{Article: m.Article, Paragraphs: []int{}}
		seen := make(map[int]bool, len(m.Paragraphs))
		for _, p := range m.Paragraphs {
			if p < 1 || seen[p] {
				continue
			}
			seen[p] = true
			mention.Paragraphs = append(mention.Paragraphs, p)
		}
		out.Articles = append(out.Articles, mention)
	}
	seenSector := make(map[Sector]bool)
	for _, s := range in.Sectors {
		if seenSector[s] {
			continue
		}
		seenSector[s] = true
		out.Sectors = append(out.Sectors, s)
	}
	return out
}
