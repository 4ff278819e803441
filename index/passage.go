// Package index is the persisted law-passage vector store and its passage loader.
package index

import (
	"fmt"
	"strconv"
)

// Passage is one indexed unit of law text addressed by article and paragraph.
type Passage struct {
	Content   string `json:"content"`
	Article   int    `json:"article_number"`
	Paragraph int    `json:"paragraph_number"`
}

// Key returns the (article, paragraph) address of the passage.
func (p Passage) Key() Key { return Key{Article: p.Article, Paragraph: p.Paragraph} }

// Key addresses a passage.
type Key struct {
	Article   int
	Paragraph int
}

func (k Key) String() string {
	return fmt.Sprintf("Article %d, Paragraph %d", k.Article, k.Paragraph)
}

// canonicalParagraph is the only string form paragraph numbers take in storage.
func canonicalParagraph(n int) string { return strconv.Itoa(n) }

// parseParagraph accepts only the canonical form: "4", never "04", " 4" or "4.0".
func parseParagraph(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || canonicalParagraph(n) != s {
		return 0, fmt.Errorf("non-canonical paragraph number %q", s)
	}
	return n, nil
}

func validate(p Passage) error {
	switch {
	case p.Article < 1:
		return fmt.Errorf("article number must be >= 1, got %d", p.Article)
	case p.Paragraph < 1:
		return fmt.Errorf("paragraph number must be >= 1, got %d", p.Paragraph)
	case p.Content == "":
		return fmt.Errorf("passage %s has no content", p.Key())
	}
	return nil
}
