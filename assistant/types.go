package assistant

import (
	"fmt"
	"strings"

	"pdpl_assistant/index"
)

// ReferenceMention is an explicit article mention with the paragraphs named for it,
// in the order they appear in the text. Empty Paragraphs means the whole article.
type ReferenceMention struct {
	Article    int   `json:"article"`
	Paragraphs []int `json:"paragraphs"`
}

// Sector is one of the fixed regulated sectors a question can touch.
type Sector string

const (
	SectorGovernment    Sector = "Government & Public Sector"
	SectorHealth        Sector = "Health & Medical Services"
	SectorFinance       Sector = "Finance & Banking"
	SectorTelecom       Sector = "Telecommunications & Digital Infrastructure"
	SectorCybersecurity Sector = "Cybersecurity & National Security"
	SectorResearch      Sector = "Research, Education & Statistics"
)

// Sectors lists every Sector in schema order.
var Sectors = []Sector{
	SectorGovernment,
	SectorHealth,
	SectorFinance,
	SectorTelecom,
	SectorCybersecurity,
	SectorResearch,
}

// Extraction is the typed result of the reference extractor.
type Extraction struct {
	Articles []ReferenceMention `json:"articles"`
	Sectors  []Sector           `json:"sectors"`
}

// Source records which retrieval path produced a context item.
type Source string

const (
	SourceSemantic  Source = "semantic"
	SourceReference Source = "reference"
)

// ContextItem is a passage offered to the answer generator as evidence.
type ContextItem struct {
	Content   string `json:"content"`
	Article   int    `json:"article_number"`
	Paragraph int    `json:"paragraph_number"`
	Source    Source `json:"source,omitempty"`
}

func (c ContextItem) Key() index.Key { return index.Key{Article: c.Article, Paragraph: c.Paragraph} }

func contextItem(p index.Passage, src Source) ContextItem {
	return ContextItem{Content: p.Content, Article: p.Article, Paragraph: p.Paragraph, Source: src}
}

// Citation points from an answer back to a passage of the supplied context.
type Citation struct {
	Article   int    `json:"article"`
	Paragraph int    `json:"paragraph"`
	Text      string `json:"text"`
}

func (c Citation) Key() index.Key { return index.Key{Article: c.Article, Paragraph: c.Paragraph} }

// AnswerResult is the final answer. Citations is never nil.
type AnswerResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`

	// DroppedCitations counts model citations that named passages outside the context.
	DroppedCitations int `json:"dropped_citations,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry of a session's append-only history. Text is the
// English form the pipeline reads; Display holds what the user saw when that differs.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Text    string `json:"text"`
	Display string `json:"display,omitempty"`
}

func (t ConversationTurn) Validate() error {
	if t.Role != RoleUser && t.Role != RoleAssistant {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, t.Role)
	}
	return nil
}

// HistoryLines renders turns oldest first as "User: ..." / "Assistant: ..." lines.
func HistoryLines(turns []ConversationTurn) []string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		switch t.Role {
		case RoleAssistant:
			lines = append(lines, "Assistant: "+text)
		default:
			lines = append(lines, "User: "+text)
		}
	}
	return lines
}
