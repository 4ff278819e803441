package assistant

import (
	"context"
	"errors"
	"testing"

	"pdpl_assistant/generator"
	"pdpl_assistant/index"
)

// fakeIndex serves fixed semantic hits and answers exact lookups from passages.
type fakeIndex struct {
	semantic  []index.Passage
	passages  []index.Passage
	searchErr error
	lookupErr error
	searches  []string
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, query string, k int) ([]index.Passage, error) {
	f.searches = append(f.searches, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.semantic) > k {
		return f.semantic[:k], nil
	}
	return f.semantic, nil
}

func (f *fakeIndex) ExactLookup(_ context.Context, article int, paragraphs []int) ([]index.Passage, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	out := []index.Passage{}
	for _, p := range f.passages {
		if p.Article != article {
			continue
		}
		if len(paragraphs) == 0 {
			out = append(out, p)
			continue
		}
		for _, want := range paragraphs {
			if p.Paragraph == want {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")

func newTestAgent(t *testing.T, llm generator.Client, idx Searcher) *Agent {
	t.Helper()
	a, err := NewAgent(Config{LLM: llm, Index: idx})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	return a
}

const noMentions = `{"articles": [], "sectors": []}`

func passage(article, paragraph int, content string) index.Passage {
	return index.Passage{Content: content, Article: article, Paragraph: paragraph}
}
