package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"pdpl_assistant/index"
	"pdpl_assistant/logging"
)

const (
	DefaultTopK               = 5
	DefaultMaxArticlePassages = 10
)

// Searcher is the read side of the semantic index. *index.Store implements it.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]index.Passage, error)
	ExactLookup(ctx context.Context, article int, paragraphs []int) ([]index.Passage, error)
}

// Retriever merges semantic hits with passages looked up from explicit references.
type Retriever struct {
	index              Searcher
	extractor          *ReferenceExtractor
	topK               int
	maxArticlePassages int
	logger             *slog.Logger
}

type RetrieverOptions struct {
	TopK int

	// MaxArticlePassages caps the passages added for an article mentioned without paragraphs.
	MaxArticlePassages int
}

func NewRetriever(idx Searcher, extractor *ReferenceExtractor, opts RetrieverOptions) (*Retriever, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if extractor == nil {
		return nil, errors.New("reference extractor is required")
	}
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxArticlePassages < 1 {
		opts.MaxArticlePassages = DefaultMaxArticlePassages
	}
	return &Retriever{
		index:              idx,
		extractor:          extractor,
		topK:               opts.TopK,
		maxArticlePassages: opts.MaxArticlePassages,
		logger:             logging.New("retriever"),
	}, nil
}

// Retrieval is the merged context plus what the reference path found.
type Retrieval struct {
	Items    []ContextItem
	Mentions []ReferenceMention

	// Degraded is set when the reference path failed and Items holds semantic hits only.
	Degraded bool
}

// Retrieve runs similarity search (set A) and reference lookup (set B) concurrently and
// returns A in rank order followed by the B items whose article and paragraph are not
// already present. A is never trimmed, so the result is at least as long as A.
// Reference failures degrade to A alone; search failure wraps ErrRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, summary string) (Retrieval, error) {
	if strings.TrimSpace(summary) == "" {
		return Retrieval{}, stageError(ErrRetrieval, ErrInvalidInput)
	}

	var (
		semantic []index.Passage
		mentions []ReferenceMention
		looked   [][]index.Passage
		refErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semantic, err = r.index.SimilaritySearch(gctx, summary, r.topK)
		return err
	})
	g.Go(func() error {
		mentions, looked, refErr = r.lookupMentions(gctx, summary)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Retrieval{}, stageError(ErrRetrieval, err)
	}

	items := make([]ContextItem, 0, len(semantic))
	seen := make(map[index.Key]bool, len(semantic))
	for _, p := range semantic {
		items = append(items, contextItem(p, SourceSemantic))
		seen[p.Key()] = true
	}
	out := Retrieval{Mentions: mentions}
	if refErr != nil {
		r.logger.WarnContext(ctx, "reference lookup failed; using semantic results only", "error", refErr)
		out.Mentions = []ReferenceMention{}
		out.Degraded = true
	} else {
		for _, group := range looked {
			for _, p := range group {
				if seen[p.Key()] {
					continue
				}
				seen[p.Key()] = true
				items = append(items, contextItem(p, SourceReference))
			}
		}
	}
	out.Items = items

	r.logger.InfoContext(ctx, "context retrieved",
		"semantic", len(semantic),
		"mentions", len(mentions),
		"items", len(items),
		"degraded", out.Degraded,
	)
	return out, nil
}

// lookupMentions extracts references and fetches their passages in extraction order.
func (r *Retriever) lookupMentions(ctx context.Context, text string) ([]ReferenceMention, [][]index.Passage, error) {
	ext, err := r.extractor.Extract(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	var groups [][]index.Passage
	for _, m := range ext.Articles {
		if len(m.Paragraphs) == 0 {
			ps, err := r.index.ExactLookup(ctx, m.Article, nil)
			if err != nil {
				return nil, nil, stageError(ErrExtraction, err)
			}
			if len(ps) > r.maxArticlePassages {
				ps = ps[:r.maxArticlePassages]
			}
			groups = append(groups, ps)
			continue
		}
		for _, para := range m.Paragraphs {
			ps, err := r.index.ExactLookup(ctx, m.Article, []int{para})
			if err != nil {
				return nil, nil, stageError(ErrExtraction, err)
			}
			groups = append(groups, ps)
		}
	}
	return ext.Articles, groups, nil
}
