package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"

	"pdpl_assistant/logging"
)

// ErrNotFound is returned by Open when the index file or its tables are missing.
var ErrNotFound = errors.New("index not found")

// Store is a SQLite-backed passage collection with embedding vectors.
// Safe for concurrent readers.
type Store struct {
	db       *sql.DB
	embedder Embedder
	model    string
	readOnly bool
	logger   *slog.Logger
}

// Open opens an existing index for querying. It never creates or migrates anything.
// A model other than the one recorded in the index is logged, not rejected.
func Open(ctx context.Context, path string, embedder Embedder, model string) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("index: embedder is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db, embedder: embedder, readOnly: true, logger: logging.New("index")}
	if err := s.checkSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	stored, err := s.meta(ctx, metaEmbeddingModel)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.model = stored
	if model != "" && stored != "" && model != stored {
		s.logger.WarnContext(ctx, "embedding model differs from the one the index was built with; similarity scores are unreliable",
			"index_model", stored, "configured_model", model, "path", path)
	}
	return s, nil
}

// Create opens or creates a writable index at path, recording the embedding model.
// Used by the ingest command and test fixtures.
func Create(ctx context.Context, path string, embedder Embedder, model string) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("index: embedder is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	s := &Store{db: db, embedder: embedder, model: model, logger: logging.New("index")}
	if err := s.setMeta(ctx, metaSchemaVersion, strconv.Itoa(schemaVersion)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.setMeta(ctx, metaEmbeddingModel, model); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Model is the embedding model recorded in the index.
func (s *Store) Model() string { return s.model }

func (s *Store) checkSchema(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('passages','index_meta')",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check index schema: %w", err)
	}
	if n != 2 {
		return fmt.Errorf("%w: passages/index_meta tables missing", ErrNotFound)
	}
	v, err := s.meta(ctx, metaSchemaVersion)
	if err != nil {
		return err
	}
	if v != strconv.Itoa(schemaVersion) {
		return fmt.Errorf("unsupported index schema version %q", v)
	}
	return nil
}

func (s *Store) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read index meta %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO index_meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("write index meta %s: %w", key, err)
	}
	return nil
}

// Add embeds and inserts passages in one transaction.
func (s *Store) Add(ctx context.Context, passages ...Passage) error {
	if s.readOnly {
		return errors.New("index opened read-only")
	}
	if len(passages) == 0 {
		return nil
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		if err := validate(p); err != nil {
			return err
		}
		texts[i] = p.Content
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(vecs) != len(passages) {
		return fmt.Errorf("embedder returned %d vectors for %d passages", len(vecs), len(passages))
	}
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, p := range passages {
		if dims == 0 {
			dims = len(vecs[i])
		}
		if len(vecs[i]) != dims || dims == 0 {
			return fmt.Errorf("passage %s: embedding has %d dimensions, index uses %d", p.Key(), len(vecs[i]), dims)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO passages(content, article_number, paragraph_number, embedding) VALUES(?, ?, ?, ?)",
			p.Content, p.Article, canonicalParagraph(p.Paragraph), encodeVector(vecs[i]))
		if err != nil {
			return fmt.Errorf("insert passage %s: %w", p.Key(), err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaDimensions, strconv.Itoa(dims)); err != nil {
		return fmt.Errorf("write index meta %s: %w", metaDimensions, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

func (s *Store) dimensions(ctx context.Context) (int, error) {
	v, err := s.meta(ctx, metaDimensions)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

type scored struct {
	passage Passage
	score   float64
}

// SimilaritySearch returns the k passages closest to query by cosine similarity,
// most similar first. Equal scores keep insertion order.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error) {
	if k < 1 {
		return nil, fmt.Errorf("similarity search: k must be >= 1, got %d", k)
	}
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []Passage{}, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}
	q := vecs[0]

	rows, err := s.db.QueryContext(ctx,
		"SELECT content, article_number, paragraph_number, embedding FROM passages ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("scan passages: %w", err)
	}
	defer rows.Close()

	hits := make([]scored, 0, n)
	for rows.Next() {
		var (
			p    Passage
			para string
			blob []byte
		)
		if err := rows.Scan(&p.Content, &p.Article, &para, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if p.Paragraph, err = parseParagraph(para); err != nil {
			s.logger.WarnContext(ctx, "skipping passage with bad metadata", "article", p.Article, "error", err)
			continue
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("passage %s: %w", p.Key(), err)
		}
		if len(v) != len(q) {
			return nil, fmt.Errorf("query embedding has %d dimensions, index uses %d", len(q), len(v))
		}
		hits = append(hits, scored{passage: p, score: cosine(q, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan passages: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Passage, len(hits))
	for i, h := range hits {
		out[i] = h.passage
	}
	return out, nil
}

// ExactLookup returns the passages of article whose paragraph is in paragraphs, in the
// order the paragraphs are given. Duplicated rows in the index are all returned.
// An empty paragraph list returns the whole article ordered by paragraph.
func (s *Store) ExactLookup(ctx context.Context, article int, paragraphs []int) ([]Passage, error) {
	if article < 1 {
		return nil, fmt.Errorf("exact lookup: article must be >= 1, got %d", article)
	}
	if len(paragraphs) == 0 {
		return s.lookup(ctx,
			"SELECT content, article_number, paragraph_number FROM passages WHERE article_number = ? ORDER BY CAST(paragraph_number AS INTEGER), id",
			article)
	}
	out := []Passage{}
	seen := make(map[int]bool, len(paragraphs))
	for _, para := range paragraphs {
		if para < 1 {
			return nil, fmt.Errorf("exact lookup: paragraph must be >= 1, got %d", para)
		}
		if seen[para] {
			continue
		}
		seen[para] = true
		got, err := s.lookup(ctx,
			"SELECT content, article_number, paragraph_number FROM passages WHERE article_number = ? AND paragraph_number = ? ORDER BY id",
			article, canonicalParagraph(para))
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}

func (s *Store) lookup(ctx context.Context, query string, args ...any) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	defer rows.Close()

	out := []Passage{}
	for rows.Next() {
		var (
			p    Passage
			para string
		)
		if err := rows.Scan(&p.Content, &p.Article, &para); err != nil {
			return nil, fmt.Errorf("exact lookup: %w", err)
		}
		if p.Paragraph, err = parseParagraph(para); err != nil {
			s.logger.WarnContext(ctx, "skipping passage with bad metadata", "article", p.Article, "error", err)
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	return out, nil
}
