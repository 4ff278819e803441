package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdpl_assistant/index"
	"pdpl_assistant/logging"
)

var ingestFlags struct {
	from  string
	batch int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed law passages from a JSON-lines file into the index",
	Long: `Reads one passage per line from --from, for example

  {"content": "...", "article_number": 4, "paragraph_number": 2}

and appends them to the index at index_path, creating it if needed. Each batch
is embedded and committed on its own.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.from, "from", "", "passages file (JSON lines)")
	ingestCmd.Flags().IntVar(&ingestFlags.batch, "batch", 64, "passages embedded per request")
	_ = ingestCmd.MarkFlagRequired("from")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestFlags.batch < 1 {
		return fmt.Errorf("--batch must be >= 1")
	}
	f, err := os.Open(ingestFlags.from)
	if err != nil {
		return err
	}
	defer f.Close()
	passages, err := index.ReadPassages(f)
	if err != nil {
		return fmt.Errorf("%s: %w", ingestFlags.from, err)
	}

	ctx := cmd.Context()
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	store, err := index.Create(ctx, cfg.IndexPath, embedder, cfg.Embedding.Model)
	if err != nil {
		return err
	}
	defer store.Close()

	log := logging.New("ingest")
	if err := ingestBatches(ctx, store, passages, ingestFlags.batch); err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	log.Info("ingest complete", "added", len(passages), "total", total, "index", cfg.IndexPath)
	fmt.Fprintf(cmd.OutOrStdout(), "added %d passages (%d in index)\n", len(passages), total)
	return nil
}

func ingestBatches(ctx context.Context, store *index.Store, passages []index.Passage, size int) error {
	for start := 0; start < len(passages); start += size {
		end := min(start+size, len(passages))
		if err := store.Add(ctx, passages[start:end]...); err != nil {
			return fmt.Errorf("passages %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}
