package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdpl_assistant/index"
)

var lookupFlags struct {
	article    int
	paragraphs []int
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print indexed passages for an article, optionally limited to paragraphs",
	RunE:  runLookup,
}

func init() {
	lookupCmd.Flags().IntVar(&lookupFlags.article, "article", 0, "article number")
	lookupCmd.Flags().IntSliceVar(&lookupFlags.paragraphs, "paragraph", nil, "paragraph number (repeatable)")
	_ = lookupCmd.MarkFlagRequired("article")
}

func runLookup(cmd *cobra.Command, _ []string) error {
	if lookupFlags.article < 1 {
		return fmt.Errorf("--article must be >= 1")
	}
	ctx := cmd.Context()
	store, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	passages, err := store.ExactLookup(ctx, lookupFlags.article, lookupFlags.paragraphs)
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return fmt.Errorf("%w: article %d paragraphs %v", index.ErrNotFound, lookupFlags.article, lookupFlags.paragraphs)
	}
	w := cmd.OutOrStdout()
	for _, p := range passages {
		fmt.Fprintf(w, "%s\n%s\n\n", index.Key{Article: p.Article, Paragraph: p.Paragraph}, p.Content)
	}
	return nil
}
