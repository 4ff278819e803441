package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdpl_assistant/assistant"
	"pdpl_assistant/logging"
	"pdpl_assistant/render"
)

var askFlags struct {
	lang string
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print it with its references",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askFlags.lang, "lang", "en", "question and answer language (en or ar)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout())
	defer cancel()
	lang, err := assistant.ParseLanguage(askFlags.lang)
	if err != nil {
		return err
	}
	agent, store, err := buildAgent(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := agent.Ask(ctx, assistant.Query{Question: strings.Join(args, " "), Language: lang})
	if err != nil {
		return err
	}
	if len(out.Fallbacks) > 0 {
		logging.New("ask").Warn("answered with fallbacks", "stages", strings.Join(out.Fallbacks, ","))
	}
	fmt.Fprint(cmd.OutOrStdout(), render.Markdown(out.Answer, out.Language))
	return nil
}
