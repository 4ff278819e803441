package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdpl_assistant/config"
	"pdpl_assistant/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// cfg is loaded once before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "pdpl",
	Short: "Cited question answering over the Personal Data Protection Law",
	Long: `pdpl answers questions about the Personal Data Protection Law. It retrieves
law passages by semantic search and by the article/paragraph references in the
question, then generates an answer that cites the passages it used.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "path to config.json (optional; environment variables also apply)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "text or json (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		loaded.LogLevel = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		loaded.LogFormat = rootFlags.logFormat
	}
	// MCP owns stdout, so logs always go to stderr.
	logging.Init(logging.ParseLevel(loaded.LogLevel), loaded.LogFormat, os.Stderr)
	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
