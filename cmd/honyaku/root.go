package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "honyaku",
	Short: "PDF translation pipeline with OCR and LLM-powered translation",
	Long: `Honyaku turns PDF documents into translated Markdown.

Each uploaded PDF becomes a job that runs through the pipeline:
  - Page rendering to images
  - OCR with block-level text extraction
  - Reading-order reconstruction for multi-column layouts
  - Chunked translation via a configurable LLM backend
  - Markdown assembly, per page and merged`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.honyaku/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "honyaku home directory (default: ~/.honyaku)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs. A .env file in the working
	// directory supplies API keys for ${VAR} references in the config.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
