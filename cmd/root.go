// Package cmd implements the gitrag command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gitrag",
	Short: "gitRAG - retrieval-augmented search over git repositories",
	Long: `gitRAG chunks and embeds repository content into a pgvector-backed
store and answers questions through an optimize/retrieve/rerank
pipeline.

Run "gitrag serve" to start the HTTP API, or "gitrag ingest" to load
documents from the command line.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
