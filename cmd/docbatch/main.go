package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docbatch",
	Short: "docbatch - batch document processing with rollback protection",
	Long:  "docbatch processes batches of documents through a classification pipeline, tracking per-file progress and capturing snapshots so any batch can be rolled back.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("docbatch v0.1.0")
	},
}

var (
	flagConfig  string
	flagVerbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default ~/.docbatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Log processing details to stderr")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
