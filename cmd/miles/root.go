package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/miles/internal/config"
)

// NewRootCmd creates the root command for miles.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "miles",
		Short: "Download the files linked from a web page",
		Long: `miles fetches one web page, finds the links to files of the requested
types and downloads them into a directory with bounded parallelism.

When the downloads finish it reports the number of files, the bytes
downloaded, the elapsed time and the bandwidth. Every crawl is recorded in
a local history database unless --no-history is given.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatText,
		"Log output format: text or json")
	cmd.PersistentFlags().String("data-dir", config.XDGDataDir(),
		"Directory holding the crawl history database")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}
	return verbose
}

// getLogFormat returns the log format. Commands run outside the root
// command log as text.
func getLogFormat(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil || format == "" {
		return config.LogFormatText
	}
	return format
}

// getDataDir returns the history database directory. Commands run outside
// the root command fall back to the XDG data directory.
func getDataDir(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("data-dir")
	if err != nil || dir == "" {
		return config.XDGDataDir()
	}
	return dir
}
