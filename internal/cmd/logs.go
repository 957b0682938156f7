package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/spatialbridge/internal/config"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View bridge logs",
	Long: `View and filter the bridge log, including rotated files.

Examples:
  # Show the last 50 entries
  spatialbridge logs

  # Warnings and errors of the barcode feature in the last hour
  spatialbridge logs --level warn --feature barcode --since 1h

  # Everything logged about one query token
  spatialbridge logs --query 0x2a -n 0`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail    int
	logsLevel   string
	logsSince   string
	logsFeature string
	logsQuery   string
	logsGrep    string
	logsJSON    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsFeature, "feature", "", "Filter by feature name")
	logsCmd.Flags().StringVar(&logsQuery, "query", "", "Filter by query token (e.g., 0x2a)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter by message substring")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Print entries as JSON")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	filter := logging.Filter{
		Feature:         logsFeature,
		Query:           logsQuery,
		MessageContains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	entries, err := logging.ReadEntries(cfg.Logging.LogDir())
	if err != nil {
		return err
	}
	entries = filter.Apply(entries)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	if logsJSON {
		return logging.WriteJSON(out, entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	return logging.WriteText(out, entries)
}
