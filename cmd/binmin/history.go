package main

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/journal"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View the history of minimization runs.

The journal stores one record per run, including its outcome, the phase a
failed run stopped in, and which paths were deleted.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Long:  `Display detailed information about a run by its ID or a unique ID prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getJournal opens the configured journal.
func getJournal() (*journal.Journal, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	path := cfg.Journal.Path
	if path == "" {
		path = config.DefaultJournalDir()
	}
	j, err := journal.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, cfg, nil
}

// pruneJournal drops records past retention after a run. Failures only
// log, the run itself succeeded.
func pruneJournal(j *journal.Journal, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	if n, err := j.Cleanup(retentionDays); err != nil {
		printVerbose("Journal cleanup failed: %v", err)
	} else if n > 0 {
		printVerbose("Removed %d old journal entries", n)
	}
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	j, _, err := getJournal()
	if err != nil {
		return err
	}

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'binmin run <dir>' to minimize a tree.")
		return nil
	}

	fmt.Printf("\n%-34s  %-10s  %-8s  %-10s  %s\n", "ID", "OUTCOME", "DELETED", "SIZE", "ROOT")
	fmt.Println(strings.Repeat("-", 90))

	for _, entry := range entries {
		fmt.Printf("%-34s  %-10s  %-8d  %-10s  %s\n",
			truncateString(entry.ID, 34),
			entry.Outcome,
			entry.Summary.TotalFiles,
			types.FormatSize(entry.Summary.TotalBytes),
			truncateString(entry.Root, 40),
		)
	}

	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'binmin history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, _, err := getJournal()
	if err != nil {
		return err
	}

	entry, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:          %s\n", entry.ID)
	fmt.Printf("Timestamp:   %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Root:        %s\n", entry.Root)
	fmt.Printf("Outcome:     %s\n", entry.Outcome)
	if entry.Phase != "" {
		fmt.Printf("Phase:       %s\n", entry.Phase)
	}
	if entry.Error != "" {
		fmt.Printf("Error:       %s\n", entry.Error)
	}
	fmt.Printf("Link kind:   %s\n", entry.LinkKind)
	fmt.Printf("Strict:      %t\n", entry.Strict)
	fmt.Printf("Trash:       %t\n", entry.Trash)
	if entry.ManifestPath != "" {
		fmt.Printf("Manifest:    %s\n", entry.ManifestPath)
	}
	fmt.Printf("Duplicates:  %d\n", entry.Stats.DupCount)
	fmt.Printf("Deleted:     %d (%s)\n", entry.Summary.TotalFiles, types.FormatSize(entry.Summary.TotalBytes))

	if len(entry.Deleted) > 0 {
		fmt.Println("\nDeleted:")
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("%-12s  %s\n", "SIZE", "PATH -> CANONICAL")
		fmt.Println(strings.Repeat("-", 60))

		limit := min(len(entry.Deleted), 50)
		for _, d := range entry.Deleted[:limit] {
			fmt.Printf("%-12s  %s -> %s\n", types.FormatSize(d.Size), d.Path, d.Canonical)
		}

		if len(entry.Deleted) > limit {
			fmt.Printf("\n... and %d more files\n", len(entry.Deleted)-limit)
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	j, cfg, err := getJournal()
	if err != nil {
		return err
	}

	retentionDays := cfg.Journal.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	n, err := j.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", n)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
