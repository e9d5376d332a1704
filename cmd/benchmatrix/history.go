package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"benchmatrix/internal/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyNoColor bool
)

var (
	historyTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	historyHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sweeps",
	Long:  `Lists sweeps saved with "run --save", newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of sweeps to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyNoColor, "no-color", false, "Disable colored output")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyNoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	store, err := openArchive(config.Current())
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list sweeps: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No archived sweeps.")
		return nil
	}

	fmt.Fprintln(out, historyTitleStyle.Render(fmt.Sprintf("Archived sweeps (%d)", len(runs))))
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tPLANS\tPOINTS\tCOMMIT")
	for _, r := range runs {
		commit := r.Commit
		if commit == "" {
			commit = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			shortSweepID(r.ID),
			r.Timestamp.Local().Format(time.DateTime),
			strings.Join(r.Plans, "+"),
			r.Points,
			commit)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, historyHintStyle.Render(`Use "benchmatrix report <id>" to print an archived sweep.`))
	return nil
}

func shortSweepID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
