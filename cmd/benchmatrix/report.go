package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"benchmatrix/internal/benchmark"
	"benchmatrix/internal/config"
	"benchmatrix/internal/db"
	"benchmatrix/internal/harness"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var reportPretty bool

var reportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Print the results of an archived sweep",
	Long: `Prints the GRAPH DATA and AVERAGES sections of an archived sweep. The ID may
be abbreviated to any unique prefix. With --pretty the averages are rendered
as styled Markdown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportPretty, "pretty", false, "Render averages as styled Markdown")
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := openArchive(config.Current())
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(args[0])
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			return fmt.Errorf("no archived sweep matches %q", args[0])
		}
		return err
	}

	results := benchmark.StoreFromPoints(run.Points)
	sections := harness.ArchivedSections(*run, results)

	if reportPretty {
		return renderPretty(cmd.OutOrStdout(), run, results, sections)
	}
	return harness.NewReportWriter(cmd.OutOrStdout(), slog.Default()).Write(results, sections)
}

func renderPretty(w io.Writer, run *benchmark.Run, results *benchmark.Store, sections []harness.Section) error {
	var md strings.Builder
	fmt.Fprintf(&md, "# Sweep %s\n\n", run.ID)
	fmt.Fprintf(&md, "Started %s", run.Timestamp.Local().Format(time.RFC1123))
	if run.Commit != "" {
		fmt.Fprintf(&md, " at commit `%s`", run.Commit)
	}
	md.WriteString(".\n")
	for _, sec := range sections {
		fmt.Fprintf(&md, "\n## %s\n", sec.Name)
		for _, t := range sec.Tables {
			fmt.Fprintf(&md, "\n### %s\n\n", t.Title)
			text, err := benchmark.RenderTable(results, t.Columns, t.Precision)
			if err != nil {
				fmt.Fprintf(&md, "_unavailable: %v_\n", err)
				continue
			}
			md.WriteString(text)
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprint(w, md.String())
		return nil
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		// Fall back to the raw Markdown.
		fmt.Fprint(w, md.String())
		return nil
	}
	fmt.Fprint(w, out)
	return nil
}
