package harness

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"benchmatrix/internal/benchmark"
)

// TablePrecision is the number of decimals in AVERAGES tables.
const TablePrecision = 3

// Table describes one summary table of the AVERAGES section.
type Table struct {
	Title     string
	Columns   []benchmark.Column
	Precision int
}

// variantHeaders names the columns of the well-known sorting variants.
var variantHeaders = map[string]string{
	benchmark.VariantRandom.Name:   "RANDOM",
	benchmark.VariantReversed.Name: "REVERSED",
}

// DeriveTables builds default tables for a list of series. When any series has
// a named variant, each label gets its own table with one column per variant;
// otherwise a single table titled title compares every label.
func DeriveTables(title string, series []benchmark.Column) []Table {
	hasVariants := slices.ContainsFunc(series, func(c benchmark.Column) bool { return c.Variant != "" })
	if !hasVariants {
		t := Table{Title: title, Precision: TablePrecision}
		for _, s := range series {
			t.Columns = append(t.Columns, benchmark.Column{Header: s.Label, Label: s.Label})
		}
		return []Table{t}
	}

	var tables []Table
	index := make(map[string]int)
	for _, s := range series {
		i, ok := index[s.Label]
		if !ok {
			i = len(tables)
			index[s.Label] = i
			tables = append(tables, Table{Title: s.Label, Precision: TablePrecision})
		}
		header, ok := variantHeaders[s.Variant]
		if !ok {
			header = strings.ToUpper(s.Variant)
		}
		if header == "" {
			header = s.Label
		}
		tables[i].Columns = append(tables[i].Columns, benchmark.Column{Header: header, Label: s.Label, Variant: s.Variant})
	}
	return tables
}

// Section is one output block: the series or tables of a plan.
type Section struct {
	Name   string
	Series []benchmark.Column
	Tables []Table
}

// Layouts flattens the tables of sections into the layouts archived with a sweep.
func Layouts(sections []Section) []benchmark.TableLayout {
	var out []benchmark.TableLayout
	for _, sec := range sections {
		for _, t := range sec.Tables {
			out = append(out, benchmark.TableLayout{Plan: sec.Name, Title: t.Title, Columns: t.Columns, Precision: t.Precision})
		}
	}
	return out
}

// ArchivedSections rebuilds the sections of an archived sweep, one per plan.
// Sweeps archived without table layouts get tables derived from their series.
func ArchivedSections(run benchmark.Run, store *benchmark.Store) []Section {
	series := store.Series()
	if len(run.Tables) == 0 {
		name := strings.Join(run.Plans, "+")
		return []Section{{Name: name, Series: series, Tables: DeriveTables(name, series)}}
	}

	var sections []Section
	index := make(map[string]int)
	for _, l := range run.Tables {
		i, ok := index[l.Plan]
		if !ok {
			i = len(sections)
			index[l.Plan] = i
			sections = append(sections, Section{Name: l.Plan})
		}
		sections[i].Tables = append(sections[i].Tables, Table{Title: l.Title, Columns: l.Columns, Precision: l.Precision})
	}
	// Series render before any table, so the first section carries them all.
	sections[0].Series = series
	return sections
}

// ReportWriter renders the GRAPH DATA and AVERAGES sections, flushing after
// every block so long sweeps are observable incrementally.
type ReportWriter struct {
	w      *bufio.Writer
	logger *slog.Logger
}

func NewReportWriter(w io.Writer, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{w: bufio.NewWriter(w), logger: logger}
}

// Progress writes a progress notice.
func (r *ReportWriter) Progress(format string, args ...any) error {
	fmt.Fprintf(r.w, format+"\n", args...)
	return r.w.Flush()
}

// Write renders every section in order: all series blocks first, then all tables.
// Aggregation errors are reported inside the affected block; other blocks still render.
func (r *ReportWriter) Write(store *benchmark.Store, sections []Section) error {
	fmt.Fprintln(r.w, "GRAPH DATA")
	for _, sec := range sections {
		for _, s := range sec.Series {
			if err := r.writeSeries(store, s); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "AVERAGES")
	for _, sec := range sections {
		for _, t := range sec.Tables {
			if err := r.writeTable(store, t); err != nil {
				return err
			}
		}
	}
	return r.w.Flush()
}

func (r *ReportWriter) writeSeries(store *benchmark.Store, s benchmark.Column) error {
	name := s.Label
	if s.Variant != "" {
		name += " (" + s.Variant + ")"
	}
	fmt.Fprintf(r.w, "\n%s\n%s\n", name, strings.Join(benchmark.RenderSeries(store, s.Label, s.Variant), ","))
	return r.w.Flush()
}

func (r *ReportWriter) writeTable(store *benchmark.Store, t Table) error {
	fmt.Fprintf(r.w, "\n%s\n\n", t.Title)
	text, err := benchmark.RenderTable(store, t.Columns, t.Precision)
	if err != nil {
		r.logger.Warn("Table unavailable", "table", t.Title, "error", err)
		fmt.Fprintf(r.w, "unavailable: %v\n", err)
		return r.w.Flush()
	}
	r.w.WriteString(text)
	return r.w.Flush()
}
