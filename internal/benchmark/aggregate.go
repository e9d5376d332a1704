package benchmark

import (
	"fmt"
	"strconv"
	"strings"
)

// SeriesPrecision is the number of decimals in graph-data series.
const SeriesPrecision = 3

// Gap is the sentinel rendered for a missing series point.
const Gap = ""

// minCellWidth matches the column width of the original report tables.
const minCellWidth = 10

// Column selects the measurements shown in one table column.
type Column struct {
	Header  string `json:"header" yaml:"header"`
	Label   string `json:"label" yaml:"label"`
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
}

// Average returns the arithmetic mean of every trial recorded under key.
func Average(store *Store, key ResultKey) (Measurement, error) {
	values := store.values[key]
	if len(values) == 0 {
		return 0, &NoDataError{Key: key}
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return Measurement(sum / float64(len(values))), nil
}

// RenderSeries formats the averaged measurement of label/variant at every
// expected input size, ascending. A size without data renders as Gap so the
// result stays aligned with the size axis.
func RenderSeries(store *Store, label, variant string) []string {
	sizes := store.Sizes(label, variant)
	out := make([]string, len(sizes))
	for i, n := range sizes {
		avg, err := Average(store, ResultKey{Label: label, Size: n, Variant: variant})
		if err != nil {
			out[i] = Gap
			continue
		}
		out[i] = strconv.FormatFloat(float64(avg), 'f', SeriesPrecision, 64)
	}
	return out
}

// RenderTable renders a Markdown pipe table with one row per input size and
// one right-aligned column per requested column. Cells without data show N/A;
// a column without any data is a MissingColumnError.
func RenderTable(store *Store, columns []Column, precision int) (string, error) {
	if precision < 0 {
		precision = 0
	}

	var sizes []int
	for _, c := range columns {
		colSizes := store.Sizes(c.Label, c.Variant)
		hasData := false
		for _, n := range colSizes {
			if len(store.values[ResultKey{Label: c.Label, Size: n, Variant: c.Variant}]) > 0 {
				hasData = true
			}
			sizes = mergeSize(sizes, n)
		}
		if !hasData {
			return "", &MissingColumnError{Column: c}
		}
	}

	header := []string{"N"}
	for _, c := range columns {
		header = append(header, c.Header)
	}
	rows := make([][]string, len(sizes))
	for i, n := range sizes {
		row := []string{strconv.Itoa(n)}
		for _, c := range columns {
			avg, err := Average(store, ResultKey{Label: c.Label, Size: n, Variant: c.Variant})
			if err != nil {
				row = append(row, "N/A")
				continue
			}
			row = append(row, strconv.FormatFloat(float64(avg), 'f', precision, 64))
		}
		rows[i] = row
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = max(minCellWidth, len(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	writeRow(&b, header, widths)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(&b, row, widths)
	}
	return b.String(), nil
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteString("|")
	for i, cell := range cells {
		fmt.Fprintf(b, " %*s |", widths[i], cell)
	}
	b.WriteString("\n")
}

func mergeSize(sizes []int, n int) []int {
	for i, s := range sizes {
		if s == n {
			return sizes
		}
		if s > n {
			return append(sizes[:i], append([]int{n}, sizes[i:]...)...)
		}
	}
	return append(sizes, n)
}
