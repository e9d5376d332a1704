package harness

import (
	"path/filepath"
	"testing"

	"benchmatrix/internal/benchmark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreset_Sorting(t *testing.T) {
	p, err := Preset("sorting", "/opt/bin", 2)
	require.NoError(t, err)

	m := p.Matrix
	assert.Equal(t, "sorting", p.Name())
	assert.Equal(t, []int{100, 1000, 10000, 100000, 1000000, 10000000}, m.Sizes)
	assert.Equal(t, []string{"ARRAY", "LIST"}, m.Labels())
	assert.Equal(t, 6*2*2*2, m.Len())

	var first benchmark.RunSpec
	for spec := range m.Specs() {
		first = spec
		break
	}
	assert.Equal(t, filepath.Join("/opt/bin", "benchmark_sorting"), first.Target.Command)
	assert.Equal(t, []string{"-d", "ARRAY", "-n", "100", "-r"}, first.Args())

	tables := p.TablesOrDefault()
	require.Len(t, tables, 2)
	assert.Equal(t, "ARRAY", tables[0].Title)
	assert.Equal(t, []benchmark.Column{
		{Header: "RANDOM", Label: "ARRAY", Variant: "rand"},
		{Header: "REVERSED", Label: "ARRAY", Variant: "rev"},
	}, tables[0].Columns)
	assert.Equal(t, "LIST", tables[1].Title)
}

func TestPreset_Structures(t *testing.T) {
	p, err := Preset("structures", "bin", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"CVEC", "CLIST", "QSORTARR", "CPPVEC", "CPPLIST"}, p.Matrix.Labels())
	assert.Equal(t, []int{1000, 10000, 100000, 1000000}, p.Matrix.Sizes)

	commands := map[string]string{
		"CVEC":     filepath.Join("bin", "benchmark_c_ds"),
		"CLIST":    filepath.Join("bin", "benchmark_c_ds"),
		"QSORTARR": filepath.Join("bin", "benchmark_c_ds"),
		"CPPVEC":   filepath.Join("bin", "benchmark_cpp_ds"),
		"CPPLIST":  filepath.Join("bin", "benchmark_cpp_ds"),
	}
	kinds := map[string]string{"CVEC": "ARRAY", "CLIST": "LIST", "QSORTARR": "QSORT", "CPPVEC": "ARRAY", "CPPLIST": "LIST"}
	seen := make(map[string]bool)
	for spec := range p.Matrix.Specs() {
		if spec.Size != 1000 {
			break
		}
		seen[spec.Label] = true
		assert.Equal(t, commands[spec.Label], spec.Target.Command, spec.Label)
		// Neither executable accepts -r.
		assert.Equal(t, []string{"-d", kinds[spec.Label], "-n", "1000"}, spec.Args(), spec.Label)
	}
	assert.Len(t, seen, 5)

	tables := p.TablesOrDefault()
	require.Len(t, tables, 1)
	assert.Equal(t, "structures", tables[0].Title)
	assert.Len(t, tables[0].Columns, 5)
	assert.Equal(t, "QSORTARR", tables[0].Columns[2].Header)
}

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("graphs", "bin", 1)
	var cfgErr *benchmark.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "sorting")

	_, err = Preset("sorting", "bin", -2)
	assert.ErrorAs(t, err, &cfgErr)

	assert.Equal(t, []string{"sorting", "structures"}, PresetNames())
}

func TestDeriveTables_CustomVariantHeaders(t *testing.T) {
	tables := DeriveTables("ignored", []benchmark.Column{
		{Label: "L", Variant: "sorted"},
		{Label: "L", Variant: "rand"},
	})
	require.Len(t, tables, 1)
	assert.Equal(t, "L", tables[0].Title)
	assert.Equal(t, "SORTED", tables[0].Columns[0].Header)
	assert.Equal(t, "RANDOM", tables[0].Columns[1].Header)
	assert.Equal(t, TablePrecision, tables[0].Precision)
}
