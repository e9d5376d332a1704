package plan

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"benchmatrix/internal/benchmark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `
matrices:
  - name: sorting
    sizes: [1000, 100]
    trials: 3
    variants:
      - name: rand
        args: ["-r"]
      - name: rev
    targets:
      - name: c
        command: ./bin/benchmark_sorting
        kinds:
          - {kind: ARRAY, label: ARRAY}
          - {kind: LIST, label: LIST}
    tables:
      - title: Arrays
        precision: 5
        columns:
          - {header: RANDOM, label: ARRAY, variant: rand}
          - {label: ARRAY, variant: rev}
  - name: stl
    sizes: [10]
    targets:
      - name: cpp
        command: ./bin/benchmark_cpp_ds
        kinds:
          - {kind: ARRAY, label: CPPVEC}
`

func TestDecode(t *testing.T) {
	plans, err := Decode(strings.NewReader(samplePlan))
	require.NoError(t, err)
	require.Len(t, plans, 2)

	sorting := plans[0]
	assert.Equal(t, "sorting", sorting.Name())
	assert.Equal(t, []int{100, 1000}, sorting.Matrix.Sizes)
	assert.Equal(t, 3, sorting.Matrix.Trials)
	assert.Equal(t, []benchmark.Variant{benchmark.VariantRandom, benchmark.VariantReversed}, sorting.Matrix.Variants)
	require.Len(t, sorting.Tables, 1)
	assert.Equal(t, 5, sorting.Tables[0].Precision)
	assert.Equal(t, "ARRAY", sorting.Tables[0].Columns[1].Header)

	stl := plans[1]
	assert.Equal(t, 1, stl.Matrix.Trials)
	assert.Empty(t, stl.Tables)
	assert.Equal(t, []string{"CPPVEC"}, stl.Matrix.Labels())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		contains string
	}{
		{name: "empty", doc: "", contains: "empty"},
		{name: "no matrices", doc: "matrices: []\n", contains: "no matrices"},
		{name: "unknown field", doc: "matrices:\n  - name: x\n    sizez: [1]\n", contains: "sizez"},
		{name: "missing name", doc: "matrices:\n  - sizes: [1]\n", contains: "needs a name"},
		{
			name:     "unsupported kind",
			doc:      "matrices:\n  - name: x\n    sizes: [1]\n    kinds: [QSORT]\n    targets:\n      - {name: t, command: t, kinds: [{kind: ARRAY, label: A}]}\n",
			contains: `does not support dataset kind "QSORT"`,
		},
		{
			name:     "table without columns",
			doc:      "matrices:\n  - name: x\n    sizes: [1]\n    targets:\n      - {name: t, command: t, kinds: [{kind: ARRAY, label: A}]}\n    tables:\n      - title: empty\n",
			contains: "has no columns",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			var cfgErr *benchmark.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadAndEncodeRoundTrip(t *testing.T) {
	f := File{Matrices: []MatrixSpec{{
		Name:  "custom",
		Sizes: []int{10, 100},
		Targets: []TargetSpec{{
			Name:    "prog",
			Command: "./prog",
			Kinds:   []benchmark.Kind{{Name: "ARRAY", Label: "PROG"}},
		}},
	}}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f))

	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	plans, err := Load(path)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"PROG"}, plans[0].Matrix.Labels())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
