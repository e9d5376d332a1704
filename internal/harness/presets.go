package harness

import (
	"fmt"
	"path/filepath"
	"sort"

	"benchmatrix/internal/benchmark"
)

// Plan is one matrix to execute plus the tables summarizing it.
type Plan struct {
	Matrix *benchmark.Matrix
	Tables []Table
}

// Name is the name of the plan's matrix.
func (p Plan) Name() string {
	return p.Matrix.Name
}

// Series lists every (label, variant) pair the plan produces, in enumeration order.
func (p Plan) Series() []benchmark.Column {
	var out []benchmark.Column
	seen := make(map[benchmark.Column]bool)
	for spec := range p.Matrix.Specs() {
		c := benchmark.Column{Header: spec.Label, Label: spec.Label, Variant: spec.Variant.Name}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
		if spec.Size != p.Matrix.Sizes[0] {
			break
		}
	}
	return out
}

// TablesOrDefault returns the plan's tables, deriving them when none are set.
func (p Plan) TablesOrDefault() []Table {
	if len(p.Tables) > 0 {
		return p.Tables
	}
	return DeriveTables(p.Name(), p.Series())
}

var presets = map[string]func(binDir string, trials int) (Plan, error){
	"sorting":    sortingPreset,
	"structures": structuresPreset,
}

// PresetNames lists the built-in plans.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset builds a built-in plan with executables under binDir.
func Preset(name, binDir string, trials int) (Plan, error) {
	build, ok := presets[name]
	if !ok {
		return Plan{}, &benchmark.ConfigurationError{Reason: fmt.Sprintf("unknown preset %q (available: %v)", name, PresetNames())}
	}
	return build(binDir, trials)
}

// sortingPreset sorts arrays and lists of random and reversed input.
func sortingPreset(binDir string, trials int) (Plan, error) {
	target := benchmark.NewTarget("benchmark_sorting", filepath.Join(binDir, "benchmark_sorting"), nil,
		benchmark.Kind{Name: "ARRAY", Label: "ARRAY"},
		benchmark.Kind{Name: "LIST", Label: "LIST"},
	)
	m, err := benchmark.NewMatrix("sorting",
		[]benchmark.Target{target},
		[]int{100, 1000, 10000, 100000, 1000000, 10000000},
		nil,
		[]benchmark.Variant{benchmark.VariantRandom, benchmark.VariantReversed},
		trials,
	)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Matrix: m}, nil
}

// structuresPreset compares the C containers and qsort against the C++ STL.
// Both executables always randomize their input and reject -r, so the
// matrix has no variants.
func structuresPreset(binDir string, trials int) (Plan, error) {
	c := benchmark.NewTarget("benchmark_c_ds", filepath.Join(binDir, "benchmark_c_ds"), nil,
		benchmark.Kind{Name: "ARRAY", Label: "CVEC"},
		benchmark.Kind{Name: "LIST", Label: "CLIST"},
		benchmark.Kind{Name: "QSORT", Label: "QSORTARR"},
	)
	cpp := benchmark.NewTarget("benchmark_cpp_ds", filepath.Join(binDir, "benchmark_cpp_ds"), nil,
		benchmark.Kind{Name: "ARRAY", Label: "CPPVEC"},
		benchmark.Kind{Name: "LIST", Label: "CPPLIST"},
	)
	m, err := benchmark.NewMatrix("structures",
		[]benchmark.Target{c, cpp},
		[]int{1000, 10000, 100000, 1000000},
		nil, nil, trials,
	)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Matrix: m}, nil
}
