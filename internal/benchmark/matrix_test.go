package benchmark

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	started  []RunSpec
	failed   []RunSpec
	finished []int
}

func (o *recordingObserver) RunStarted(_ int, spec RunSpec)   { o.started = append(o.started, spec) }
func (o *recordingObserver) RunFinished(RunSpec, Measurement) {}
func (o *recordingObserver) RunFailed(spec RunSpec, _ error)  { o.failed = append(o.failed, spec) }
func (o *recordingObserver) SizeFinished(size int)            { o.finished = append(o.finished, size) }

func constRunner(v Measurement) Runner {
	return RunnerFunc(func(context.Context, string, []string) (Measurement, error) {
		return v, nil
	})
}

func twoByTwo(t *testing.T, trials int) *Matrix {
	t.Helper()
	a := NewTarget("A", "a", nil, Kind{Name: "X", Label: "AX"}, Kind{Name: "Y", Label: "AY"})
	b := NewTarget("B", "b", nil, Kind{Name: "X", Label: "BX"}, Kind{Name: "Y", Label: "BY"})
	m, err := NewMatrix("order", []Target{a, b}, []int{20, 10}, []string{"X", "Y"}, nil, trials)
	require.NoError(t, err)
	return m
}

func TestMatrix_EnumerationOrder(t *testing.T) {
	m := twoByTwo(t, 1)

	var got []string
	for spec := range m.Specs() {
		got = append(got, fmt.Sprintf("(%d,%s,%s)", spec.Size, spec.Target.Name, spec.Kind))
	}
	assert.Equal(t, []string{
		"(10,A,X)", "(10,A,Y)", "(10,B,X)", "(10,B,Y)",
		"(20,A,X)", "(20,A,Y)", "(20,B,X)", "(20,B,Y)",
	}, got)
	assert.Equal(t, 8, m.Len())
}

func TestMatrix_TrialsAreInnermost(t *testing.T) {
	m := twoByTwo(t, 2)

	var got []string
	for spec := range m.Specs() {
		got = append(got, fmt.Sprintf("%d%s%s%d", spec.Size, spec.Target.Name, spec.Kind, spec.Trial))
	}
	require.Len(t, got, 16)
	assert.Equal(t, []string{"10AX0", "10AX1", "10AY0", "10AY1"}, got[:4])

	// Iterable more than once.
	n := 0
	for range m.Specs() {
		n++
	}
	assert.Equal(t, 16, n)
}

func TestMatrix_VariantsBeforeTrials(t *testing.T) {
	target := NewTarget("sort", "s", nil, Kind{Name: "ARRAY", Label: "ARRAY"})
	m, err := NewMatrix("v", []Target{target}, []int{100}, nil, []Variant{VariantRandom, VariantReversed}, 2)
	require.NoError(t, err)

	var got []string
	for spec := range m.Specs() {
		got = append(got, fmt.Sprintf("%s%d", spec.Variant.Name, spec.Trial))
	}
	assert.Equal(t, []string{"rand0", "rand1", "rev0", "rev1"}, got)
}

func TestNewMatrix_ConfigurationErrors(t *testing.T) {
	good := NewTarget("A", "a", nil, Kind{Name: "X", Label: "LX"})
	tests := []struct {
		name     string
		targets  []Target
		sizes    []int
		kinds    []string
		variants []Variant
		trials   int
		contains string
	}{
		{name: "unsupported kind", targets: []Target{good}, sizes: []int{10}, kinds: []string{"QSORT"}, contains: `does not support dataset kind "QSORT"`},
		{name: "no targets", sizes: []int{10}, contains: "no targets"},
		{name: "no sizes", targets: []Target{good}, contains: "no input sizes"},
		{name: "zero size", targets: []Target{good}, sizes: []int{0, 10}, contains: "must be positive"},
		{name: "duplicate size", targets: []Target{good}, sizes: []int{10, 10}, contains: "duplicate input size"},
		{name: "negative trials", targets: []Target{good}, sizes: []int{10}, trials: -1, contains: "trial count"},
		{name: "duplicate variant", targets: []Target{good}, sizes: []int{10}, variants: []Variant{VariantRandom, VariantRandom}, contains: "duplicate variant"},
		{name: "no kinds", targets: []Target{NewTarget("B", "b", nil)}, sizes: []int{10}, contains: "declares no dataset kinds"},
		{
			name: "label collision",
			targets: []Target{
				good,
				NewTarget("B", "b", nil, Kind{Name: "X", Label: "LX"}),
			},
			sizes:    []int{10},
			contains: `result label "LX"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatrix("m", tt.targets, tt.sizes, tt.kinds, tt.variants, tt.trials)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestMatrix_ExecuteStubbedRunner(t *testing.T) {
	target := NewTarget("A", "a", nil, Kind{Name: "X", Label: "LX"})
	m, err := NewMatrix("e2e", []Target{target}, []int{10, 20}, nil, nil, 2)
	require.NoError(t, err)

	store := NewStore()
	obs := &recordingObserver{}
	report, err := m.Execute(context.Background(), constRunner(1.5), store, obs)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Runs)
	assert.Empty(t, report.Failures)
	assert.Equal(t, []int{10, 20}, obs.finished)
	assert.Equal(t, []string{"1.500", "1.500"}, RenderSeries(store, "LX", ""))

	avg, err := Average(store, ResultKey{Label: "LX", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, Measurement(1.5), avg)
}

func TestMatrix_ExecuteRecordsGaps(t *testing.T) {
	a := NewTarget("A", "a", nil, Kind{Name: "X", Label: "AX"}, Kind{Name: "Y", Label: "AY"})
	b := NewTarget("B", "b", nil, Kind{Name: "X", Label: "BX"}, Kind{Name: "Y", Label: "BY"})
	m, err := NewMatrix("gaps", []Target{a, b}, []int{10, 20}, nil, nil, 1)
	require.NoError(t, err)

	runner := RunnerFunc(func(_ context.Context, command string, args []string) (Measurement, error) {
		if command == "b" && args[1] == "Y" && args[3] == "20" {
			return 0, &ExecutionError{Command: command, ExitCode: 139}
		}
		return 2, nil
	})

	store := NewStore()
	obs := &recordingObserver{}
	report, err := m.Execute(context.Background(), runner, store, obs)
	require.NoError(t, err)

	assert.Equal(t, 8, report.Runs)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "BY", report.Failures[0].Spec.Label)
	assert.Len(t, obs.failed, 1)

	assert.Equal(t, []string{"2.000", Gap}, RenderSeries(store, "BY", ""))
	assert.Equal(t, []string{"2.000", "2.000"}, RenderSeries(store, "AX", ""))
	assert.Equal(t, []ResultKey{{Label: "BY", Size: 20}}, store.Gaps())

	_, err = Average(store, ResultKey{Label: "BY", Size: 20})
	var noData *NoDataError
	assert.ErrorAs(t, err, &noData)
}

func TestMatrix_ExecuteAbortsOnCancel(t *testing.T) {
	m := twoByTwo(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	runner := RunnerFunc(func(context.Context, string, []string) (Measurement, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return 1, nil
	})

	store := NewStore()
	report, err := m.Execute(ctx, runner, store, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 3, report.Runs)
	assert.Len(t, store.Keys(), 8)
	assert.Len(t, store.Gaps(), 5)
}

func TestMatrix_AbortKeepsSizeAxis(t *testing.T) {
	target := NewTarget("a", "a", nil, Kind{Name: "X", Label: "LX"})
	m, err := NewMatrix("axis", []Target{target}, []int{10, 20, 30}, nil, nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runner := RunnerFunc(func(context.Context, string, []string) (Measurement, error) {
		cancel()
		return 1, nil
	})

	store := NewStore()
	_, err = m.Execute(ctx, runner, store, nil)
	require.ErrorIs(t, err, ErrAborted)

	assert.Equal(t, []string{"1.000", Gap, Gap}, RenderSeries(store, "LX", ""))
	assert.Equal(t, []ResultKey{{Label: "LX", Size: 20}, {Label: "LX", Size: 30}}, store.Gaps())
}

func TestMatrix_Register(t *testing.T) {
	m := twoByTwo(t, 3)
	store := NewStore()
	stale := ResultKey{Label: "AX", Size: 10}
	store.Add(stale, 9)

	m.Register(store)
	assert.Empty(t, store.Get(stale))
	assert.Len(t, store.Keys(), 8)
	assert.Equal(t, store.Keys(), store.Gaps())
}

func TestMatrix_ExecuteRejectsInvalidMatrix(t *testing.T) {
	m := &Matrix{Name: "bad", Sizes: []int{10}, Trials: 1}
	calls := 0
	runner := RunnerFunc(func(context.Context, string, []string) (Measurement, error) {
		calls++
		return 1, nil
	})
	_, err := m.Execute(context.Background(), runner, NewStore(), nil)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, calls)
}

func TestMatrix_Labels(t *testing.T) {
	m := twoByTwo(t, 1)
	assert.Equal(t, []string{"AX", "AY", "BX", "BY"}, m.Labels())
}
