package benchmark

import (
	"context"
	"fmt"
	"iter"
	"slices"
)

// Matrix is the cartesian product of targets, dataset kinds, input sizes,
// variants and trials to run.
type Matrix struct {
	Name     string
	Targets  []Target
	Sizes    []int
	Kinds    []string // empty means every kind of each target
	Variants []Variant
	Trials   int
}

// NewMatrix validates the configuration and returns a matrix whose sizes are
// sorted ascending. Every target must support every requested kind.
func NewMatrix(name string, targets []Target, sizes []int, kinds []string, variants []Variant, trials int) (*Matrix, error) {
	m := &Matrix{
		Name:     name,
		Targets:  slices.Clone(targets),
		Sizes:    slices.Clone(sizes),
		Kinds:    slices.Clone(kinds),
		Variants: slices.Clone(variants),
		Trials:   trials,
	}
	if m.Trials == 0 {
		m.Trials = 1
	}
	if len(m.Variants) == 0 {
		m.Variants = []Variant{{}}
	}
	slices.Sort(m.Sizes)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports the first problem that would make the matrix unrunnable.
func (m *Matrix) Validate() error {
	if len(m.Targets) == 0 {
		return configErrorf("matrix %q has no targets", m.Name)
	}
	if len(m.Sizes) == 0 {
		return configErrorf("matrix %q has no input sizes", m.Name)
	}
	for i, n := range m.Sizes {
		if n <= 0 {
			return configErrorf("matrix %q: input size must be positive, got %d", m.Name, n)
		}
		if i > 0 && m.Sizes[i-1] == n {
			return configErrorf("matrix %q: duplicate input size %d", m.Name, n)
		}
		if i > 0 && m.Sizes[i-1] > n {
			return configErrorf("matrix %q: input sizes must be ascending", m.Name)
		}
	}
	if m.Trials < 1 {
		return configErrorf("matrix %q: trial count must be at least 1, got %d", m.Name, m.Trials)
	}

	variants := make(map[string]bool)
	for _, v := range m.Variants {
		if variants[v.Name] {
			return configErrorf("matrix %q: duplicate variant %q", m.Name, v.Name)
		}
		variants[v.Name] = true
	}

	labels := make(map[string]string)
	names := make(map[string]bool)
	for _, t := range m.Targets {
		if t.Name == "" || t.Command == "" {
			return configErrorf("matrix %q: target needs a name and a command", m.Name)
		}
		if names[t.Name] {
			return configErrorf("matrix %q: duplicate target %q", m.Name, t.Name)
		}
		names[t.Name] = true
		if len(t.Kinds) == 0 {
			return configErrorf("target %q declares no dataset kinds", t.Name)
		}
		for _, kind := range m.kindsOf(t) {
			label, ok := t.Label(kind)
			if !ok {
				return configErrorf("target %q does not support dataset kind %q", t.Name, kind)
			}
			if label == "" {
				return configErrorf("target %q: kind %q has no result label", t.Name, kind)
			}
			if owner, dup := labels[label]; dup && owner != t.Name+"/"+kind {
				return configErrorf("result label %q produced by both %s and %s/%s", label, owner, t.Name, kind)
			}
			labels[label] = t.Name + "/" + kind
		}
	}
	return nil
}

func (m *Matrix) kindsOf(t Target) []string {
	if len(m.Kinds) > 0 {
		return m.Kinds
	}
	kinds := make([]string, len(t.Kinds))
	for i, k := range t.Kinds {
		kinds[i] = k.Name
	}
	return kinds
}

// Labels returns every result label the matrix produces, in enumeration order.
func (m *Matrix) Labels() []string {
	var labels []string
	for _, t := range m.Targets {
		for _, kind := range m.kindsOf(t) {
			if label, ok := t.Label(kind); ok && !slices.Contains(labels, label) {
				labels = append(labels, label)
			}
		}
	}
	return labels
}

// Len is the number of RunSpecs one traversal yields.
func (m *Matrix) Len() int {
	n := 0
	for _, t := range m.Targets {
		n += len(m.kindsOf(t))
	}
	return n * len(m.Sizes) * len(m.variants()) * m.Trials
}

func (m *Matrix) variants() []Variant {
	if len(m.Variants) == 0 {
		return []Variant{{}}
	}
	return m.Variants
}

// Specs enumerates the matrix: input size ascending, then target, then
// dataset kind, then variant, then trial. The order fixes table and series
// ordering and must stay stable for output diffing. Each call starts a new
// traversal.
func (m *Matrix) Specs() iter.Seq[RunSpec] {
	return func(yield func(RunSpec) bool) {
		for _, n := range m.Sizes {
			for _, t := range m.Targets {
				for _, kind := range m.kindsOf(t) {
					label, _ := t.Label(kind)
					for _, v := range m.variants() {
						for trial := 0; trial < m.Trials; trial++ {
							spec := RunSpec{Target: t, Kind: kind, Label: label, Size: n, Variant: v, Trial: trial}
							if !yield(spec) {
								return
							}
						}
					}
				}
			}
		}
	}
}

// Observer is notified while a matrix executes.
type Observer interface {
	RunStarted(index int, spec RunSpec)
	RunFinished(spec RunSpec, m Measurement)
	RunFailed(spec RunSpec, err error)
	SizeFinished(size int)
}

// Failure is a RunSpec that produced no measurement.
type Failure struct {
	Spec RunSpec
	Err  error
}

// Report summarizes one matrix execution.
type Report struct {
	Runs     int
	Failures []Failure
}

// Execute runs every RunSpec sequentially and records measurements into store.
//
// A per-run failure is recorded as a gap and reported to obs; it never stops
// the sweep. Cancellation of ctx stops before the next RunSpec and returns an
// error wrapping ErrAborted together with the partial report.
func (m *Matrix) Execute(ctx context.Context, runner Runner, store *Store, obs Observer) (Report, error) {
	var report Report
	if err := m.Validate(); err != nil {
		return report, err
	}

	m.Register(store)

	index := 0
	current := m.Sizes[0]
	for spec := range m.Specs() {
		if spec.Size != current {
			notifySize(obs, current)
			current = spec.Size
		}
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w before %s: %w", ErrAborted, spec, err)
		}

		if obs != nil {
			obs.RunStarted(index, spec)
		}
		index++
		report.Runs++

		v, err := runner.Run(ctx, spec.Target.Command, spec.Args())
		if err != nil {
			if ctx.Err() != nil {
				return report, fmt.Errorf("%w during %s: %w", ErrAborted, spec, ctx.Err())
			}
			report.Failures = append(report.Failures, Failure{Spec: spec, Err: err})
			if obs != nil {
				obs.RunFailed(spec, err)
			}
			continue
		}
		store.Add(spec.Key(), v)
		if obs != nil {
			obs.RunFinished(spec, v)
		}
	}
	notifySize(obs, current)
	return report, nil
}

// Register drops earlier measurements of every key the matrix produces and
// expects them all in store, so series keep one entry per input size even
// when the sweep stops before reaching a key.
func (m *Matrix) Register(store *Store) {
	for k := range m.keys() {
		store.Reset(k)
		store.Expect(k)
	}
}

func (m *Matrix) keys() iter.Seq[ResultKey] {
	return func(yield func(ResultKey) bool) {
		for spec := range m.Specs() {
			if spec.Trial == 0 && !yield(spec.Key()) {
				return
			}
		}
	}
}

func notifySize(obs Observer, size int) {
	if obs != nil {
		obs.SizeFinished(size)
	}
}
