package benchmark

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Measurement is a single duration in seconds reported by a benchmark executable.
type Measurement float64

// Kind maps a dataset-kind token understood by an executable to the label
// its results are reported under.
type Kind struct {
	Name  string `json:"kind" yaml:"kind"`
	Label string `json:"label" yaml:"label"`
}

// Target identifies one external benchmark program and the dataset kinds it supports.
// Kinds are kept in declaration order.
type Target struct {
	Name    string
	Command string
	Args    []string
	Kinds   []Kind
}

// NewTarget builds a Target, copying its slices so later edits by the caller
// cannot change it.
func NewTarget(name, command string, args []string, kinds ...Kind) Target {
	return Target{
		Name:    name,
		Command: command,
		Args:    append([]string(nil), args...),
		Kinds:   append([]Kind(nil), kinds...),
	}
}

// Label returns the result label the target reports kind under.
func (t Target) Label(kind string) (string, bool) {
	for _, k := range t.Kinds {
		if k.Name == kind {
			return k.Label, true
		}
	}
	return "", false
}

// Variant is a named input condition for the same (target, size) pair.
// The zero Variant is the single unnamed variant of matrices that do not vary input.
type Variant struct {
	Name string   `json:"name" yaml:"name"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Standard variants of the sorting executables.
var (
	VariantRandom   = Variant{Name: "rand", Args: []string{"-r"}}
	VariantReversed = Variant{Name: "rev"}
)

// RunSpec is one concrete invocation of an external benchmark.
type RunSpec struct {
	Target  Target
	Kind    string
	Label   string
	Size    int
	Variant Variant
	Trial   int
}

// Args returns the command line passed to the executable:
// target args, -d <KIND>, -n <N>, then the variant's args.
func (s RunSpec) Args() []string {
	args := append([]string(nil), s.Target.Args...)
	if s.Kind != "" {
		args = append(args, "-d", s.Kind)
	}
	args = append(args, "-n", strconv.Itoa(s.Size))
	return append(args, s.Variant.Args...)
}

// Key returns where the measurement of s is stored.
func (s RunSpec) Key() ResultKey {
	return ResultKey{Label: s.Label, Size: s.Size, Variant: s.Variant.Name}
}

func (s RunSpec) String() string {
	v := s.Variant.Name
	if v == "" {
		v = "-"
	}
	return fmt.Sprintf("%s/%s n=%d variant=%s trial=%d", s.Target.Name, s.Kind, s.Size, v, s.Trial)
}

// ResultKey identifies where measurements are stored.
type ResultKey struct {
	Label   string `json:"label"`
	Size    int    `json:"size"`
	Variant string `json:"variant,omitempty"`
}

func (k ResultKey) String() string {
	if k.Variant == "" {
		return fmt.Sprintf("%s@%d", k.Label, k.Size)
	}
	return fmt.Sprintf("%s@%d/%s", k.Label, k.Size, k.Variant)
}

// Point is an averaged measurement at one key, as archived after a sweep.
type Point struct {
	Key     ResultKey `json:"key"`
	Average float64   `json:"average"`
	Trials  int       `json:"trials"`
}

// TableLayout is an AVERAGES table archived with a sweep, so reports of old
// sweeps show the tables their plans declared.
type TableLayout struct {
	Plan      string   `json:"plan"`
	Title     string   `json:"title"`
	Columns   []Column `json:"columns"`
	Precision int      `json:"precision"`
}

// Run is a collection of averaged points from a single sweep.
type Run struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Plans     []string      `json:"plans"`
	Commit    string        `json:"commit,omitempty"`
	Points    []Point       `json:"points"`
	Tables    []TableLayout `json:"tables,omitempty"`
}

// RanPlans reports whether the sweep ran exactly plans, in order.
// A nil plans matches every sweep.
func (r Run) RanPlans(plans []string) bool {
	return plans == nil || slices.Equal(r.Plans, plans)
}
