// Package plan loads benchmark plans from YAML files.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"benchmatrix/internal/benchmark"
	"benchmatrix/internal/harness"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a plan file.
type File struct {
	Matrices []MatrixSpec `yaml:"matrices"`
}

type MatrixSpec struct {
	Name     string              `yaml:"name"`
	Sizes    []int               `yaml:"sizes"`
	Trials   int                 `yaml:"trials,omitempty"`
	Kinds    []string            `yaml:"kinds,omitempty"`
	Variants []benchmark.Variant `yaml:"variants,omitempty"`
	Targets  []TargetSpec        `yaml:"targets"`
	Tables   []TableSpec         `yaml:"tables,omitempty"`
}

type TargetSpec struct {
	Name    string           `yaml:"name"`
	Command string           `yaml:"command"`
	Args    []string         `yaml:"args,omitempty"`
	Kinds   []benchmark.Kind `yaml:"kinds"`
}

type TableSpec struct {
	Title     string       `yaml:"title"`
	Precision *int         `yaml:"precision,omitempty"`
	Columns   []ColumnSpec `yaml:"columns"`
}

type ColumnSpec struct {
	Header  string `yaml:"header"`
	Label   string `yaml:"label"`
	Variant string `yaml:"variant,omitempty"`
}

// Load reads and decodes the plan file at path.
func Load(path string) ([]harness.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a plan document. Unknown fields are rejected.
func Decode(r io.Reader) ([]harness.Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &benchmark.ConfigurationError{Reason: "plan file is empty"}
		}
		return nil, &benchmark.ConfigurationError{Reason: fmt.Sprintf("invalid plan file: %v", err)}
	}
	return f.Plans()
}

// Plans builds validated plans from the file.
func (f File) Plans() ([]harness.Plan, error) {
	if len(f.Matrices) == 0 {
		return nil, &benchmark.ConfigurationError{Reason: "plan file defines no matrices"}
	}
	plans := make([]harness.Plan, 0, len(f.Matrices))
	for i, ms := range f.Matrices {
		p, err := ms.plan()
		if err != nil {
			return nil, fmt.Errorf("matrix %d: %w", i, err)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (ms MatrixSpec) plan() (harness.Plan, error) {
	if ms.Name == "" {
		return harness.Plan{}, &benchmark.ConfigurationError{Reason: "matrix needs a name"}
	}
	targets := make([]benchmark.Target, 0, len(ms.Targets))
	for _, ts := range ms.Targets {
		targets = append(targets, benchmark.NewTarget(ts.Name, ts.Command, ts.Args, ts.Kinds...))
	}
	m, err := benchmark.NewMatrix(ms.Name, targets, ms.Sizes, ms.Kinds, ms.Variants, ms.Trials)
	if err != nil {
		return harness.Plan{}, err
	}

	p := harness.Plan{Matrix: m}
	for _, ts := range ms.Tables {
		if len(ts.Columns) == 0 {
			return harness.Plan{}, &benchmark.ConfigurationError{Reason: fmt.Sprintf("table %q has no columns", ts.Title)}
		}
		t := harness.Table{Title: ts.Title, Precision: harness.TablePrecision}
		if ts.Precision != nil {
			t.Precision = *ts.Precision
		}
		for _, cs := range ts.Columns {
			header := cs.Header
			if header == "" {
				header = cs.Label
			}
			t.Columns = append(t.Columns, benchmark.Column{Header: header, Label: cs.Label, Variant: cs.Variant})
		}
		p.Tables = append(p.Tables, t)
	}
	return p, nil
}

// Encode writes f as YAML.
func Encode(w io.Writer, f File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}
