package benchmark

import (
	"slices"
	"sort"
)

// Store holds the measurements of one harness invocation keyed by ResultKey.
//
// Keys are registered with Expect before their run starts, so a key whose runs
// all failed is still known to the store and renders as a gap. Measurements of
// a key keep trial order. Store is owned by the single goroutine driving the
// sweep and does no locking.
type Store struct {
	expected []ResultKey
	known    map[ResultKey]bool
	values   map[ResultKey][]Measurement
}

func NewStore() *Store {
	return &Store{
		known:  make(map[ResultKey]bool),
		values: make(map[ResultKey][]Measurement),
	}
}

// Expect registers key as part of the sweep without recording a measurement.
func (s *Store) Expect(key ResultKey) {
	if s.known[key] {
		return
	}
	s.known[key] = true
	s.expected = append(s.expected, key)
}

// Add records one trial's measurement under key.
func (s *Store) Add(key ResultKey, m Measurement) {
	s.Expect(key)
	s.values[key] = append(s.values[key], m)
}

// Reset drops every measurement of key so an idempotent re-run overwrites
// instead of merging with an earlier sweep.
func (s *Store) Reset(key ResultKey) {
	delete(s.values, key)
}

// Get returns a copy of the measurements recorded under key.
func (s *Store) Get(key ResultKey) []Measurement {
	return slices.Clone(s.values[key])
}

// Keys returns every expected key in registration order.
func (s *Store) Keys() []ResultKey {
	return slices.Clone(s.expected)
}

// Gaps returns expected keys without any measurement, in registration order.
func (s *Store) Gaps() []ResultKey {
	var gaps []ResultKey
	for _, k := range s.expected {
		if len(s.values[k]) == 0 {
			gaps = append(gaps, k)
		}
	}
	return gaps
}

// Sizes returns the ascending input sizes expected for label and variant.
func (s *Store) Sizes(label, variant string) []int {
	var sizes []int
	for _, k := range s.expected {
		if k.Label == label && k.Variant == variant && !slices.Contains(sizes, k.Size) {
			sizes = append(sizes, k.Size)
		}
	}
	sort.Ints(sizes)
	return sizes
}

// AllSizes returns the ascending union of every expected input size.
func (s *Store) AllSizes() []int {
	var sizes []int
	for _, k := range s.expected {
		if !slices.Contains(sizes, k.Size) {
			sizes = append(sizes, k.Size)
		}
	}
	sort.Ints(sizes)
	return sizes
}

// Series lists each distinct (label, variant) pair in registration order.
func (s *Store) Series() []Column {
	var cols []Column
	seen := make(map[Column]bool)
	for _, k := range s.expected {
		c := Column{Header: k.Label, Label: k.Label, Variant: k.Variant}
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return cols
}

// Points averages every expected key in registration order. A key without
// data becomes a point with zero trials so archived series keep their gaps.
func (s *Store) Points() []Point {
	points := make([]Point, 0, len(s.expected))
	for _, k := range s.expected {
		avg, err := Average(s, k)
		if err != nil {
			points = append(points, Point{Key: k})
			continue
		}
		points = append(points, Point{Key: k, Average: float64(avg), Trials: len(s.values[k])})
	}
	return points
}

// StoreFromPoints rebuilds a store holding one averaged measurement per
// archived point. Points without trials are expected but hold no data.
func StoreFromPoints(points []Point) *Store {
	s := NewStore()
	for _, p := range points {
		if p.Trials == 0 {
			s.Expect(p.Key)
			continue
		}
		s.Add(p.Key, Measurement(p.Average))
	}
	return s
}
