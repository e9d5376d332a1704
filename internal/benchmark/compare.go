package benchmark

import "fmt"

// Comparison is the change of one averaged point between two sweeps.
type Comparison struct {
	Key  ResultKey
	Diff float64 // Percentage change, positive is slower
	Prev Point
	Curr Point
}

// Compare returns comparisons for points measured in both runs, in curr's
// order. Gaps on either side are skipped.
func Compare(prev, curr Run) []Comparison {
	prevMap := make(map[ResultKey]Point)
	for _, p := range prev.Points {
		if p.Trials > 0 {
			prevMap[p.Key] = p
		}
	}

	var comparisons []Comparison
	for _, c := range curr.Points {
		p, ok := prevMap[c.Key]
		if !ok || c.Trials == 0 {
			continue
		}
		comp := Comparison{Key: c.Key, Prev: p, Curr: c}
		if p.Average > 0 {
			comp.Diff = (c.Average - p.Average) / p.Average * 100
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

// Regressions returns the comparisons slower than threshold percent.
func Regressions(comps []Comparison, threshold float64) []Comparison {
	var out []Comparison
	for _, c := range comps {
		if c.Diff > threshold {
			out = append(out, c)
		}
	}
	return out
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: %+.2f%%", c.Key, c.Diff)
}
