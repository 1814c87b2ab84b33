// Package partition checks that a set of half-open intervals covers the
// whole real line exactly once.
package partition

import (
	"math"
	"slices"

	"cloud.google.com/go/civil"
)

// Segment is the half-open interval [Left, Right). Unbounded ends use
// math.Inf(-1) and math.Inf(1).
type Segment struct {
	Left  float64
	Right float64
}

// IsPartition reports whether segments, in any order, tile the real line
// with no gap and no overlap. An empty set never does.
func IsPartition(segments []Segment) bool {
	if len(segments) == 0 {
		return false
	}
	sorted := slices.Clone(segments)
	slices.SortStableFunc(sorted, compareSegments)

	if !math.IsInf(sorted[0].Left, -1) {
		return false
	}
	if !math.IsInf(sorted[len(sorted)-1].Right, 1) {
		return false
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Right != sorted[i].Left {
			return false
		}
	}
	return true
}

// compareSegments orders by left bound, then by right bound.
func compareSegments(a, b Segment) int {
	switch {
	case a.Left < b.Left:
		return -1
	case a.Left > b.Left:
		return 1
	case a.Right < b.Right:
		return -1
	case a.Right > b.Right:
		return 1
	}
	return 0
}

// DatePair is a half-open date range [Left, Right). A nil Left is -inf and
// a nil Right is +inf.
type DatePair struct {
	Left  *civil.Date
	Right *civil.Date
}

var ordinalOrigin = civil.Date{Year: 1, Month: 1, Day: 1}

// Ordinal returns the proleptic Gregorian day number of d, 0001-01-01 being 1.
func Ordinal(d civil.Date) int {
	return d.DaysSince(ordinalOrigin) + 1
}

// IsDatePartition converts each pair to ordinal day numbers and reports
// whether the resulting segments form a partition.
func IsDatePartition(pairs []DatePair) bool {
	segments := make([]Segment, 0, len(pairs))
	for _, p := range pairs {
		segments = append(segments, toSegment(p))
	}
	return IsPartition(segments)
}

func toSegment(p DatePair) Segment {
	s := Segment{Left: math.Inf(-1), Right: math.Inf(1)}
	if p.Left != nil {
		s.Left = float64(Ordinal(*p.Left))
	}
	if p.Right != nil {
		s.Right = float64(Ordinal(*p.Right))
	}
	return s
}
