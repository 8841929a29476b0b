// Package stats computes grouped statistics over trade records. It is the
// single reducer implementation shared by the in-memory trade log and by
// every analytics fallback path.
package stats

import (
	"math"

	"github.com/efreitasn/marketboard/internal/domain"
)

// Sum returns the sum of xs.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// Min returns the smallest value of xs, or 0 if xs is empty.
func Min(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Max returns the largest value of xs, or 0 if xs is empty.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Mean returns sum(xs)/n, or 0 if xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return Sum(xs) / float64(len(xs))
}

// PopulationStdDev returns sqrt(sum((x - mean)^2) / n).
// Empty input yields 0.
func PopulationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(sumSquaredDeviations(xs) / float64(len(xs)))
}

// SampleStdDev returns sqrt(sum((x - mean)^2) / (n - 1)).
// It is undefined for n <= 1 and yields 0 there.
func SampleStdDev(xs []float64) float64 {
	if len(xs) <= 1 {
		return 0
	}
	return math.Sqrt(sumSquaredDeviations(xs) / float64(len(xs)-1))
}

// sumSquaredDeviations uses two passes: the mean first, then the squared
// deviations from it. This avoids the cancellation of sum(x^2) - n*mean^2.
func sumSquaredDeviations(xs []float64) float64 {
	mean := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss
}

// Reduce applies op to xs.
func Reduce(op domain.Op, xs []float64) float64 {
	switch op {
	case domain.OpCount:
		return float64(len(xs))
	case domain.OpSum:
		return Sum(xs)
	case domain.OpMin:
		return Min(xs)
	case domain.OpMax:
		return Max(xs)
	case domain.OpAvg:
		return Mean(xs)
	case domain.OpStdDevPop:
		return PopulationStdDev(xs)
	case domain.OpStdDevSamp:
		return SampleStdDev(xs)
	}
	return 0
}
