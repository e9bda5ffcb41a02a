package domain

import (
	"fmt"
	"math"
	"slices"
)

const daysPerYear = 365

// reducePixels applies fn to the time series of every valid pixel and returns
// the results as a field. Pixels the mask rejects are NaN and fn never sees them.
func reducePixels(g Grid, mask Mask, fn func(series []float64) float64) (Field, error) {
	if err := g.Validate(); err != nil {
		return Field{}, err
	}
	if err := checkPlane("land mask", mask.Plane(), g.Plane()); err != nil {
		return Field{}, err
	}
	out := NewField(g.Lat, g.Lon)
	buf := make([]float64, 0, len(g.Times))
	for p := range out.Values {
		if !mask.Valid[p] {
			continue
		}
		buf = g.series(p, buf)
		out.Values[p] = fn(buf)
	}
	return out, nil
}

// zeroFill replaces missing values in place so an all-missing series still
// reduces to a number. The land mask restores the missing marker afterwards.
func zeroFill(series []float64) []float64 {
	for i, v := range series {
		if math.IsNaN(v) {
			series[i] = 0
		}
	}
	return series
}

// argMax returns the first index holding the largest value, ignoring NaN.
// It returns -1 when every value is NaN.
func argMax(series []float64) int {
	best := -1
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v > series[best] {
			best = i
		}
	}
	return best
}

// argMin returns the first index holding the smallest value, ignoring NaN.
// It returns -1 when every value is NaN.
func argMin(series []float64) int {
	best := -1
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v < series[best] {
			best = i
		}
	}
	return best
}

// dayOf converts a time index to a 1-based day of year, NaN for no index.
func dayOf(index int) float64 {
	if index < 0 {
		return math.NaN()
	}
	return float64(index + 1)
}

// rebaseDay expresses day as days since ref, wrapping into [1, 365].
func rebaseDay(day, ref float64) float64 {
	if math.IsNaN(day) || math.IsNaN(ref) {
		return math.NaN()
	}
	d := math.Mod(day-ref, daysPerYear)
	if d <= 0 {
		d += daysPerYear
	}
	return d
}

// quantileSorted interpolates linearly between the closest ranks of an
// ascending sample, using position (n-1)p.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// nonMissing returns the sorted non-NaN values of xs in a new slice.
func nonMissing(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func checkQuantile(q float64) error {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return fmt.Errorf("%w: quantile %v outside [0, 1]", ErrInvalidArgument, q)
	}
	return nil
}
