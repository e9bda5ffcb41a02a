package domain

import (
	"math"
	"slices"
)

// YearMax returns the per-pixel maximum over the slice, skipping missing days.
func YearMax(s YearSlice, mask Mask) (Field, error) {
	return reducePixels(s.Grid, mask, func(series []float64) float64 {
		if i := argMax(series); i >= 0 {
			return series[i]
		}
		return math.NaN()
	})
}

// YearMin returns the per-pixel minimum over the slice, skipping missing days.
func YearMin(s YearSlice, mask Mask) (Field, error) {
	return reducePixels(s.Grid, mask, func(series []float64) float64 {
		if i := argMin(series); i >= 0 {
			return series[i]
		}
		return math.NaN()
	})
}

// YearQuantile returns the per-pixel q quantile over the slice. Missing days
// count as zero stress.
func YearQuantile(s YearSlice, q float64, mask Mask) (Field, error) {
	if err := checkQuantile(q); err != nil {
		return Field{}, err
	}
	return reducePixels(s.Grid, mask, func(series []float64) float64 {
		zeroFill(series)
		slices.Sort(series)
		return quantileSorted(series, q)
	})
}

// DayOfMax returns the 1-based day of year of the first yearly maximum.
func DayOfMax(s YearSlice, mask Mask) (Field, error) {
	return reducePixels(s.Grid, mask, func(series []float64) float64 {
		return dayOf(argMax(zeroFill(series)))
	})
}

// DayOfMin returns the 1-based day of year of the first yearly minimum.
func DayOfMin(s YearSlice, mask Mask) (Field, error) {
	return reducePixels(s.Grid, mask, func(series []float64) float64 {
		return dayOf(argMin(zeroFill(series)))
	})
}

// DayOfMaxRelative returns the day of the first yearly maximum expressed in
// days since the reference day, wrapped into [1, 365]. Days without stress
// are ignored, and pixels with no stress all year are NaN.
func DayOfMaxRelative(s YearSlice, ref Field, mask Mask) (Field, error) {
	if err := checkPlane("reference", ref.Plane(), s.Plane()); err != nil {
		return Field{}, err
	}
	out, err := reducePixels(s.Grid, mask, func(series []float64) float64 {
		for i, v := range series {
			if !(v > 0) {
				series[i] = math.NaN()
			}
		}
		return dayOf(argMax(series))
	})
	if err != nil {
		return Field{}, err
	}
	for p, d := range out.Values {
		out.Values[p] = rebaseDay(d, ref.Values[p])
	}
	return out, nil
}

// DaysAbove counts, per pixel, the days strictly above threshold. Ocean pixels
// that never exceed it hold 0; land pixels are NaN.
func DaysAbove(s YearSlice, threshold float64, mask Mask) (Field, error) {
	return reducePixels(s.Grid, mask, func(series []float64) float64 {
		n := 0
		for _, v := range series {
			if v > threshold {
				n++
			}
		}
		return float64(n)
	})
}
