package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var nan = math.NaN()

// dailyTimes returns consecutive UTC days starting at the given date.
func dailyTimes(year int, month time.Month, day, n int) []time.Time {
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func axis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// gridFromSeries builds a grid from one time series per pixel, lat-major.
func gridFromSeries(times []time.Time, nlat, nlon int, series ...[]float64) Grid {
	g := Grid{Times: times, Lat: axis(nlat), Lon: axis(nlon), Values: make([]float64, len(times)*nlat*nlon)}
	n := nlat * nlon
	for p, s := range series {
		for t, v := range s {
			g.Values[t*n+p] = v
		}
	}
	return g
}

func yearSlice(t *testing.T, g Grid) YearSlice {
	t.Helper()
	slices, err := GroupByYear(g)
	if err != nil {
		t.Fatalf("group by year: %v", err)
	}
	if len(slices) != 1 {
		t.Fatalf("expected one year, got %d", len(slices))
	}
	return slices[0]
}

func mustMask(t *testing.T, g Grid) Mask {
	t.Helper()
	m, err := BuildLandMask(g, DefaultMaskIndex)
	if err != nil {
		t.Fatalf("build land mask: %v", err)
	}
	return m
}

// assertValues compares field values treating NaN as equal to NaN.
func assertValues(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}
