package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statsGrid() Grid {
	return gridFromSeries(dailyTimes(2040, 1, 1, 5), 1, 3,
		[]float64{3, 5, 7, 7, 1},
		[]float64{4, 2, nan, 6, nan},
		[]float64{nan, nan, nan, nan, nan},
	)
}

func TestYearStatistics(t *testing.T) {
	g := statsGrid()
	s := yearSlice(t, g)
	mask := mustMask(t, g)

	tests := []struct {
		name string
		fn   func(YearSlice, Mask) (Field, error)
		want []float64
	}{
		{name: "max", fn: YearMax, want: []float64{7, 6, nan}},
		{name: "min", fn: YearMin, want: []float64{1, 2, nan}},
		{name: "day of max", fn: DayOfMax, want: []float64{3, 4, nan}},
		{name: "day of min", fn: DayOfMin, want: []float64{5, 3, nan}},
		{name: "median", fn: func(s YearSlice, m Mask) (Field, error) { return YearQuantile(s, 0.5, m) }, want: []float64{5, 2, nan}},
		{name: "lower quartile", fn: func(s YearSlice, m Mask) (Field, error) { return YearQuantile(s, 0.25, m) }, want: []float64{3, 0, nan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(s, mask)
			require.NoError(t, err)
			assertValues(t, tt.want, got.Values)
		})
	}
}

func TestYearQuantileInvalid(t *testing.T) {
	g := statsGrid()
	_, err := YearQuantile(yearSlice(t, g), 1.01, mustMask(t, g))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStatisticsLeaveInputUntouched(t *testing.T) {
	g := statsGrid()
	s := yearSlice(t, g)
	before := append([]float64(nil), s.Values...)

	_, err := YearQuantile(s, 0.5, mustMask(t, g))
	require.NoError(t, err)
	_, err = DayOfMaxRelative(s, Field{Lat: g.Lat, Lon: g.Lon, Values: []float64{1, 1, 1}}, mustMask(t, g))
	require.NoError(t, err)

	assertValues(t, before, s.Values)
}

func TestDayOfMaxRelative(t *testing.T) {
	g := statsGrid()
	s := yearSlice(t, g)
	mask := mustMask(t, g)
	ref := Field{Lat: g.Lat, Lon: g.Lon, Values: []float64{1, 10, 1}}

	got, err := DayOfMaxRelative(s, ref, mask)
	require.NoError(t, err)
	assertValues(t, []float64{2, 359, nan}, got.Values)

	t.Run("no stress all year", func(t *testing.T) {
		calm := gridFromSeries(dailyTimes(2040, 1, 1, 3), 1, 1, []float64{0, 0, 0})
		got, err := DayOfMaxRelative(yearSlice(t, calm), Field{Lat: calm.Lat, Lon: calm.Lon, Values: []float64{1}}, mustMask(t, calm))
		require.NoError(t, err)
		assert.True(t, math.IsNaN(got.Values[0]))
	})

	t.Run("reference shape mismatch", func(t *testing.T) {
		_, err := DayOfMaxRelative(s, Field{Lat: axis(1), Lon: axis(1), Values: []float64{1}}, mask)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestDaysAbove(t *testing.T) {
	g := statsGrid()
	s := yearSlice(t, g)
	mask := mustMask(t, g)

	got, err := DaysAbove(s, 4, mask)
	require.NoError(t, err)
	assertValues(t, []float64{3, 1, nan}, got.Values)

	got, err = DaysAbove(s, 7, mask)
	require.NoError(t, err)
	assertValues(t, []float64{0, 0, nan}, got.Values)

	t.Run("non-increasing in threshold", func(t *testing.T) {
		prev := []float64{math.Inf(1), math.Inf(1)}
		for threshold := -1.0; threshold <= 10; threshold += 0.5 {
			got, err := DaysAbove(s, threshold, mask)
			require.NoError(t, err)
			for p := range prev {
				assert.LessOrEqual(t, got.Values[p], prev[p], "threshold %v pixel %d", threshold, p)
				prev[p] = got.Values[p]
			}
			assert.True(t, math.IsNaN(got.Values[2]), "land must stay missing")
		}
	})
}

func TestLandAlwaysMissing(t *testing.T) {
	g := statsGrid()
	s := yearSlice(t, g)
	mask := mustMask(t, g)
	ref := Field{Lat: g.Lat, Lon: g.Lon, Values: []float64{1, 1, 1}}

	products, err := Products([]string{
		ProductMax, ProductMin, ProductQuantile, ProductDayMax, ProductDayMin,
		ProductDayMaxRel, ProductDOY, ProductDOYRel, ProductNDays,
	}, ProductParams{Thresholds: []float64{0, 4}, Quantile: 0.99, Reference: &ref})
	require.NoError(t, err)

	for _, p := range products {
		got, err := p.Compute(s, mask)
		require.NoError(t, err, p.Name)
		assert.True(t, math.IsNaN(got.Values[2]), "%s: land pixel must be missing", p.Name)
	}
}

func TestColdestAndHottestDay(t *testing.T) {
	clim := gridFromSeries(dailyTimes(2001, 1, 1, 4), 1, 2,
		[]float64{20, 18, 25, 22},
		[]float64{nan, nan, nan, nan},
	)
	mask := mustMask(t, clim)

	cold, err := ColdestDay(clim, mask)
	require.NoError(t, err)
	assertValues(t, []float64{2, nan}, cold.Values)

	hot, err := HottestDay(clim, mask)
	require.NoError(t, err)
	assertValues(t, []float64{3, nan}, hot.Values)
}
