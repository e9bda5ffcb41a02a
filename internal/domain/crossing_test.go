package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crossingGrid() Grid {
	return gridFromSeries(dailyTimes(2030, 1, 1, 5), 1, 3,
		[]float64{1, 2, 6, 9, 3},           // crosses 4 on two days
		[]float64{1, 2, 3, 1, 0},           // never crosses
		[]float64{nan, nan, nan, nan, nan}, // land
	)
}

func TestCrossingDay(t *testing.T) {
	g := crossingGrid()
	s := yearSlice(t, g)
	mask := mustMask(t, g)

	t.Run("smallest qualifying value wins", func(t *testing.T) {
		// 6 on day 3 is the smallest value above 4.
		got, err := CrossingDay(s, 4, mask)
		require.NoError(t, err)
		assertValues(t, []float64{3, nan, nan}, got.Values)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		got, err := CrossingDay(s, 6, mask)
		require.NoError(t, err)
		assertValues(t, []float64{4, nan, nan}, got.Values)
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		got, err := CrossingDay(s, 50, mask)
		require.NoError(t, err)
		assertValues(t, []float64{nan, nan, nan}, got.Values)
	})

	t.Run("relative to reference", func(t *testing.T) {
		ref := Field{Lat: g.Lat, Lon: g.Lon, Values: []float64{2, 1, 1}}
		got, err := CrossingDay(s, 4, mask, WithReference(ref))
		require.NoError(t, err)
		assertValues(t, []float64{1, nan, nan}, got.Values)

		ref.Values[0] = 10
		got, err = CrossingDay(s, 4, mask, WithReference(ref))
		require.NoError(t, err)
		assertValues(t, []float64{358, nan, nan}, got.Values)
	})

	t.Run("reference shape mismatch", func(t *testing.T) {
		ref := Field{Lat: axis(1), Lon: axis(2), Values: []float64{1, 1}}
		_, err := CrossingDay(s, 4, mask, WithReference(ref))
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("mask shape mismatch", func(t *testing.T) {
		_, err := CrossingDay(s, 4, Mask{NLat: 1, NLon: 1, Valid: []bool{true}})
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := CrossingDay(s, 4, mask)
		require.NoError(t, err)
		b, err := CrossingDay(s, 4, mask)
		require.NoError(t, err)
		assertValues(t, a.Values, b.Values)
	})
}

func TestCrossingDayQuantileCap(t *testing.T) {
	g := gridFromSeries(dailyTimes(2030, 1, 1, 6), 1, 1, []float64{1, 9, 2, 12, 10, 11})
	s := yearSlice(t, g)
	mask := mustMask(t, g)

	got, err := CrossingDay(s, 8, mask, WithQuantileCap(1))
	require.NoError(t, err)
	assertValues(t, []float64{2}, got.Values)

	// The 0.2 quantile of the slice is 2, so every qualifying value is capped away.
	got, err = CrossingDay(s, 8, mask, WithQuantileCap(0.2))
	require.NoError(t, err)
	assertValues(t, []float64{nan}, got.Values)

	_, err = CrossingDay(s, 8, mask, WithQuantileCap(1.5))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCrossingDayRange(t *testing.T) {
	times := dailyTimes(2032, 1, 1, 366)
	series := make([]float64, len(times))
	for i := range series {
		series[i] = float64(i) / 10
	}
	g := gridFromSeries(times, 1, 1, series)
	s := yearSlice(t, g)
	mask := mustMask(t, g)

	for _, threshold := range []float64{-1, 0, 10, 36.4} {
		got, err := CrossingDay(s, threshold, mask)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Values[0], 1.0)
		assert.LessOrEqual(t, got.Values[0], 366.0)
	}

	ref := Field{Lat: g.Lat, Lon: g.Lon, Values: []float64{366}}
	for _, threshold := range []float64{-1, 0, 10, 36.4} {
		got, err := CrossingDay(s, threshold, mask, WithReference(ref))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Values[0], 1.0)
		assert.LessOrEqual(t, got.Values[0], 365.0)
	}
}
