package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "summaries.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport() domain.RegionReport {
	return domain.RegionReport{
		RunID:     "run-1",
		Source:    "DHW_ssp245_EC-Earth3.nc",
		Region:    "IPCC-NAU",
		Statistic: domain.StatMean,
		Summary: domain.Summary{
			Variable: "DHW_max",
			Levels:   []float64{0.05, 0.95},
			Rows: []domain.YearSummary{
				{Year: 2020, Count: 4, Min: 1, Mean: 2.5, Median: 2.5, Std: 1.118, Max: 4, Quantiles: []float64{1.15, 3.85}},
				{Year: 2021, Count: 0, Min: math.NaN(), Mean: math.NaN(), Median: math.NaN(), Std: math.NaN(), Max: math.NaN(),
					Quantiles: []float64{math.NaN(), math.NaN()}},
			},
		},
		Trend: &domain.Trend{
			Slope:     0.5,
			Intercept: -1000,
			Years:     []int{2020, 2021},
			Observed:  []float64{2.5, math.NaN()},
			Predicted: []float64{10, 10.5},
		},
	}
}

func TestOpen_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.db")
	s, err := Open(context.Background(), path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path, slog.Default())
	require.NoError(t, err, "re-opening an up-to-date database is not an error")
	require.NoError(t, s.Close())
}

func TestLoadReports_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := testReport()

	require.NoError(t, s.LoadReports(ctx, []domain.RegionReport{r}))

	rows, err := s.Summaries(ctx, r.Source, r.Region, "DHW_max")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2020, rows[0].Year)
	assert.Equal(t, 4, rows[0].Count)
	assert.InDelta(t, 2.5, rows[0].Mean, 1e-12)
	assert.Equal(t, 0, rows[1].Count)
	assert.True(t, math.IsNaN(rows[1].Mean), "NaN statistics are stored as NULL")

	slope, intercept, err := s.Trend(ctx, r.Source, r.Region, "DHW_max", domain.StatMean)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, slope, 1e-12)
	assert.InDelta(t, -1000.0, intercept, 1e-12)

	years, observed, predicted, err := s.TrendPoints(ctx, r.Source, r.Region, "DHW_max", domain.StatMean)
	require.NoError(t, err)
	assert.Equal(t, []int{2020, 2021}, years)
	assert.Equal(t, []float64{10, 10.5}, predicted)
	require.Len(t, observed, 2)
	assert.InDelta(t, 2.5, observed[0], 1e-12)
	assert.True(t, math.IsNaN(observed[1]), "missing observations are stored as NULL")
}

func TestLoadReports_ReplacesTrendPoints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := testReport()
	require.NoError(t, s.LoadReports(ctx, []domain.RegionReport{r}))
	r.Trend.Years = []int{2020}
	r.Trend.Observed = []float64{3}
	r.Trend.Predicted = []float64{4}
	require.NoError(t, s.LoadReports(ctx, []domain.RegionReport{r}))

	years, _, predicted, err := s.TrendPoints(ctx, r.Source, r.Region, "DHW_max", domain.StatMean)
	require.NoError(t, err)
	assert.Equal(t, []int{2020}, years)
	assert.Equal(t, []float64{4}, predicted)
}

func TestLoadReports_ReplacesRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := testReport()
	require.NoError(t, s.LoadReports(ctx, []domain.RegionReport{r}))
	r.RunID = "run-2"
	r.Summary.Rows[0].Mean = 3
	require.NoError(t, s.LoadReports(ctx, []domain.RegionReport{r}))

	rows, err := s.Summaries(ctx, r.Source, r.Region, "DHW_max")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 3.0, rows[0].Mean, 1e-12)
}

func TestLoadReports_WithoutTrend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := testReport()
	r.Trend = nil
	require.NoError(t, s.LoadReports(ctx, []domain.RegionReport{r}))

	_, _, err := s.Trend(ctx, r.Source, r.Region, "DHW_max", domain.StatMean)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLoadReports_Empty(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.LoadReports(context.Background(), nil))
}

func TestQuantilesJSON(t *testing.T) {
	got, err := quantilesJSON([]float64{0.05, 0.999}, []float64{1.5, math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p5": 1.5, "p99.9": null}`, got)
}
