package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/pipeline"
)

const sourceName = "ssp245_EC-Earth3_DHW.nc"

// twoYearGrid has a land pixel and two ocean pixels, five days in 2020 and
// five days in 2021.
func twoYearGrid() domain.Grid {
	return joinYears(
		dailyGrid(jan1(2020),
			repeat(nan, 5),
			[]float64{0, 2, 5, 3, 1},
			[]float64{0, 4, 8, 6, 2},
		),
		dailyGrid(jan1(2021),
			repeat(nan, 5),
			repeat(1, 5),
			repeat(5, 5),
		),
	)
}

func TestYearly_Run_HappyPath(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	src := &mockGridSource{grids: map[string]domain.Grid{sourceName: twoYearGrid()}}
	store := newMockStore()
	metrics := newTestMetrics()
	p := pipeline.NewYearly(src, store, testConfig(), discardLogger(), metrics)

	require.Error(t, p.CheckReadiness(context.Background()))

	written, err := p.Run(context.Background(), sourceName)
	require.NoError(t, err)
	assert.Equal(t, outPath("DHW_"+sourceName), written)
	require.NoError(t, p.CheckReadiness(context.Background()))

	ds, ok := store.datasets[written]
	require.True(t, ok)
	require.Len(t, ds.Vars, 3)

	dhwMax, err := ds.Var("DHW_max")
	require.NoError(t, err)
	assert.Equal(t, []int{2020, 2021}, dhwMax.Years)
	assert.Equal(t, "degC.week", dhwMax.Attrs.String("units"))
	assertValues(t, []float64{nan, 5, 8, nan, 1, 5}, dhwMax.Values)

	days, err := ds.Var("nDaysAbove_DHW4")
	require.NoError(t, err)
	assertValues(t, []float64{nan, 1, 2, nan, 0, 5}, days.Values)

	doy, err := ds.Var("DOY_DHWmax")
	require.NoError(t, err)
	assertValues(t, []float64{nan, 3, 3, nan, 1, 1}, doy.Values)

	assert.Equal(t, "Yearly Degree Heating Week statistics", ds.Attrs.String("title"))
	assert.Equal(t, "EC-Earth3", ds.Attrs.String("model_name"))
	assert.Equal(t, "ssp245", ds.Attrs.String("IPCC_scenario"))
	assert.Equal(t, "2020-01-01", ds.Attrs.String("time_coverage_start"))
	assert.Equal(t, "2021-12-31", ds.Attrs.String("time_coverage_end"))
	assert.Equal(t, "2026-04-26T15:10:00Z", ds.Attrs.String("creation_date"))
	assert.NotEmpty(t, ds.Attrs.String("run_id"))

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.YearsProcessed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ProductsComputed.WithLabelValues("DHW_max")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MaskedPixels), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.RunFailures), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestYearly_Run_CompressedSourceName(t *testing.T) {
	src := &mockGridSource{grids: map[string]domain.Grid{"in/" + sourceName + ".zst": twoYearGrid()}}
	store := newMockStore()
	p := pipeline.NewYearly(src, store, testConfig(), discardLogger(), newTestMetrics())

	written, err := p.Run(context.Background(), "in/"+sourceName+".zst")
	require.NoError(t, err)
	assert.Equal(t, outPath("DHW_"+sourceName), written)
}

func TestYearly_Run_PixelMask(t *testing.T) {
	cfg := testConfig()
	cfg.PixelMaskFile = "mask.nc"
	src := &mockGridSource{
		grids: map[string]domain.Grid{sourceName: twoYearGrid()},
		fields: map[string]domain.Field{
			"mask.nc": {Lat: []float64{0}, Lon: []float64{0, 1, 2}, Values: []float64{1, 0, 1}},
		},
	}
	store := newMockStore()
	metrics := newTestMetrics()
	p := pipeline.NewYearly(src, store, cfg, discardLogger(), metrics)

	written, err := p.Run(context.Background(), sourceName)
	require.NoError(t, err)

	dhwMax, err := store.datasets[written].Var("DHW_max")
	require.NoError(t, err)
	assertValues(t, []float64{nan, nan, 8, nan, nan, 5}, dhwMax.Values)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MaskedPixels), 0)
}

func TestYearly_Run_RelativeToClimatology(t *testing.T) {
	cfg := testConfig()
	cfg.Products = []string{"daymaxrel"}
	cfg.ClimatologyFile = "clim.nc"
	cfg.ClimatologyFlipLat = true
	src := &mockGridSource{
		grids: map[string]domain.Grid{sourceName: twoYearGrid()},
		fields: map[string]domain.Field{
			"clim.nc": {Lat: []float64{0}, Lon: []float64{0, 1, 2}, Values: []float64{nan, 2, 1}},
		},
	}
	store := newMockStore()
	p := pipeline.NewYearly(src, store, cfg, discardLogger(), newTestMetrics())

	written, err := p.Run(context.Background(), sourceName)
	require.NoError(t, err)

	rel, err := store.datasets[written].Var("DOYrel_DHWmax")
	require.NoError(t, err)
	assertValues(t, []float64{nan, 1, 2, nan, 364, 365}, rel.Values)
}

func TestYearly_Run_RelativeWithoutReference(t *testing.T) {
	cfg := testConfig()
	cfg.Products = []string{"doyrel"}
	src := &mockGridSource{grids: map[string]domain.Grid{sourceName: twoYearGrid()}}
	store := newMockStore()
	metrics := newTestMetrics()
	p := pipeline.NewYearly(src, store, cfg, discardLogger(), metrics)

	_, err := p.Run(context.Background(), sourceName)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, store.datasets)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunFailures), 0)
}

func TestYearly_Run_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		setup   func(cfg *config.Config, store *mockStore)
		wantErr error
	}{
		{
			name:    "missing source",
			path:    "absent.nc",
			wantErr: domain.ErrMissingVariable,
		},
		{
			name:    "mask index beyond the grid",
			path:    sourceName,
			setup:   func(cfg *config.Config, _ *mockStore) { cfg.MaskIndex = 10 },
			wantErr: domain.ErrIndexOutOfRange,
		},
		{
			name:    "unknown product",
			path:    sourceName,
			setup:   func(cfg *config.Config, _ *mockStore) { cfg.Products = []string{"median"} },
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "store failure",
			path:    sourceName,
			setup:   func(_ *config.Config, store *mockStore) { store.err = domain.ErrShapeMismatch },
			wantErr: domain.ErrShapeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			store := newMockStore()
			if tt.setup != nil {
				tt.setup(cfg, store)
			}
			src := &mockGridSource{grids: map[string]domain.Grid{sourceName: twoYearGrid()}}
			p := pipeline.NewYearly(src, store, cfg, discardLogger(), newTestMetrics())

			_, err := p.Run(context.Background(), tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestYearly_Run_CanceledContext(t *testing.T) {
	src := &mockGridSource{grids: map[string]domain.Grid{sourceName: twoYearGrid()}}
	store := newMockStore()
	p := pipeline.NewYearly(src, store, testConfig(), discardLogger(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, sourceName)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.datasets)
}
