package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/pipeline"
)

func TestClimatology_Run(t *testing.T) {
	clim := dailyGrid(jan1(2000),
		[]float64{25.5, 24.1, 24.8, 27.2},
		repeat(nan, 4),
		[]float64{28, 29, 26, 26},
	)
	src := &mockGridSource{grids: map[string]domain.Grid{"tos_clim.nc": clim}}
	store := newMockStore()
	p := pipeline.NewClimatology(src, store, testConfig(), discardLogger(), newTestMetrics())

	written, err := p.Run(context.Background(), "tos_clim.nc")
	require.NoError(t, err)
	assert.Equal(t, outPath(pipeline.ClimatologyFile), written)

	ds := store.datasets[written]
	assert.Equal(t, "day of the year when SST reaches its minimum/maximum value", ds.Attrs.String("title"))
	assert.Equal(t, "tos_clim.nc", ds.Attrs.String("source_file"))

	coldest, err := ds.Var(pipeline.ColdestDayVarName)
	require.NoError(t, err)
	assert.Empty(t, coldest.Years)
	assert.Equal(t, "day of the year when SST is minimum", coldest.Attrs.String("long_name"))
	assertValues(t, []float64{2, nan, 3}, coldest.Values)

	hottest, err := ds.Var(pipeline.HottestDayVarName)
	require.NoError(t, err)
	assertValues(t, []float64{4, nan, 2}, hottest.Values)
}

func TestClimatology_Run_MissingVariable(t *testing.T) {
	p := pipeline.NewClimatology(&mockGridSource{}, newMockStore(), testConfig(), discardLogger(), newTestMetrics())
	_, err := p.Run(context.Background(), "tos_clim.nc")
	assert.ErrorIs(t, err, domain.ErrMissingVariable)
	assert.Error(t, p.CheckReadiness(context.Background()))
}
