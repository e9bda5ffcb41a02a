package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

var nan = math.NaN()

// --- mocks ---

type mockGridSource struct {
	grids  map[string]domain.Grid
	fields map[string]domain.Field
}

func (m *mockGridSource) LoadGrid(_ context.Context, path, variable string) (domain.Grid, error) {
	g, ok := m.grids[path]
	if !ok {
		return domain.Grid{}, fmt.Errorf("%w: %s in %s", domain.ErrMissingVariable, variable, path)
	}
	return g, nil
}

func (m *mockGridSource) LoadField(_ context.Context, path, variable string) (domain.Field, error) {
	f, ok := m.fields[path]
	if !ok {
		return domain.Field{}, fmt.Errorf("%w: %s in %s", domain.ErrMissingVariable, variable, path)
	}
	return f, nil
}

type mockYearlySource struct {
	grid  domain.YearlyGrid
	attrs domain.Attributes
	err   error
}

func (m *mockYearlySource) LoadYearly(_ context.Context, _, _ string) (domain.YearlyGrid, domain.Attributes, error) {
	return m.grid, m.attrs, m.err
}

type mockStore struct {
	datasets map[string]domain.Dataset
	err      error
}

func newMockStore() *mockStore {
	return &mockStore{datasets: make(map[string]domain.Dataset)}
}

func (m *mockStore) StoreDataset(_ context.Context, path string, ds domain.Dataset) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.datasets[path] = ds
	return path, nil
}

type mockMembers struct {
	order   []string
	grids   map[string]domain.Grid
	readErr error
	reads   int
}

func (m *mockMembers) Members() []string { return m.order }

func (m *mockMembers) Years() ([]int, error) {
	var all []int
	for _, name := range m.order {
		all = append(all, domain.Years(m.grids[name])...)
	}
	slices.Sort(all)
	return slices.Compact(all), nil
}

func (m *mockMembers) Year(member string, year int) (domain.YearSlice, bool, error) {
	m.reads++
	if m.readErr != nil {
		return domain.YearSlice{}, false, m.readErr
	}
	s, ok := domain.SelectYear(m.grids[member], year)
	return s, ok, nil
}

// mockClipper keeps the listed pixels of each region and blanks the rest.
type mockClipper struct {
	names []string
	keep  map[string][]int
}

func (m *mockClipper) Names() []string { return m.names }

func (m *mockClipper) Clip(name string, y domain.YearlyGrid) (domain.YearlyGrid, error) {
	keep := m.keep[name]
	if len(keep) == 0 {
		return domain.YearlyGrid{}, fmt.Errorf("%w: region %s contains no pixel centre", domain.ErrInsufficientData, name)
	}
	out := y
	out.Values = make([]float64, len(y.Values))
	n := y.Plane()
	for i, v := range y.Values {
		if slices.Contains(keep, i%n) {
			out.Values[i] = v
		} else {
			out.Values[i] = nan
		}
	}
	return out, nil
}

type mockLoader struct {
	loaded []domain.RegionReport
	err    error
}

func (m *mockLoader) LoadReports(_ context.Context, reports []domain.RegionReport) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, reports...)
	return nil
}

// --- helpers ---

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const outDir = "out"

func testConfig() *config.Config {
	return &config.Config{
		Variable:         "DHW",
		MaskIndex:        1,
		Thresholds:       []float64{4},
		Quantile:         0.99,
		Products:         []string{"max", "ndays", "daymax"},
		OutputDir:        outDir,
		OutputPrefix:     "DHW_",
		Workers:          2,
		YearStart:        1985,
		YearEnd:          2100,
		SSTVariable:      "tos",
		SummaryVariable:  "DHW_max",
		SummaryQuantiles: []float64{0.05},
		TrendStatistic:   domain.StatMean,
		WriteClipped:     true,
	}
}

func outPath(name string) string { return filepath.Join(outDir, name) }

// dailyGrid builds a grid of consecutive days from one series per pixel.
// Pixels lie on a single latitude.
func dailyGrid(start time.Time, series ...[]float64) domain.Grid {
	n := len(series[0])
	g := domain.Grid{
		Times:  make([]time.Time, n),
		Lat:    []float64{0},
		Lon:    make([]float64, len(series)),
		Values: make([]float64, n*len(series)),
	}
	for t := range g.Times {
		g.Times[t] = start.AddDate(0, 0, t)
	}
	for p, s := range series {
		g.Lon[p] = float64(p)
		for t, v := range s {
			g.Values[t*len(series)+p] = v
		}
	}
	return g
}

// joinYears concatenates grids sharing coordinates along time.
func joinYears(grids ...domain.Grid) domain.Grid {
	out := domain.Grid{Lat: grids[0].Lat, Lon: grids[0].Lon}
	for _, g := range grids {
		out.Times = append(out.Times, g.Times...)
		out.Values = append(out.Values, g.Values...)
	}
	return out
}

func jan1(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func assertValues(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}
