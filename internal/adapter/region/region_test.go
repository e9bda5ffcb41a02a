package region

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

// testGrid is two years on a 5x5 grid; pixel p in year t holds 100*t+p.
func testGrid() domain.YearlyGrid {
	y := domain.YearlyGrid{
		Name:  "DHW_max",
		Years: []int{2020, 2021},
		Lat:   []float64{-10, -4, 0, 4, 10},
		Lon:   []float64{5, 10, 15, 20, 25},
	}
	for t := range y.Years {
		for p := range 25 {
			y.Values = append(y.Values, float64(100*t+p))
		}
	}
	return y
}

func TestClip_SquareKeepsEdges(t *testing.T) {
	r := Region{Name: "IPCC-SQ", Shape: square(10, -5, 20, 5)}

	got, err := Clip(r, testGrid())
	require.NoError(t, err)
	assert.Equal(t, []float64{-4, 0, 4}, got.Lat)
	assert.Equal(t, []float64{10, 15, 20}, got.Lon)
	assert.Equal(t, []int{2020, 2021}, got.Years)

	want := []float64{
		6, 7, 8, 11, 12, 13, 16, 17, 18,
		106, 107, 108, 111, 112, 113, 116, 117, 118,
	}
	assert.Equal(t, want, got.Values)
}

func TestClip_TriangleBlanksOutside(t *testing.T) {
	tri := geom.Polygon{{{X: 10, Y: -5}, {X: 20, Y: -5}, {X: 10, Y: 5}, {X: 10, Y: -5}}}
	r := Region{Name: "IPCC-TRI", Shape: tri}

	got, err := Clip(r, testGrid())
	require.NoError(t, err)

	nan := math.NaN()
	// Centres with lon+lat > 15 fall outside the hypotenuse.
	wantFirstYear := []float64{
		6, 7, nan,
		11, 12, nan,
		16, nan, nan,
	}
	assert.Empty(t, cmp.Diff(wantFirstYear, got.Values[:9], cmpopts.EquateNaNs()))
}

func TestClip_WrapsLongitude(t *testing.T) {
	y := testGrid()
	y.Lon = []float64{170, 175, 185, 190, 200}
	r := Region{Name: "IPCC-DL", Shape: square(-180, -5, -170, 5)}

	got, err := Clip(r, y)
	require.NoError(t, err)
	assert.Equal(t, []float64{185, 190}, got.Lon)
}

func TestClip_NoOverlap(t *testing.T) {
	r := Region{Name: "IPCC-FAR", Shape: square(100, 50, 110, 60)}
	_, err := Clip(r, testGrid())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestClip_BetweenPixelCentres(t *testing.T) {
	r := Region{Name: "IPCC-GAP", Shape: square(11, 1, 14, 3)}
	_, err := Clip(r, testGrid())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestNameRows(t *testing.T) {
	rows := []row{
		{acronym: "NAU", longName: "N.Australia"},
		{acronym: "NAU", longName: "N.Australia"},
		{acronym: "SEA", longName: "S.E.Asia"},
		{acronym: "NAU", longName: "N.Australia"},
		{acronym: "PAC", longName: "Pacific"},
		{acronym: "PAC", longName: "Pacific"},
		{acronym: "PAC", longName: "Pacific"},
	}
	got := nameRows(rows, "IPCC-")

	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"IPCC-NAU", "IPCC-NAU-1", "IPCC-SEA", "IPCC-NAU", "IPCC-PAC", "IPCC-PAC-1", "IPCC-PAC-2"}, names)
	assert.Equal(t, "S.E.Asia", got[2].LongName)
}

func TestNewSet(t *testing.T) {
	s, err := NewSet([]Region{
		{Name: "IPCC-A", Shape: square(10, -5, 20, 5)},
		{Name: "IPCC-B", Shape: square(0, 0, 1, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"IPCC-A", "IPCC-B"}, s.Names())

	_, err = s.Clip("IPCC-A", testGrid())
	require.NoError(t, err)

	_, err = s.Clip("IPCC-Z", testGrid())
	assert.ErrorIs(t, err, ErrUnknownRegion)

	_, err = NewSet([]Region{{Name: "X"}, {Name: "X"}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
