package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Grid is a daily stress cube indexed by (time, lat, lon). Values are stored
// time-major and lat-major within a day: the value at time t, row i, column j
// is Values[t*len(Lat)*len(Lon) + i*len(Lon) + j]. Missing pixels are NaN.
type Grid struct {
	Times  []time.Time
	Lat    []float64
	Lon    []float64
	Values []float64
	Attrs  Attributes
}

// Plane returns the number of pixels in one time step.
func (g Grid) Plane() int { return len(g.Lat) * len(g.Lon) }

// Validate checks that the value buffer matches the coordinate lengths.
func (g Grid) Validate() error {
	if want := len(g.Times) * g.Plane(); len(g.Values) != want {
		return fmt.Errorf("%w: grid holds %d values, want %d (time=%d lat=%d lon=%d)",
			ErrShapeMismatch, len(g.Values), want, len(g.Times), len(g.Lat), len(g.Lon))
	}
	return nil
}

// Day returns the plane at time index t. The returned slice aliases g.Values.
func (g Grid) Day(t int) []float64 {
	n := g.Plane()
	return g.Values[t*n : (t+1)*n]
}

// series copies the time series of pixel p into buf and returns it.
func (g Grid) series(p int, buf []float64) []float64 {
	n := g.Plane()
	buf = buf[:0]
	for t := range g.Times {
		buf = append(buf, g.Values[t*n+p])
	}
	return buf
}

// Field is a single (lat, lon) plane, lat-major. Missing pixels are NaN.
type Field struct {
	Lat    []float64
	Lon    []float64
	Values []float64
}

// NewField returns a field on the given axes with every pixel missing.
func NewField(lat, lon []float64) Field {
	v := make([]float64, len(lat)*len(lon))
	for i := range v {
		v[i] = math.NaN()
	}
	return Field{Lat: lat, Lon: lon, Values: v}
}

// Plane returns the number of pixels in the field.
func (f Field) Plane() int { return len(f.Lat) * len(f.Lon) }

// At returns the value at row i, column j.
func (f Field) At(i, j int) float64 { return f.Values[i*len(f.Lon)+j] }

// FlipLat returns a copy of f with the latitude axis reversed.
func (f Field) FlipLat() Field {
	nlat, nlon := len(f.Lat), len(f.Lon)
	out := Field{
		Lat:    make([]float64, nlat),
		Lon:    slices.Clone(f.Lon),
		Values: make([]float64, len(f.Values)),
	}
	for i := range nlat {
		src := nlat - 1 - i
		out.Lat[i] = f.Lat[src]
		copy(out.Values[i*nlon:(i+1)*nlon], f.Values[src*nlon:(src+1)*nlon])
	}
	return out
}

// Valid reports whether f holds a value at pixel p.
func (f Field) Valid(p int) bool { return !math.IsNaN(f.Values[p]) }

// checkPlane reports a shape mismatch when a reference field does not cover
// the same pixel plane as the grid being reduced.
func checkPlane(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s covers %d pixels, grid covers %d", ErrShapeMismatch, what, got, want)
	}
	return nil
}

// sameAxis reports whether two coordinate axes are identical.
func sameAxis(a, b []float64) bool {
	return slices.Equal(a, b)
}
