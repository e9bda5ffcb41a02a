package domain

import (
	"fmt"
	"math"
)

// DefaultMaskIndex is the representative time step used to build land masks.
// The first record of model output is sometimes incomplete, so the second is used.
const DefaultMaskIndex = 1

// Mask flags the pixels of a (lat, lon) plane that carry data.
type Mask struct {
	NLat  int
	NLon  int
	Valid []bool
}

// Plane returns the number of pixels covered by the mask.
func (m Mask) Plane() int { return m.NLat * m.NLon }

// Count returns the number of valid pixels.
func (m Mask) Count() int {
	n := 0
	for _, ok := range m.Valid {
		if ok {
			n++
		}
	}
	return n
}

// BuildLandMask marks a pixel valid when the grid holds a value there at the
// given time index.
func BuildLandMask(g Grid, index int) (Mask, error) {
	if err := g.Validate(); err != nil {
		return Mask{}, err
	}
	if index < 0 || index >= len(g.Times) {
		return Mask{}, fmt.Errorf("%w: mask index %d, grid has %d time steps", ErrIndexOutOfRange, index, len(g.Times))
	}
	day := g.Day(index)
	m := Mask{NLat: len(g.Lat), NLon: len(g.Lon), Valid: make([]bool, len(day))}
	for p, v := range day {
		m.Valid[p] = !math.IsNaN(v)
	}
	return m, nil
}

// Apply returns a copy of f with every invalid pixel set to NaN.
func (m Mask) Apply(f Field) (Field, error) {
	if err := checkPlane("field", f.Plane(), m.Plane()); err != nil {
		return Field{}, err
	}
	out := Field{Lat: f.Lat, Lon: f.Lon, Values: make([]float64, len(f.Values))}
	for p, v := range f.Values {
		if m.Valid[p] {
			out.Values[p] = v
		} else {
			out.Values[p] = math.NaN()
		}
	}
	return out, nil
}

// ApplyPixelMask blanks every pixel whose external mask value is not 1, on
// every day of the grid. It returns a new grid and leaves g untouched.
func ApplyPixelMask(g Grid, pixels Field) (Grid, error) {
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	if err := checkPlane("pixel mask", pixels.Plane(), g.Plane()); err != nil {
		return Grid{}, err
	}
	out := g
	out.Values = make([]float64, len(g.Values))
	n := g.Plane()
	for i, v := range g.Values {
		if pixels.Values[i%n] == 1 {
			out.Values[i] = v
		} else {
			out.Values[i] = math.NaN()
		}
	}
	return out, nil
}
