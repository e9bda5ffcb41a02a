package domain

import (
	"fmt"
	"slices"
	"time"
)

// YearSlice is the part of a Grid that falls in one calendar year.
type YearSlice struct {
	Year int
	Grid
}

// Years returns the distinct calendar years present in g, ascending.
func Years(g Grid) []int {
	var years []int
	for _, t := range g.Times {
		y := t.Year()
		if !slices.Contains(years, y) {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years
}

// GroupByYear partitions g into one slice per calendar year in ascending year
// order. Days keep their original order inside each slice and every day lands
// in exactly one slice.
func GroupByYear(g Grid) ([]YearSlice, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	years := Years(g)
	idx := make(map[int][]int, len(years))
	for t, ts := range g.Times {
		idx[ts.Year()] = append(idx[ts.Year()], t)
	}

	n := g.Plane()
	out := make([]YearSlice, 0, len(years))
	for _, y := range years {
		steps := idx[y]
		s := YearSlice{Year: y, Grid: Grid{
			Lat:    g.Lat,
			Lon:    g.Lon,
			Attrs:  g.Attrs,
			Times:  make([]time.Time, 0, len(steps)),
			Values: make([]float64, 0, len(steps)*n),
		}}
		for _, t := range steps {
			s.Times = append(s.Times, g.Times[t])
			s.Values = append(s.Values, g.Day(t)...)
		}
		out = append(out, s)
	}
	return out, nil
}

// SelectYear returns the slice of g that falls in year. The second result is
// false when g has no day in that year.
func SelectYear(g Grid, year int) (YearSlice, bool) {
	n := g.Plane()
	s := YearSlice{Year: year, Grid: Grid{Lat: g.Lat, Lon: g.Lon, Attrs: g.Attrs}}
	for t, ts := range g.Times {
		if ts.Year() != year {
			continue
		}
		s.Times = append(s.Times, ts)
		s.Values = append(s.Values, g.Values[t*n:(t+1)*n]...)
	}
	return s, len(s.Times) > 0
}

// Concat joins year slices back into a single grid along the time axis.
func Concat(parts []YearSlice) (Grid, error) {
	if len(parts) == 0 {
		return Grid{}, nil
	}
	out := Grid{Lat: parts[0].Lat, Lon: parts[0].Lon, Attrs: parts[0].Attrs}
	for _, s := range parts {
		if !sameAxis(s.Lat, out.Lat) || !sameAxis(s.Lon, out.Lon) {
			return Grid{}, fmt.Errorf("%w: year %d has different coordinates", ErrShapeMismatch, s.Year)
		}
		out.Times = append(out.Times, s.Times...)
		out.Values = append(out.Values, s.Values...)
	}
	return out, nil
}

// YearlyGrid is a derived product indexed by (year, lat, lon).
type YearlyGrid struct {
	Name   string
	Attrs  Attributes
	Years  []int
	Lat    []float64
	Lon    []float64
	Values []float64
}

// Plane returns the number of pixels per year.
func (y YearlyGrid) Plane() int { return len(y.Lat) * len(y.Lon) }

// Field returns the plane for the i-th year. The values alias y.Values.
func (y YearlyGrid) Field(i int) Field {
	n := y.Plane()
	return Field{Lat: y.Lat, Lon: y.Lon, Values: y.Values[i*n : (i+1)*n]}
}

// Index returns the position of year on the year axis.
func (y YearlyGrid) Index(year int) (int, bool) {
	i := slices.Index(y.Years, year)
	return i, i >= 0
}

// Stack builds a yearly grid from one field per year in a single pass. Years
// keep the order given and every field must share the first field's axes.
func Stack(name string, years []int, fields []Field) (YearlyGrid, error) {
	if len(years) != len(fields) {
		return YearlyGrid{}, fmt.Errorf("%w: %d years for %d fields", ErrShapeMismatch, len(years), len(fields))
	}
	out := YearlyGrid{Name: name, Years: slices.Clone(years)}
	if len(fields) == 0 {
		return out, nil
	}
	out.Lat, out.Lon = fields[0].Lat, fields[0].Lon
	n := fields[0].Plane()
	out.Values = make([]float64, 0, n*len(fields))
	for i, f := range fields {
		if !sameAxis(f.Lat, out.Lat) || !sameAxis(f.Lon, out.Lon) || len(f.Values) != n {
			return YearlyGrid{}, fmt.Errorf("%w: field for year %d", ErrShapeMismatch, years[i])
		}
		out.Values = append(out.Values, f.Values...)
	}
	return out, nil
}

// Dataset is the unit handed to the storage collaborator: global attributes
// plus yearly variables sharing one year axis.
type Dataset struct {
	Attrs Attributes
	Vars  []YearlyGrid
}

// Var returns the variable called name.
func (d Dataset) Var(name string) (YearlyGrid, error) {
	for _, v := range d.Vars {
		if v.Name == name {
			return v, nil
		}
	}
	return YearlyGrid{}, fmt.Errorf("%w: %q", ErrMissingVariable, name)
}
