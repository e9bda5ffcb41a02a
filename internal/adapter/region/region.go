// Package region loads named polygons and clips yearly grids to them.
package region

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// Geographic is the coordinate system grids are stored in (EPSG:4326).
const Geographic = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// ErrUnknownRegion is returned by Clip for a name that was never loaded.
var ErrUnknownRegion = errors.New("unknown region")

// Region is one named polygon in geographic coordinates.
type Region struct {
	Name     string
	LongName string
	Shape    geom.Polygonal
}

// Options selects the attribute columns and naming of shapefile regions.
type Options struct {
	NameField    string
	AcronymField string
	Prefix       string
}

// Set is an ordered collection of regions with unique names.
type Set struct {
	regions []Region
	index   map[string]int
}

// NewSet builds a Set. Names must be unique.
func NewSet(regions []Region) (*Set, error) {
	s := &Set{regions: regions, index: make(map[string]int, len(regions))}
	for i, r := range regions {
		if _, dup := s.index[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate region name %q", domain.ErrInvalidArgument, r.Name)
		}
		s.index[r.Name] = i
	}
	return s, nil
}

// Load reads every polygon of a shapefile, reprojected to geographic
// coordinates. Multi-part shapes are exploded into one region per part.
func Load(path string, opts Options) (*Set, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer dec.Close()

	var trans proj.Transformer
	if src, err := dec.SR(); err == nil {
		dst, err := proj.Parse(Geographic)
		if err != nil {
			return nil, err
		}
		if trans, err = src.NewTransform(dst); err != nil {
			return nil, fmt.Errorf("shapefile %s: %w", path, err)
		}
	}

	var rows []row
	for {
		g, fields, more := dec.DecodeRowFields(opts.NameField, opts.AcronymField)
		if !more {
			break
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, fmt.Errorf("shapefile %s: %w", path, err)
			}
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("shapefile %s: regions need to be polygons, got %T", path, g)
		}
		for _, part := range poly.Polygons() {
			rows = append(rows, row{
				acronym:  strings.TrimSpace(fields[opts.AcronymField]),
				longName: strings.TrimSpace(fields[opts.NameField]),
				shape:    part,
			})
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return NewSet(nameRows(rows, opts.Prefix))
}

type row struct {
	acronym  string
	longName string
	shape    geom.Polygon
}

// nameRows names each row prefix+acronym. Consecutive rows sharing an
// acronym are the parts of one exploded shape and get -1, -2, ... suffixes.
func nameRows(rows []row, prefix string) []Region {
	out := make([]Region, 0, len(rows))
	part := 0
	for i, r := range rows {
		if i > 0 && rows[i-1].acronym == r.acronym {
			part++
		} else {
			part = 0
		}
		name := prefix + r.acronym
		if part > 0 {
			name += "-" + strconv.Itoa(part)
		}
		out = append(out, Region{Name: name, LongName: r.longName, Shape: r.shape})
	}
	return out
}

// Names returns the region names in load order.
func (s *Set) Names() []string {
	names := make([]string, len(s.regions))
	for i, r := range s.regions {
		names[i] = r.Name
	}
	return names
}

// Region returns the named region.
func (s *Set) Region(name string) (Region, bool) {
	i, ok := s.index[name]
	if !ok {
		return Region{}, false
	}
	return s.regions[i], true
}

// Clip crops y to the bounding box of the named region and blanks pixels
// whose centre lies outside the polygon. Centres on the boundary are kept.
func (s *Set) Clip(name string, y domain.YearlyGrid) (domain.YearlyGrid, error) {
	r, ok := s.Region(name)
	if !ok {
		return domain.YearlyGrid{}, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	return Clip(r, y)
}

// Clip crops y to r. It returns ErrInsufficientData when no pixel centre
// falls inside the region.
func Clip(r Region, y domain.YearlyGrid) (domain.YearlyGrid, error) {
	b := r.Shape.Bounds()
	lats := axisWithin(y.Lat, b.Min.Y, b.Max.Y, nil)
	lons := axisWithin(y.Lon, b.Min.X, b.Max.X, func(lon float64) float64 { return wrapLon(lon, b) })
	if len(lats) == 0 || len(lons) == 0 {
		return domain.YearlyGrid{}, fmt.Errorf("%w: region %s does not overlap the grid", domain.ErrInsufficientData, r.Name)
	}

	inside := make([]bool, len(lats)*len(lons))
	covered := false
	for i, li := range lats {
		for j, lj := range lons {
			pt := geom.Point{X: wrapLon(y.Lon[lj], b), Y: y.Lat[li]}
			if pt.Within(r.Shape) != geom.Outside {
				inside[i*len(lons)+j] = true
				covered = true
			}
		}
	}
	if !covered {
		return domain.YearlyGrid{}, fmt.Errorf("%w: region %s contains no pixel centre", domain.ErrInsufficientData, r.Name)
	}

	out := domain.YearlyGrid{
		Name:   y.Name,
		Attrs:  y.Attrs,
		Years:  y.Years,
		Lat:    pick(y.Lat, lats),
		Lon:    pick(y.Lon, lons),
		Values: make([]float64, 0, len(y.Years)*len(inside)),
	}
	nLon := len(y.Lon)
	for t := range y.Years {
		plane := y.Field(t).Values
		for i, li := range lats {
			for j, lj := range lons {
				v := math.NaN()
				if inside[i*len(lons)+j] {
					v = plane[li*nLon+lj]
				}
				out.Values = append(out.Values, v)
			}
		}
	}
	return out, nil
}

// axisWithin returns the indices of coordinates in [lo, hi].
func axisWithin(axis []float64, lo, hi float64, norm func(float64) float64) []int {
	var idx []int
	for i, c := range axis {
		if norm != nil {
			c = norm(c)
		}
		if c >= lo && c <= hi {
			idx = append(idx, i)
		}
	}
	return idx
}

// wrapLon shifts lon by a full turn when that brings it into the region's
// longitude range, so 0..360 grids clip against -180..180 regions.
func wrapLon(lon float64, b *geom.Bounds) float64 {
	switch {
	case lon > b.Max.X && lon-360 >= b.Min.X:
		return lon - 360
	case lon < b.Min.X && lon+360 <= b.Max.X:
		return lon + 360
	}
	return lon
}

func pick(axis []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = axis[k]
	}
	return out
}
