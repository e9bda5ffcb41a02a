package netcdf

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"slices"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

var (
	latNames  = []string{"lat", "latitude", "y"}
	lonNames  = []string{"lon", "longitude", "x"}
	timeNames = []string{"time", "t"}
	yearNames = []string{"year", "years"}
)

// Reader reads gridded variables from one netCDF file. Files ending in .zst
// are decompressed to a temporary copy that is removed on Close.
type Reader struct {
	path  string
	local string
	temp  bool
	nc    api.Group

	times []time.Time
}

// Open opens path for reading.
func Open(path string) (*Reader, error) {
	local, temp, err := materialize(path)
	if err != nil {
		return nil, err
	}
	nc, err := netcdf.Open(local)
	if err != nil {
		if temp {
			_ = os.Remove(local)
		}
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	return &Reader{path: path, local: local, temp: temp, nc: nc}, nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Close releases the file and any temporary decompressed copy.
func (r *Reader) Close() error {
	r.nc.Close()
	if r.temp {
		return os.Remove(r.local)
	}
	return nil
}

// Times decodes the CF time axis. The result is cached.
func (r *Reader) Times() ([]time.Time, error) {
	if r.times != nil {
		return r.times, nil
	}
	name, vg, err := r.firstVar(timeNames)
	if err != nil {
		return nil, err
	}
	raw, _, err := flatten(vg.Values())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	attrs := vg.Attributes()
	times, err := DecodeTimes(raw, attrString(attrs, "units"), attrString(attrs, "calendar"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	r.times = times
	return times, nil
}

// Years returns the calendar years on the time axis, ascending.
func (r *Reader) Years() ([]int, error) {
	times, err := r.Times()
	if err != nil {
		return nil, err
	}
	return domain.Years(domain.Grid{Times: times}), nil
}

// Grid reads the whole (time, lat, lon) variable.
func (r *Reader) Grid(variable string) (domain.Grid, error) {
	vg, err := r.variable(variable)
	if err != nil {
		return domain.Grid{}, err
	}
	if dims := vg.Dimensions(); len(dims) != 3 {
		return domain.Grid{}, fmt.Errorf("%w: %s has %d dimensions, want time, lat, lon",
			domain.ErrShapeMismatch, variable, len(dims))
	}
	times, err := r.Times()
	if err != nil {
		return domain.Grid{}, err
	}
	lat, lon, err := r.axes(vg)
	if err != nil {
		return domain.Grid{}, err
	}
	values, shape, err := flatten(vg.Values())
	if err != nil {
		return domain.Grid{}, fmt.Errorf("read %s: %w", variable, err)
	}
	if err := expectShape(variable, shape, len(times), len(lat), len(lon)); err != nil {
		return domain.Grid{}, err
	}
	unpack(values, vg.Attributes())
	g := domain.Grid{Times: times, Lat: lat, Lon: lon, Values: values, Attrs: readAttrs(vg.Attributes())}
	return g, g.Validate()
}

// Year reads only the days of variable that fall in year. The second result
// is false when the file has no such day.
func (r *Reader) Year(variable string, year int) (domain.YearSlice, bool, error) {
	times, err := r.Times()
	if err != nil {
		return domain.YearSlice{}, false, err
	}
	first, last := -1, -1
	for i, t := range times {
		if t.Year() == year {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return domain.YearSlice{}, false, nil
	}

	vg, err := r.variable(variable)
	if err != nil {
		return domain.YearSlice{}, false, err
	}
	lat, lon, err := r.axes(vg)
	if err != nil {
		return domain.YearSlice{}, false, err
	}
	values, shape, err := flatten(vg.GetSlice(int64(first), int64(last+1)))
	if err != nil {
		return domain.YearSlice{}, false, fmt.Errorf("read %s year %d: %w", variable, year, err)
	}
	if err := expectShape(variable, shape, last-first+1, len(lat), len(lon)); err != nil {
		return domain.YearSlice{}, false, err
	}
	unpack(values, vg.Attributes())

	g := domain.Grid{Times: times[first : last+1], Lat: lat, Lon: lon, Values: values, Attrs: readAttrs(vg.Attributes())}
	// A time axis that leaves the year and comes back is read as a block and
	// filtered.
	s, ok := domain.SelectYear(g, year)
	return s, ok, nil
}

// Field reads a (lat, lon) variable. A leading dimension of length one is
// dropped.
func (r *Reader) Field(variable string) (domain.Field, error) {
	vg, err := r.variable(variable)
	if err != nil {
		return domain.Field{}, err
	}
	lat, lon, err := r.axes(vg)
	if err != nil {
		return domain.Field{}, err
	}
	values, shape, err := flatten(vg.Values())
	if err != nil {
		return domain.Field{}, fmt.Errorf("read %s: %w", variable, err)
	}
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 || shape[0] != len(lat) || shape[1] != len(lon) {
		return domain.Field{}, fmt.Errorf("%w: %s has shape %v, want [%d %d]",
			domain.ErrShapeMismatch, variable, shape, len(lat), len(lon))
	}
	unpack(values, vg.Attributes())
	return domain.Field{Lat: lat, Lon: lon, Values: values}, nil
}

// Yearly reads a (year, lat, lon) product variable. The year axis is taken
// from an integer "year" variable, or from the CF time axis when absent.
func (r *Reader) Yearly(variable string) (domain.YearlyGrid, error) {
	vg, err := r.variable(variable)
	if err != nil {
		return domain.YearlyGrid{}, err
	}
	lat, lon, err := r.axes(vg)
	if err != nil {
		return domain.YearlyGrid{}, err
	}
	years, err := r.yearAxis()
	if err != nil {
		return domain.YearlyGrid{}, err
	}
	values, shape, err := flatten(vg.Values())
	if err != nil {
		return domain.YearlyGrid{}, fmt.Errorf("read %s: %w", variable, err)
	}
	if err := expectShape(variable, shape, len(years), len(lat), len(lon)); err != nil {
		return domain.YearlyGrid{}, err
	}
	unpack(values, vg.Attributes())
	return domain.YearlyGrid{
		Name:   variable,
		Attrs:  readAttrs(vg.Attributes()),
		Years:  years,
		Lat:    lat,
		Lon:    lon,
		Values: values,
	}, nil
}

// Variables returns the names of the data variables, leaving out coordinate
// axes.
func (r *Reader) Variables() []string {
	var out []string
	for _, name := range r.nc.ListVariables() {
		if slices.Contains(latNames, name) || slices.Contains(lonNames, name) ||
			slices.Contains(timeNames, name) || slices.Contains(yearNames, name) {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Attributes returns the global attributes.
func (r *Reader) Attributes() domain.Attributes {
	return readAttrs(r.nc.Attributes())
}

func (r *Reader) yearAxis() ([]int, error) {
	if _, vg, err := r.firstVar(yearNames); err == nil {
		raw, _, err := flatten(vg.Values())
		if err != nil {
			return nil, fmt.Errorf("read year axis: %w", err)
		}
		years := make([]int, len(raw))
		for i, v := range raw {
			years[i] = int(v)
		}
		return years, nil
	}
	times, err := r.Times()
	if err != nil {
		return nil, err
	}
	years := make([]int, len(times))
	for i, t := range times {
		years[i] = t.Year()
	}
	return years, nil
}

func (r *Reader) variable(name string) (api.VarGetter, error) {
	vg, err := r.nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrMissingVariable, name, r.path)
	}
	return vg, nil
}

func (r *Reader) firstVar(names []string) (string, api.VarGetter, error) {
	for _, n := range names {
		if vg, err := r.nc.GetVarGetter(n); err == nil {
			return n, vg, nil
		}
	}
	return "", nil, fmt.Errorf("%w: none of %v in %s", domain.ErrMissingVariable, names, r.path)
}

// axes reads the lat and lon coordinates of vg, preferring the variable's own
// trailing dimension names.
func (r *Reader) axes(vg api.VarGetter) ([]float64, []float64, error) {
	dims := vg.Dimensions()
	latCands, lonCands := latNames, lonNames
	if n := len(dims); n >= 2 {
		latCands = append([]string{dims[n-2]}, latNames...)
		lonCands = append([]string{dims[n-1]}, lonNames...)
	}
	lat, err := r.coord(latCands)
	if err != nil {
		return nil, nil, err
	}
	lon, err := r.coord(lonCands)
	if err != nil {
		return nil, nil, err
	}
	return lat, lon, nil
}

func (r *Reader) coord(names []string) ([]float64, error) {
	name, vg, err := r.firstVar(names)
	if err != nil {
		return nil, err
	}
	v, shape, err := flatten(vg.Values())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("%w: coordinate %s is not one-dimensional", domain.ErrShapeMismatch, name)
	}
	return v, nil
}

func expectShape(variable string, shape []int, want ...int) error {
	if !slices.Equal(shape, want) {
		return fmt.Errorf("%w: %s has shape %v, want %v", domain.ErrShapeMismatch, variable, shape, want)
	}
	return nil
}

// flatten converts the nested slices returned by the netCDF library into a
// row-major float64 slice and its shape.
func flatten(v any, err error) ([]float64, []int, error) {
	if err != nil {
		return nil, nil, err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		f, ok := scalar(rv)
		if !ok {
			return nil, nil, fmt.Errorf("unsupported value type %T", v)
		}
		return []float64{f}, nil, nil
	}
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	out := make([]float64, 0, product(shape))
	var walk func(reflect.Value) error
	walk = func(x reflect.Value) error {
		if x.Kind() == reflect.Slice {
			for i := range x.Len() {
				if err := walk(x.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
		f, ok := scalar(x)
		if !ok {
			return fmt.Errorf("unsupported element type %s", x.Type())
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	if len(out) != product(shape) {
		return nil, nil, errors.New("ragged array")
	}
	return out, shape, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func scalar(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}

// attrFloat returns the first numeric value of an attribute.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, _, err := flatten(v, nil)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	v, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// unpack replaces fill and missing values with NaN, then applies
// scale_factor and add_offset.
func unpack(values []float64, attrs api.AttributeMap) {
	var fills []float64
	for _, k := range []string{"_FillValue", "missing_value"} {
		if f, ok := attrFloat(attrs, k); ok {
			fills = append(fills, f)
		}
	}
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	for i, v := range values {
		if isFill(v, fills) {
			values[i] = math.NaN()
			continue
		}
		if hasScale || hasOffset {
			values[i] = v*scale + offset
		}
	}
}

// isFill matches v against fill values with float32 tolerance, since a
// float32 variable may carry a float64 fill attribute.
func isFill(v float64, fills []float64) bool {
	for _, f := range fills {
		if v == f || math.Abs(v-f) <= 1e-6*math.Abs(f) {
			return true
		}
	}
	return false
}

func readAttrs(attrs api.AttributeMap) domain.Attributes {
	if attrs == nil {
		return nil
	}
	var out domain.Attributes
	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		switch x := v.(type) {
		case string:
			out.Set(k, x)
		default:
			vals, _, err := flatten(v, nil)
			if err != nil || len(vals) == 0 {
				continue
			}
			if len(vals) == 1 {
				out.Set(k, vals[0])
			} else {
				out.Set(k, vals)
			}
		}
	}
	return out
}
