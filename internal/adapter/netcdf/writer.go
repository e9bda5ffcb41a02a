package netcdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// Write stores ds at path as a classic netCDF file with dimensions
// (year, lat, lon). Variables without years are written on (lat, lon) only.
// With compress, the file is zstd-compressed and ".zst" is appended to path.
// The returned path is the file actually written.
func Write(path string, ds domain.Dataset, compress bool) (string, error) {
	if len(ds.Vars) == 0 {
		return "", fmt.Errorf("%w: dataset has no variables", domain.ErrInvalidArgument)
	}
	years, lat, lon, err := datasetAxes(ds)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dhw-*.nc")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := writeCDF(tmp, ds, years, lat, lon); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if !compress {
		return path, os.Rename(tmp.Name(), path)
	}
	final := path + CompressedExt
	if err := compressFile(tmp.Name(), final); err != nil {
		os.Remove(final)
		return "", err
	}
	return final, nil
}

func datasetAxes(ds domain.Dataset) (years []int, lat, lon []float64, err error) {
	lat, lon = ds.Vars[0].Lat, ds.Vars[0].Lon
	for _, v := range ds.Vars {
		if !slices.Equal(v.Lat, lat) || !slices.Equal(v.Lon, lon) {
			return nil, nil, nil, fmt.Errorf("%w: %s has different coordinates", domain.ErrShapeMismatch, v.Name)
		}
		if len(v.Values) != max(len(v.Years), 1)*len(lat)*len(lon) {
			return nil, nil, nil, fmt.Errorf("%w: %s has %d values", domain.ErrShapeMismatch, v.Name, len(v.Values))
		}
		if len(v.Years) == 0 {
			continue
		}
		if years == nil {
			years = v.Years
		} else if !slices.Equal(years, v.Years) {
			return nil, nil, nil, fmt.Errorf("%w: %s has a different year axis", domain.ErrShapeMismatch, v.Name)
		}
	}
	if len(lat) == 0 || len(lon) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty lat/lon axis", domain.ErrShapeMismatch)
	}
	return years, lat, lon, nil
}

func writeCDF(f *os.File, ds domain.Dataset, years []int, lat, lon []float64) error {
	dims, lengths := []string{"lat", "lon"}, []int{len(lat), len(lon)}
	if years != nil {
		dims, lengths = append([]string{"year"}, dims...), append([]int{len(years)}, lengths...)
	}
	h := cdf.NewHeader(dims, lengths)
	for _, a := range ds.Attrs {
		h.AddAttribute("", a.Key, attrValue(a.Value))
	}

	if years != nil {
		h.AddVariable("year", []string{"year"}, []int32{0})
		h.AddAttribute("year", "long_name", "year")
	}
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddAttribute("lon", "standard_name", "longitude")

	for _, v := range ds.Vars {
		vdims := []string{"lat", "lon"}
		if len(v.Years) > 0 {
			vdims = []string{"year", "lat", "lon"}
		}
		h.AddVariable(v.Name, vdims, []float32{0})
		h.AddAttribute(v.Name, "_FillValue", []float32{float32(math.NaN())})
		for _, a := range v.Attrs {
			if a.Key == "_FillValue" {
				continue
			}
			h.AddAttribute(v.Name, a.Key, attrValue(a.Value))
		}
	}
	h.Define()

	cf, err := cdf.Create(f, h)
	if err != nil {
		return err
	}
	if years != nil {
		y32 := make([]int32, len(years))
		for i, y := range years {
			y32[i] = int32(y)
		}
		if err := writeVar(cf, "year", y32); err != nil {
			return err
		}
	}
	if err := writeVar(cf, "lat", slices.Clone(lat)); err != nil {
		return err
	}
	if err := writeVar(cf, "lon", slices.Clone(lon)); err != nil {
		return err
	}
	for _, v := range ds.Vars {
		data := make([]float32, len(v.Values))
		for i, x := range v.Values {
			data[i] = float32(x)
		}
		if err := writeVar(cf, v.Name, data); err != nil {
			return fmt.Errorf("variable %s: %w", v.Name, err)
		}
	}
	return cdf.UpdateNumRecs(f)
}

func writeVar(f *cdf.File, name string, data any) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data)
	return err
}

// attrValue converts a domain attribute into a type the classic format
// stores: strings, or numeric arrays.
func attrValue(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return []float64{x}
	case float32:
		return []float32{x}
	case int:
		return []int32{int32(x)}
	case int32:
		return []int32{x}
	case []float64:
		return x
	case []int:
		out := make([]int32, len(x))
		for i, n := range x {
			out[i] = int32(n)
		}
		return out
	default:
		return fmt.Sprint(x)
	}
}

// TimeUnits is the CF time encoding used for daily grids written here.
const TimeUnits = "days since 1850-01-01 00:00:00"

// WriteGrid stores a daily grid as variable on (time, lat, lon), with a
// standard-calendar time axis in TimeUnits. attrs become global attributes.
func WriteGrid(path, variable string, g domain.Grid, attrs domain.Attributes) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if len(g.Times) == 0 {
		return fmt.Errorf("%w: grid has no days", domain.ErrInvalidArgument)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeGridCDF(f, variable, g, attrs); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeGridCDF(f *os.File, variable string, g domain.Grid, attrs domain.Attributes) error {
	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{len(g.Times), len(g.Lat), len(g.Lon)})
	for _, a := range attrs {
		h.AddAttribute("", a.Key, attrValue(a.Value))
	}
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", TimeUnits)
	h.AddAttribute("time", "calendar", calStandard)
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable(variable, []string{"time", "lat", "lon"}, []float32{0})
	h.AddAttribute(variable, "_FillValue", []float32{float32(math.NaN())})
	for _, a := range g.Attrs {
		if a.Key == "_FillValue" {
			continue
		}
		h.AddAttribute(variable, a.Key, attrValue(a.Value))
	}
	h.Define()

	cf, err := cdf.Create(f, h)
	if err != nil {
		return err
	}
	epoch := time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := make([]float64, len(g.Times))
	for i, t := range g.Times {
		days[i] = t.Sub(epoch).Hours() / 24
	}
	if err := writeVar(cf, "time", days); err != nil {
		return err
	}
	if err := writeVar(cf, "lat", slices.Clone(g.Lat)); err != nil {
		return err
	}
	if err := writeVar(cf, "lon", slices.Clone(g.Lon)); err != nil {
		return err
	}
	data := make([]float32, len(g.Values))
	for i, x := range g.Values {
		data[i] = float32(x)
	}
	if err := writeVar(cf, variable, data); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(f)
}
