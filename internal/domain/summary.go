package domain

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary statistic names accepted by Summary.Series and YearSummary.Stat.
const (
	StatMin    = "min"
	StatMean   = "mean"
	StatMedian = "median"
	StatStd    = "std"
	StatMax    = "max"
)

// YearSummary collapses one year of a region to single numbers. Statistics
// skip missing pixels; a year with no valid pixel has Count 0 and NaN stats.
type YearSummary struct {
	Year      int       `json:"year"`
	Count     int       `json:"count"`
	Min       float64   `json:"min"`
	Mean      float64   `json:"mean"`
	Median    float64   `json:"median"`
	Std       float64   `json:"std"`
	Max       float64   `json:"max"`
	Quantiles []float64 `json:"quantiles"`
}

// Summary is the per-year table for one region and variable.
type Summary struct {
	Variable string        `json:"variable"`
	Levels   []float64     `json:"levels"`
	Rows     []YearSummary `json:"rows"`
}

// QuantileName labels quantile p as a percentile, e.g. 0.05 is "p5".
func QuantileName(p float64) string {
	return "p" + strconv.FormatFloat(math.Round(p*1e4)/1e2, 'f', -1, 64)
}

// Summarize reduces every year of y over (lat, lon) to min, mean, median,
// population standard deviation, max and the requested quantiles.
func Summarize(y YearlyGrid, quantiles []float64) (Summary, error) {
	for _, q := range quantiles {
		if err := checkQuantile(q); err != nil {
			return Summary{}, err
		}
	}
	if want := len(y.Years) * y.Plane(); len(y.Values) != want {
		return Summary{}, fmt.Errorf("%w: %s holds %d values, want %d", ErrShapeMismatch, y.Name, len(y.Values), want)
	}

	s := Summary{Variable: y.Name, Levels: quantiles, Rows: make([]YearSummary, len(y.Years))}
	for i, year := range y.Years {
		s.Rows[i] = summarizeYear(year, y.Field(i).Values, quantiles)
	}
	return s, nil
}

func summarizeYear(year int, values []float64, quantiles []float64) YearSummary {
	xs := nonMissing(values)
	row := YearSummary{Year: year, Count: len(xs), Quantiles: make([]float64, len(quantiles))}
	if len(xs) == 0 {
		nan := math.NaN()
		row.Min, row.Mean, row.Median, row.Std, row.Max = nan, nan, nan, nan, nan
		for i := range row.Quantiles {
			row.Quantiles[i] = nan
		}
		return row
	}
	row.Min = floats.Min(xs)
	row.Max = floats.Max(xs)
	row.Mean, row.Std = stat.PopMeanStdDev(xs, nil)
	row.Median = quantileSorted(xs, 0.5)
	for i, q := range quantiles {
		row.Quantiles[i] = quantileSorted(xs, q)
	}
	return row
}

// Stat returns the named statistic. Quantiles are addressed by QuantileName.
func (r YearSummary) Stat(name string, levels []float64) (float64, bool) {
	switch name {
	case StatMin:
		return r.Min, true
	case StatMean:
		return r.Mean, true
	case StatMedian:
		return r.Median, true
	case StatStd:
		return r.Std, true
	case StatMax:
		return r.Max, true
	}
	for i, q := range levels {
		if QuantileName(q) == name && i < len(r.Quantiles) {
			return r.Quantiles[i], true
		}
	}
	return 0, false
}

// Series returns the years and values of one statistic across the table.
func (s Summary) Series(name string) ([]int, []float64, error) {
	years := make([]int, len(s.Rows))
	values := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		v, ok := r.Stat(name, s.Levels)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown statistic %q", ErrInvalidArgument, name)
		}
		years[i], values[i] = r.Year, v
	}
	return years, values, nil
}

// Trend is a least-squares straight line through a yearly series.
type Trend struct {
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	Years     []int     `json:"years"`
	Observed  []float64 `json:"observed"`
	Predicted []float64 `json:"predicted"`
}

// FitTrend fits value = Intercept + Slope*year by least squares. Missing
// values are left out of the fit; at least two points must remain.
func FitTrend(years []int, values []float64) (Trend, error) {
	if len(years) != len(values) {
		return Trend{}, fmt.Errorf("%w: %d years for %d values", ErrShapeMismatch, len(years), len(values))
	}
	var x, y []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		x = append(x, float64(years[i]))
		y = append(y, v)
	}
	if len(x) < 2 {
		return Trend{}, fmt.Errorf("%w: %d usable points", ErrInsufficientData, len(x))
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	t := Trend{
		Slope:     beta,
		Intercept: alpha,
		Years:     years,
		Observed:  values,
		Predicted: make([]float64, len(years)),
	}
	for i, yr := range years {
		t.Predicted[i] = alpha + beta*float64(yr)
	}
	return t, nil
}

// RegionReport is the summary table and trend of one region, as handed to
// the summary stores.
type RegionReport struct {
	RunID     string  `json:"run_id"`
	Source    string  `json:"source"`
	Region    string  `json:"region"`
	Statistic string  `json:"statistic"`
	Summary   Summary `json:"summary"`
	Trend     *Trend  `json:"trend,omitempty"`
}
