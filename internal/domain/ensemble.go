package domain

import (
	"fmt"
	"math"
)

// EnsemblePolicy decides which years an ensemble may average when some
// members lack data for a year.
type EnsemblePolicy struct {
	// MinMembers is the smallest number of members a year may be averaged
	// over. Zero requires every member.
	MinMembers int
}

// Admit returns ErrMissingYear when available members are not enough to
// average year out of total.
func (p EnsemblePolicy) Admit(year, available, total int) error {
	switch {
	case available == 0:
		return fmt.Errorf("%w: %d: no member has data", ErrMissingYear, year)
	case p.MinMembers <= 0 && available < total:
		return fmt.Errorf("%w: %d: %d of %d members have data", ErrMissingYear, year, available, total)
	case p.MinMembers > 0 && available < p.MinMembers:
		return fmt.Errorf("%w: %d: %d members have data, need %d", ErrMissingYear, year, available, p.MinMembers)
	}
	return nil
}

// EnsembleYearMax averages the members day by day and returns, per pixel, the
// maximum of the mean over the year. A day missing in any member is missing
// in the mean. Members must share the same days and coordinates. Pixels
// invalid in mask are NaN.
func EnsembleYearMax(members []YearSlice, mask Mask) (Field, error) {
	if len(members) == 0 {
		return Field{}, fmt.Errorf("%w: empty ensemble", ErrMissingYear)
	}
	first := members[0]
	if err := first.Validate(); err != nil {
		return Field{}, err
	}
	for i, m := range members[1:] {
		if err := alignedWith(first, m); err != nil {
			return Field{}, fmt.Errorf("member %d: %w", i+1, err)
		}
	}

	n := first.Plane()
	if err := checkPlane("mask", mask.Plane(), n); err != nil {
		return Field{}, err
	}
	k := float64(len(members))
	out := NewField(first.Lat, first.Lon)
	for t := range first.Times {
		for p := range n {
			sum := 0.0
			for _, m := range members {
				sum += m.Values[t*n+p]
			}
			mean := sum / k
			if math.IsNaN(mean) {
				continue
			}
			if math.IsNaN(out.Values[p]) || mean > out.Values[p] {
				out.Values[p] = mean
			}
		}
	}
	return mask.Apply(out)
}

// EnsembleAverage builds the ensemble yearly-maximum grid over years, applying
// policy when members lack a year. mask is shared by every year.
func EnsembleAverage(name string, members []Grid, years []int, mask Mask, policy EnsemblePolicy) (YearlyGrid, error) {
	fields := make([]Field, 0, len(years))
	for _, y := range years {
		present := make([]YearSlice, 0, len(members))
		for _, g := range members {
			if s, ok := SelectYear(g, y); ok {
				present = append(present, s)
			}
		}
		if err := policy.Admit(y, len(present), len(members)); err != nil {
			return YearlyGrid{}, err
		}
		f, err := EnsembleYearMax(present, mask)
		if err != nil {
			return YearlyGrid{}, fmt.Errorf("year %d: %w", y, err)
		}
		fields = append(fields, f)
	}
	return Stack(name, years, fields)
}

func alignedWith(ref, g YearSlice) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if !sameAxis(ref.Lat, g.Lat) || !sameAxis(ref.Lon, g.Lon) {
		return fmt.Errorf("%w: lat/lon coordinates differ", ErrShapeMismatch)
	}
	if len(ref.Times) != len(g.Times) {
		return fmt.Errorf("%w: %d days, want %d", ErrShapeMismatch, len(g.Times), len(ref.Times))
	}
	for i := range ref.Times {
		if !ref.Times[i].Equal(g.Times[i]) {
			return fmt.Errorf("%w: day %d is %s, want %s", ErrShapeMismatch, i,
				g.Times[i].Format("2006-01-02"), ref.Times[i].Format("2006-01-02"))
		}
	}
	return nil
}
