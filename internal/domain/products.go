package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Product names accepted by Products.
const (
	ProductMax       = "max"
	ProductMin       = "min"
	ProductQuantile  = "quantile"
	ProductDayMax    = "daymax"
	ProductDayMin    = "daymin"
	ProductDayMaxRel = "daymaxrel"
	ProductDOY       = "doy"
	ProductDOYRel    = "doyrel"
	ProductNDays     = "ndays"
)

// Product computes one yearly output variable from a year slice.
type Product struct {
	Name    string
	Attrs   Attributes
	Compute func(s YearSlice, mask Mask) (Field, error)
}

// ProductParams carries the settings shared by the product builders.
type ProductParams struct {
	Thresholds  []float64
	Quantile    float64
	QuantileCap float64 // 0 disables the cap on crossing searches
	Reference   *Field  // climatology day of year, required by relative products
}

// Products expands product names into the variables they produce. Threshold
// products yield one variable per threshold.
func Products(names []string, p ProductParams) ([]Product, error) {
	var out []Product
	for _, name := range names {
		switch name {
		case ProductMax:
			out = append(out, Product{
				Name:    "DHW_max",
				Attrs:   Attributes{{"long_name", "Maximum DHW"}, {"units", "degC.week"}},
				Compute: YearMax,
			})
		case ProductMin:
			out = append(out, Product{
				Name:    "DHW_min",
				Attrs:   Attributes{{"long_name", "Minimum DHW"}, {"units", "degC.week"}},
				Compute: YearMin,
			})
		case ProductQuantile:
			if err := checkQuantile(p.Quantile); err != nil {
				return nil, err
			}
			q := p.Quantile
			out = append(out, Product{
				Name:  "DHW_q" + quantileSuffix(q),
				Attrs: Attributes{{"long_name", "DHW quantile " + formatNumber(q)}, {"units", "degC.week"}},
				Compute: func(s YearSlice, m Mask) (Field, error) {
					return YearQuantile(s, q, m)
				},
			})
		case ProductDayMax:
			out = append(out, Product{
				Name:    "DOY_DHWmax",
				Attrs:   Attributes{{"long_name", "day of the year of the first yearly DHW maximum"}, {"units", "days"}},
				Compute: DayOfMax,
			})
		case ProductDayMin:
			out = append(out, Product{
				Name:    "DOY_DHWmin",
				Attrs:   Attributes{{"long_name", "day of the year of the first yearly DHW minimum"}, {"units", "days"}},
				Compute: DayOfMin,
			})
		case ProductDayMaxRel:
			if p.Reference == nil {
				return nil, fmt.Errorf("%w: product %q needs a climatology reference", ErrInvalidArgument, name)
			}
			ref := *p.Reference
			out = append(out, Product{
				Name:  "DOYrel_DHWmax",
				Attrs: Attributes{{"long_name", "day of maximum DHW value in a year, relative to climatology"}, {"units", "days"}},
				Compute: func(s YearSlice, m Mask) (Field, error) {
					return DayOfMaxRelative(s, ref, m)
				},
			})
		case ProductDOY, ProductDOYRel:
			prods, err := crossingProducts(name, p)
			if err != nil {
				return nil, err
			}
			out = append(out, prods...)
		case ProductNDays:
			for _, t := range p.Thresholds {
				out = append(out, Product{
					Name:  "nDaysAbove_DHW" + formatNumber(t),
					Attrs: Attributes{{"long_name", "number of days above DHW " + formatNumber(t)}, {"units", "days"}},
					Compute: func(s YearSlice, m Mask) (Field, error) {
						return DaysAbove(s, t, m)
					},
				})
			}
		default:
			return nil, fmt.Errorf("%w: unknown product %q", ErrInvalidArgument, name)
		}
	}
	return out, nil
}

func crossingProducts(name string, p ProductParams) ([]Product, error) {
	relative := name == ProductDOYRel
	if relative && p.Reference == nil {
		return nil, fmt.Errorf("%w: product %q needs a climatology reference", ErrInvalidArgument, name)
	}
	var opts []CrossingOption
	if relative {
		opts = append(opts, WithReference(*p.Reference))
	}
	if p.QuantileCap > 0 {
		opts = append(opts, WithQuantileCap(p.QuantileCap))
	}

	out := make([]Product, 0, len(p.Thresholds))
	for _, t := range p.Thresholds {
		prefix, desc := "DoY_DHW", "absolute first day of the year when DHW reaches "
		if relative {
			prefix, desc = "DoYrel_DHW", "relative first day of the year when DHW reaches "
		}
		out = append(out, Product{
			Name:  prefix + formatNumber(t),
			Attrs: Attributes{{"long_name", desc + formatNumber(t)}, {"units", "days"}},
			Compute: func(s YearSlice, m Mask) (Field, error) {
				return CrossingDay(s, t, m, opts...)
			},
		})
	}
	return out, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quantileSuffix renders 0.99 as "99" and 0.995 as "995".
func quantileSuffix(q float64) string {
	s := formatNumber(q)
	if _, frac, ok := strings.Cut(s, "."); ok {
		return frac
	}
	return s
}
