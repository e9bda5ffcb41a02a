package domain

import "math"

// crossingSentinel stands in for non-qualifying days so they never win the
// minimum search.
var crossingSentinel = math.Inf(1)

type crossingConfig struct {
	ref    *Field
	capQ   float64
	capped bool
}

// CrossingOption adjusts CrossingDay.
type CrossingOption func(*crossingConfig)

// WithReference re-bases the crossing day on a per-pixel reference day of year,
// typically the climatologically coldest day.
func WithReference(ref Field) CrossingOption {
	return func(c *crossingConfig) { c.ref = &ref }
}

// WithQuantileCap ignores values above the q quantile of the whole slice
// before searching for the crossing day.
func WithQuantileCap(q float64) CrossingOption {
	return func(c *crossingConfig) {
		c.capQ = q
		c.capped = true
	}
}

// CrossingDay returns, per pixel, the day of year on which the stress value
// first exceeds threshold.
//
// The crossing day is taken as the day holding the smallest value strictly
// above threshold. DHW accumulates over the warm season, so the smallest
// qualifying value sits next to the crossing. Ties go to the earliest day.
// Pixels that are land or never exceed threshold are NaN. With a reference the
// result is days since the reference day, wrapped into [1, 365].
func CrossingDay(s YearSlice, threshold float64, mask Mask, opts ...CrossingOption) (Field, error) {
	var cfg crossingConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.ref != nil {
		if err := checkPlane("reference", cfg.ref.Plane(), s.Plane()); err != nil {
			return Field{}, err
		}
	}

	ceiling := math.Inf(1)
	if cfg.capped {
		if err := checkQuantile(cfg.capQ); err != nil {
			return Field{}, err
		}
		ceiling = quantileSorted(nonMissing(s.Values), cfg.capQ)
	}

	out, err := reducePixels(s.Grid, mask, func(series []float64) float64 {
		best, day := crossingSentinel, -1
		for t, v := range series {
			if math.IsNaN(v) || v <= threshold || v > ceiling {
				continue
			}
			if v < best {
				best, day = v, t
			}
		}
		return dayOf(day)
	})
	if err != nil {
		return Field{}, err
	}

	if cfg.ref != nil {
		for p, d := range out.Values {
			out.Values[p] = rebaseDay(d, cfg.ref.Values[p])
		}
	}
	return out, nil
}
