// Package domain derives yearly coral bleaching-risk indicators from daily
// Degree Heating Week (DHW) grids produced by climate models.
//
// # Data Source
//
// Model files carry one daily DHW cube per model and emissions scenario,
// named "<scenario>_<model>_DHW.nc" (e.g. "ssp245_EC-Earth3_DHW.nc"). Values
// are in degree Celsius-weeks; land and missing pixels hold no value.
//
// # Conventions
//
// Missing values:
//
//	Every grid and derived field uses NaN as the missing marker. Zero is a
//	real result (zero stress, zero days above a threshold) and never means land.
//
// Land mask:
//
//	A pixel is ocean when it holds a value at a representative time step,
//	the second record by default (see [DefaultMaskIndex]). The mask is built
//	once per source grid and every product from that grid goes through it.
//
// Day of year:
//
//	Days are 1-based positions within the year slice. Relative days are
//	re-based on a per-pixel climatological reference day and wrapped:
//
//	  relative = day - reference, plus 365 when the difference is <= 0
//
//	so relative values always fall in [1, 365].
//
// Threshold crossing:
//
//	The first day above a threshold is the day holding the smallest value
//	strictly above it. DHW accumulates through the warm season, so that
//	value sits next to the crossing. This is not a literal earliest-index
//	search and results depend on that definition. See [CrossingDay].
//
// Thresholds:
//
//	  4 degC-weeks  significant bleaching expected
//	  8 degC-weeks  widespread bleaching and mortality expected
//
// Ensembles:
//
//	Members of one scenario are averaged day by day, then reduced to the
//	yearly maximum of the mean. Members must align exactly on days and
//	coordinates. [EnsemblePolicy] decides what happens when a member lacks
//	a year.
//
// Region summaries:
//
//	A region's yearly grid collapses to min, mean, median, population
//	standard deviation, max and linear-interpolated quantiles per year,
//	skipping missing pixels. [FitTrend] fits a least-squares line through
//	one of those series.
package domain
