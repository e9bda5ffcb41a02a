package domain

// ColdestDay returns, per pixel, the 1-based day of year holding the lowest
// value of a climatological daily cube. Land pixels are NaN.
func ColdestDay(clim Grid, mask Mask) (Field, error) {
	return reducePixels(clim, mask, func(series []float64) float64 {
		return dayOf(argMin(series))
	})
}

// HottestDay returns, per pixel, the 1-based day of year holding the highest
// value of a climatological daily cube. Land pixels are NaN.
func HottestDay(clim Grid, mask Mask) (Field, error) {
	return reducePixels(clim, mask, func(series []float64) float64 {
		return dayOf(argMax(series))
	})
}
