// Command dhwyear reduces a daily DHW model file to yearly per-pixel products
// (maxima, quantiles, threshold crossing days, days above threshold).
//
// Usage:
//
//	dhwyear data/ssp245_EC-Earth3_DHW.nc
//
// Settings come from the environment; see internal/config.
package main

import (
	"context"
	"os"

	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/coral-dhw-etl/internal/app"
	"github.com/couchcryptid/coral-dhw-etl/internal/pipeline"
)

func main() {
	os.Exit(app.Main(os.Args, "<scenario>_<model>_DHW.nc", run))
}

func run(ctx context.Context, env *app.Env, path string) error {
	store := netcdf.NewStore(env.Config.Compress)
	p := pipeline.NewYearly(store, store, env.Config, env.Logger, env.Metrics)
	env.Serve(p)

	_, err := p.Run(ctx, path)
	return err
}
