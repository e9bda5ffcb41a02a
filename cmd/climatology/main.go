// Command climatology writes the per-pixel days of year when a climatological
// SST cycle is coldest and hottest (SSTminmax_DOY.nc). The result is the
// CLIMATOLOGY_FILE reference for relative products.
//
// Usage:
//
//	climatology data/tos_Oday_climatology.nc
package main

import (
	"context"
	"os"

	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/coral-dhw-etl/internal/app"
	"github.com/couchcryptid/coral-dhw-etl/internal/pipeline"
)

func main() {
	os.Exit(app.Main(os.Args, "<SST climatology file>", run))
}

func run(ctx context.Context, env *app.Env, path string) error {
	store := netcdf.NewStore(env.Config.Compress)
	p := pipeline.NewClimatology(store, store, env.Config, env.Logger, env.Metrics)
	env.Serve(p)

	_, err := p.Run(ctx, path)
	return err
}
