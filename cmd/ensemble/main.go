// Command ensemble averages every model file of a scenario directory day by
// day and writes the yearly maximum of the ensemble mean to
// <scenario>_ensemble.nc.
//
// Usage:
//
//	ensemble data/ssp245
//
// The scenario name is SCENARIO when set, otherwise the directory name.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/coral-dhw-etl/internal/app"
	"github.com/couchcryptid/coral-dhw-etl/internal/pipeline"
)

func main() {
	os.Exit(app.Main(os.Args, "<scenario directory>", run))
}

func run(ctx context.Context, env *app.Env, dir string) error {
	cfg := env.Config
	paths, err := memberFiles(dir)
	if err != nil {
		return err
	}

	members := netcdf.NewMemberSet(paths, cfg.Variable, cfg.EnsembleOpenFiles)
	members.OnLookup = func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		env.Metrics.MemberFilesOpened.WithLabelValues(result).Inc()
	}
	defer func() {
		if err := members.Close(); err != nil {
			env.Logger.Error("close member files", "error", err)
		}
	}()

	scenario := cmp.Or(cfg.Scenario, filepath.Base(filepath.Clean(dir)))
	p := pipeline.NewEnsemble(members, netcdf.NewStore(cfg.Compress), cfg, env.Logger, env.Metrics)
	env.Serve(p)

	_, err = p.Run(ctx, scenario)
	return err
}

// memberFiles lists the plain and compressed netCDF files of dir, sorted.
func memberFiles(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.nc", "*.nc" + netcdf.CompressedExt} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no netCDF files in %s", dir)
	}
	slices.Sort(paths)
	return paths, nil
}
