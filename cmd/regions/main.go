// Command regions clips a yearly products file to every region of a
// shapefile, writes one clipped file per region and stores per-year summary
// tables and trends in SQLite and/or Kafka.
//
// Usage:
//
//	REGIONS_SHAPEFILE=IPCC-WGI-reference-regions-v4.shp \
//	SQLITE_PATH=summaries.db \
//	  regions out/DHW_ssp245_EC-Earth3_DHW.nc
package main

import (
	"context"
	"errors"
	"os"

	kafkaadapter "github.com/couchcryptid/coral-dhw-etl/internal/adapter/kafka"
	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/region"
	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/coral-dhw-etl/internal/app"
	"github.com/couchcryptid/coral-dhw-etl/internal/pipeline"
)

func main() {
	os.Exit(app.Main(os.Args, "<yearly products file>", run))
}

func run(ctx context.Context, env *app.Env, path string) error {
	cfg := env.Config
	if cfg.RegionsShapefile == "" {
		return errors.New("REGIONS_SHAPEFILE is required")
	}
	regions, err := region.Load(cfg.RegionsShapefile, region.Options{
		NameField:    cfg.RegionNameField,
		AcronymField: cfg.RegionAcronymField,
		Prefix:       cfg.RegionPrefix,
	})
	if err != nil {
		return err
	}
	env.Logger.Info("regions loaded", "shapefile", cfg.RegionsShapefile, "regions", len(regions.Names()))

	var sinks []pipeline.Sink
	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(ctx, cfg.SQLitePath, env.Logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				env.Logger.Error("sqlite close error", "error", err)
			}
		}()
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: db})
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, env.Logger)
		defer func() {
			if err := writer.Close(); err != nil {
				env.Logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
	}
	if len(sinks) == 0 {
		env.Logger.Warn("no summary sink configured; set SQLITE_PATH or KAFKA_BROKERS")
	}

	store := netcdf.NewStore(cfg.Compress)
	p := pipeline.NewRegions(store, regions, store, sinks, cfg, env.Logger, env.Metrics)
	env.Serve(p)

	_, err = p.Run(ctx, path)
	return err
}
