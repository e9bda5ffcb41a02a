package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

// Reference file written by the climatology pipeline.
const (
	ClimatologyFile   = "SSTminmax_DOY.nc"
	ColdestDayVarName = "SSTmin_doy"
	HottestDayVarName = "SSTmax_doy"
)

// Climatology finds, per pixel, the days of year when a climatological SST
// cycle is coldest and hottest. The result is the reference for relative
// products.
type Climatology struct {
	status
	src     GridSource
	store   DatasetStore
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClimatology creates the climatology reference pipeline.
func NewClimatology(src GridSource, store DatasetStore, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Climatology {
	return &Climatology{
		src:     src,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run reads the SST variable from path and writes the reference file.
func (p *Climatology) Run(ctx context.Context, path string) (string, error) {
	var written string
	err := run(ctx, "climatology", p.logger, p.metrics, func(ctx context.Context) error {
		var err error
		written, err = p.process(ctx, path)
		return err
	})
	return written, err
}

func (p *Climatology) process(ctx context.Context, path string) (string, error) {
	g, err := p.src.LoadGrid(ctx, path, p.cfg.SSTVariable)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	mask, err := domain.BuildLandMask(g, p.cfg.MaskIndex)
	if err != nil {
		return "", fmt.Errorf("land mask: %w", err)
	}
	p.metrics.MaskedPixels.Set(float64(mask.Plane() - mask.Count()))
	p.ready.Store(true)

	coldest, err := domain.ColdestDay(g, mask)
	if err != nil {
		return "", err
	}
	hottest, err := domain.HottestDay(g, mask)
	if err != nil {
		return "", err
	}

	ds := domain.Dataset{
		Attrs: domain.Provenance{
			Title:       orDefault(p.cfg.Title, "day of the year when SST reaches its minimum/maximum value"),
			Source:      domain.SourceInfo{File: filepath.Base(path)},
			Author:      p.cfg.Author,
			AuthorEmail: p.cfg.AuthorEmail,
			Citation:    p.cfg.Citation,
			RunID:       uuid.NewString(),
		}.Attributes(),
		Vars: []domain.YearlyGrid{
			fieldVar(ColdestDayVarName, "day of the year when SST is minimum", coldest),
			fieldVar(HottestDayVarName, "day of the year when SST is maximum", hottest),
		},
	}
	out := filepath.Join(p.cfg.OutputDir, ClimatologyFile)
	written, err := p.store.StoreDataset(ctx, out, ds)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", out, err)
	}
	p.logger.Info("climatology reference written", "path", written, "days", len(g.Times), "ocean_pixels", mask.Count())
	return written, nil
}

// fieldVar wraps a plane as a variable without a year axis.
func fieldVar(name, longName string, f domain.Field) domain.YearlyGrid {
	return domain.YearlyGrid{
		Name: name,
		Attrs: domain.Attributes{
			{Key: "long_name", Value: longName},
			{Key: "units", Value: "days"},
		},
		Lat:    f.Lat,
		Lon:    f.Lon,
		Values: f.Values,
	}
}
