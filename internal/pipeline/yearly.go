package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

const (
	defaultYearlyTitle = "Yearly Degree Heating Week statistics"

	// compressedExt is stripped from source names before building output names.
	compressedExt = ".zst"
)

// Yearly turns one daily DHW file into a file of yearly per-pixel products.
type Yearly struct {
	status
	src     GridSource
	store   DatasetStore
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewYearly creates the yearly products pipeline.
func NewYearly(src GridSource, store DatasetStore, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Yearly {
	return &Yearly{
		src:     src,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run computes every configured product for each year of the file at path and
// returns the path of the written dataset.
func (p *Yearly) Run(ctx context.Context, path string) (string, error) {
	var written string
	err := run(ctx, "yearly", p.logger, p.metrics, func(ctx context.Context) error {
		var err error
		written, err = p.process(ctx, path)
		return err
	})
	return written, err
}

func (p *Yearly) process(ctx context.Context, path string) (string, error) {
	g, err := p.src.LoadGrid(ctx, path, p.cfg.Variable)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	if p.cfg.PixelMaskFile != "" {
		pixels, err := p.src.LoadField(ctx, p.cfg.PixelMaskFile, p.cfg.PixelMaskVariable)
		if err != nil {
			return "", fmt.Errorf("load pixel mask: %w", err)
		}
		if g, err = domain.ApplyPixelMask(g, pixels); err != nil {
			return "", fmt.Errorf("apply pixel mask %s: %w", p.cfg.PixelMaskFile, err)
		}
	}
	ref, err := p.reference(ctx)
	if err != nil {
		return "", err
	}

	mask, err := domain.BuildLandMask(g, p.cfg.MaskIndex)
	if err != nil {
		return "", fmt.Errorf("land mask: %w", err)
	}
	p.metrics.MaskedPixels.Set(float64(mask.Plane() - mask.Count()))

	products, err := domain.Products(p.cfg.Products, domain.ProductParams{
		Thresholds:  p.cfg.Thresholds,
		Quantile:    p.cfg.Quantile,
		QuantileCap: p.cfg.QuantileCap,
		Reference:   ref,
	})
	if err != nil {
		return "", err
	}
	parts, err := domain.GroupByYear(g)
	if err != nil {
		return "", err
	}
	p.ready.Store(true)
	p.logger.Info("source loaded",
		"path", path,
		"days", len(g.Times),
		"years", len(parts),
		"pixels", g.Plane(),
		"ocean_pixels", mask.Count(),
	)

	t := NewTransformer(products, mask, p.logger, p.metrics)
	fields, err := p.transformYears(ctx, t, parts)
	if err != nil {
		return "", err
	}

	years := make([]int, len(parts))
	for i, s := range parts {
		years[i] = s.Year
	}
	ds := domain.Dataset{Vars: make([]domain.YearlyGrid, 0, len(products))}
	for k, prod := range products {
		perYear := make([]domain.Field, len(parts))
		for i := range parts {
			perYear[i] = fields[i][k]
		}
		y, err := domain.Stack(prod.Name, years, perYear)
		if err != nil {
			return "", fmt.Errorf("stack %s: %w", prod.Name, err)
		}
		y.Attrs = prod.Attrs
		ds.Vars = append(ds.Vars, y)
	}

	info := domain.ParseSourceName(path)
	ds.Attrs = domain.Provenance{
		Title:       orDefault(p.cfg.Title, defaultYearlyTitle),
		Abstract:    "Per-pixel yearly statistics of " + p.cfg.Variable + ": " + productNames(products),
		Source:      info,
		Author:      p.cfg.Author,
		AuthorEmail: p.cfg.AuthorEmail,
		Citation:    p.cfg.Citation,
		RunID:       uuid.NewString(),
		Years:       years,
	}.Attributes()

	out := filepath.Join(p.cfg.OutputDir, p.cfg.OutputPrefix+strings.TrimSuffix(info.File, compressedExt))
	written, err := p.store.StoreDataset(ctx, out, ds)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", out, err)
	}
	p.logger.Info("yearly products written", "path", written, "years", len(years), "products", len(products))
	return written, nil
}

// reference loads the climatological day-of-year field, or returns nil when
// none is configured.
func (p *Yearly) reference(ctx context.Context) (*domain.Field, error) {
	if p.cfg.ClimatologyFile == "" {
		return nil, nil
	}
	f, err := p.src.LoadField(ctx, p.cfg.ClimatologyFile, p.cfg.ClimatologyVariable)
	if err != nil {
		return nil, fmt.Errorf("load climatology: %w", err)
	}
	if p.cfg.ClimatologyFlipLat {
		f = f.FlipLat()
	}
	return &f, nil
}

// transformYears runs t over every slice on a bounded worker pool. Results
// are indexed by slice so the output keeps year order.
func (p *Yearly) transformYears(ctx context.Context, t *YearTransformer, parts []domain.YearSlice) ([][]domain.Field, error) {
	out := make([][]domain.Field, len(parts))
	bar := newProgress(p.cfg.Progress, len(parts), "years ")
	defer bar.Finish()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Workers, 1))
	for i, s := range parts {
		g.Go(func() error {
			fields, err := t.Transform(ctx, s)
			if err != nil {
				return err
			}
			out[i] = fields
			bar.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func productNames(products []domain.Product) string {
	names := make([]string, len(products))
	for i, prod := range products {
		names[i] = prod.Name
	}
	return strings.Join(names, ", ")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
