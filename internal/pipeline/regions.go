package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

// Sink is a named report store. The name labels the summaries_stored metric.
type Sink struct {
	Name   string
	Loader ReportLoader
}

// Regions clips a yearly product file to every region, summarizes each
// region per year and fits a linear trend to one statistic.
type Regions struct {
	status
	src     YearlySource
	clipper RegionClipper
	store   DatasetStore
	sinks   []Sink
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRegions creates the region summary pipeline. Clipped grids are written
// through store when WriteClipped is set; reports go to every sink.
func NewRegions(src YearlySource, clipper RegionClipper, store DatasetStore, sinks []Sink, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Regions {
	return &Regions{
		src:     src,
		clipper: clipper,
		store:   store,
		sinks:   sinks,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run summarizes the yearly product at path and returns one report per region
// that contains at least one pixel centre.
func (p *Regions) Run(ctx context.Context, path string) ([]domain.RegionReport, error) {
	var reports []domain.RegionReport
	err := run(ctx, "regions", p.logger, p.metrics, func(ctx context.Context) error {
		var err error
		reports, err = p.process(ctx, path)
		return err
	})
	return reports, err
}

func (p *Regions) process(ctx context.Context, path string) ([]domain.RegionReport, error) {
	y, attrs, err := p.src.LoadYearly(ctx, path, p.cfg.SummaryVariable)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	names := p.clipper.Names()
	p.ready.Store(true)
	p.logger.Info("yearly product loaded", "path", path, "variable", y.Name, "years", len(y.Years), "regions", len(names))

	source := strings.TrimSuffix(filepath.Base(path), compressedExt)
	runID := uuid.NewString()
	bar := newProgress(p.cfg.Progress, len(names), "regions ")
	defer bar.Finish()

	var reports []domain.RegionReport
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report, err := p.summarize(ctx, name, y, attrs, source, runID)
		bar.Increment()
		if errors.Is(err, domain.ErrInsufficientData) {
			p.logger.Warn("region skipped", "region", name, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		reports = append(reports, report)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: no region overlaps %s", domain.ErrInsufficientData, path)
	}
	p.metrics.RegionSummaries.Add(float64(len(reports)))

	if err := p.load(ctx, reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (p *Regions) summarize(ctx context.Context, name string, y domain.YearlyGrid, attrs domain.Attributes, source, runID string) (domain.RegionReport, error) {
	clipped, err := p.clipper.Clip(name, y)
	if err != nil {
		return domain.RegionReport{}, err
	}
	sum, err := domain.Summarize(clipped, p.cfg.SummaryQuantiles)
	if err != nil {
		return domain.RegionReport{}, err
	}
	report := domain.RegionReport{
		RunID:     runID,
		Source:    source,
		Region:    name,
		Statistic: p.cfg.TrendStatistic,
		Summary:   sum,
	}

	years, values, err := sum.Series(p.cfg.TrendStatistic)
	if err != nil {
		return domain.RegionReport{}, err
	}
	trend, err := domain.FitTrend(years, values)
	switch {
	case err == nil:
		report.Trend = &trend
	case errors.Is(err, domain.ErrInsufficientData):
		p.logger.Debug("no trend for region", "region", name, "reason", err)
	default:
		return domain.RegionReport{}, err
	}

	if p.cfg.WriteClipped && p.store != nil {
		a := slices.Clone(attrs)
		a.Set("region", name)
		a.Set("run_id", runID)
		out := filepath.Join(p.cfg.OutputDir, name+"_"+source)
		written, err := p.store.StoreDataset(ctx, out, domain.Dataset{Attrs: a, Vars: []domain.YearlyGrid{clipped}})
		if err != nil {
			return domain.RegionReport{}, fmt.Errorf("store %s: %w", out, err)
		}
		p.logger.Debug("clipped grid written", "region", name, "path", written)
	}

	p.logger.Info("region summarized", "region", name, "years", len(sum.Rows), "trend", report.Trend != nil)
	return report, nil
}

// load hands the reports to every sink in order. Any sink failure fails the
// run.
func (p *Regions) load(ctx context.Context, reports []domain.RegionReport) error {
	rows := 0
	for _, r := range reports {
		rows += len(r.Summary.Rows)
	}
	for _, s := range p.sinks {
		if err := s.Loader.LoadReports(ctx, reports); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		p.metrics.SummariesStored.WithLabelValues(s.Name).Add(float64(rows))
		p.logger.Info("region reports stored", "sink", s.Name, "reports", len(reports), "rows", rows)
	}
	return nil
}
