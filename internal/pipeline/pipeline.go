package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

// GridSource reads daily cubes and fixed per-pixel fields.
type GridSource interface {
	LoadGrid(ctx context.Context, path, variable string) (domain.Grid, error)
	LoadField(ctx context.Context, path, variable string) (domain.Field, error)
}

// YearlySource reads a (year, lat, lon) product along with the file's global
// attributes.
type YearlySource interface {
	LoadYearly(ctx context.Context, path, variable string) (domain.YearlyGrid, domain.Attributes, error)
}

// DatasetStore writes a dataset and returns the path actually written.
type DatasetStore interface {
	StoreDataset(ctx context.Context, path string, ds domain.Dataset) (string, error)
}

// MemberSource reads ensemble members one year at a time.
type MemberSource interface {
	Members() []string
	Years() ([]int, error)
	Year(member string, year int) (domain.YearSlice, bool, error)
}

// RegionClipper crops yearly grids to named regions.
type RegionClipper interface {
	Names() []string
	Clip(name string, y domain.YearlyGrid) (domain.YearlyGrid, error)
}

// ReportLoader stores region reports.
type ReportLoader interface {
	LoadReports(ctx context.Context, reports []domain.RegionReport) error
}

// status tracks readiness for the HTTP probes. A pipeline is ready once its
// inputs are loaded and it has started producing output.
type status struct {
	ready atomic.Bool
}

// CheckReadiness returns nil once the run has loaded its inputs.
func (s *status) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("pipeline has not loaded its inputs yet")
	}
	return nil
}

// run wraps one pipeline execution with the shared run metrics.
func run(ctx context.Context, name string, logger *slog.Logger, metrics *observability.Metrics, fn func(context.Context) error) error {
	start := time.Now()
	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	err := fn(ctx)
	metrics.RunDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RunFailures.Inc()
		logger.Error("pipeline failed", "pipeline", name, "error", err)
		return err
	}
	logger.Info("pipeline finished", "pipeline", name, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// progress is a terminal progress bar. The zero value is disabled.
type progress struct {
	bar *pb.ProgressBar
}

// progressOutput is where progress bars are drawn.
var progressOutput io.Writer = os.Stderr

func newProgress(enabled bool, total int, prefix string) *progress {
	if !enabled || total <= 0 {
		return &progress{}
	}
	bar := pb.New(total).Prefix(prefix)
	bar.Output = progressOutput
	bar.ShowCounters = true
	bar.ShowTimeLeft = true
	bar.Start()
	return &progress{bar: bar}
}

func (p *progress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
