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

// EnsembleVariable is the variable written to ensemble files.
const EnsembleVariable = "DHW_max"

// Ensemble averages the daily DHW of every model of a scenario and keeps the
// yearly maximum of the mean.
type Ensemble struct {
	status
	members MemberSource
	store   DatasetStore
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEnsemble creates the ensemble pipeline.
func NewEnsemble(members MemberSource, store DatasetStore, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Ensemble {
	return &Ensemble{
		members: members,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run builds the ensemble of scenario over the configured year range and
// returns the path of the written dataset.
func (p *Ensemble) Run(ctx context.Context, scenario string) (string, error) {
	var written string
	err := run(ctx, "ensemble", p.logger, p.metrics, func(ctx context.Context) error {
		var err error
		written, err = p.process(ctx, scenario)
		return err
	})
	return written, err
}

func (p *Ensemble) process(ctx context.Context, scenario string) (string, error) {
	names := p.members.Members()
	if len(names) == 0 {
		return "", fmt.Errorf("%w: scenario %s has no member files", domain.ErrInsufficientData, scenario)
	}
	p.metrics.EnsembleMembers.Set(float64(len(names)))

	all, err := p.members.Years()
	if err != nil {
		return "", err
	}
	var years []int
	for _, y := range all {
		if y >= p.cfg.YearStart && y <= p.cfg.YearEnd {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return "", fmt.Errorf("%w: no member has data in %d-%d", domain.ErrMissingYear, p.cfg.YearStart, p.cfg.YearEnd)
	}
	p.ready.Store(true)
	p.logger.Info("ensemble members found",
		"scenario", scenario,
		"members", len(names),
		"first_year", years[0],
		"last_year", years[len(years)-1],
	)

	fields, err := p.reduceYears(ctx, names, years)
	if err != nil {
		return "", err
	}
	y, err := domain.Stack(EnsembleVariable, years, fields)
	if err != nil {
		return "", err
	}
	y.Attrs = domain.Attributes{
		{Key: "long_name", Value: "Maximum DHW of the ensemble mean"},
		{Key: "units", Value: "degC.week"},
	}

	attrs := domain.Provenance{
		Title:       orDefault(p.cfg.Title, "Ensemble yearly maximum Degree Heating Week"),
		Abstract:    "Yearly maximum of the daily multi-model mean DHW for scenario " + scenario,
		Source:      domain.SourceInfo{Scenario: scenario},
		Author:      p.cfg.Author,
		AuthorEmail: p.cfg.AuthorEmail,
		Citation:    p.cfg.Citation,
		RunID:       uuid.NewString(),
		Years:       years,
	}.Attributes()
	attrs.Set("ensemble_members", memberNames(names))

	out := filepath.Join(p.cfg.OutputDir, scenario+"_ensemble.nc")
	written, err := p.store.StoreDataset(ctx, out, domain.Dataset{Attrs: attrs, Vars: []domain.YearlyGrid{y}})
	if err != nil {
		return "", fmt.Errorf("store %s: %w", out, err)
	}
	p.logger.Info("ensemble written", "path", written, "years", len(years), "members", len(names))
	return written, nil
}

// reduceYears reads members one year at a time and averages each year on a
// bounded worker pool. Reads stay sequential so at most Workers years are
// held in memory. The land mask comes from the first year read, at MaskIndex.
func (p *Ensemble) reduceYears(ctx context.Context, names []string, years []int) ([]domain.Field, error) {
	policy := domain.EnsemblePolicy{MinMembers: p.cfg.EnsembleMinMembers}
	fields := make([]domain.Field, len(years))
	var mask domain.Mask
	bar := newProgress(p.cfg.Progress, len(years), "years ")
	defer bar.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Workers, 1))
	fail := func(err error) ([]domain.Field, error) {
		_ = g.Wait()
		return nil, err
	}

	for i, year := range years {
		if gctx.Err() != nil {
			break
		}
		present := make([]domain.YearSlice, 0, len(names))
		for _, m := range names {
			s, ok, err := p.members.Year(m, year)
			if err != nil {
				return fail(fmt.Errorf("read %s year %d: %w", m, year, err))
			}
			if !ok {
				p.logger.Debug("member lacks year", "member", filepath.Base(m), "year", year)
				continue
			}
			present = append(present, s)
		}
		if err := policy.Admit(year, len(present), len(names)); err != nil {
			return fail(err)
		}
		if len(present) < len(names) {
			p.logger.Warn("year averaged over a partial ensemble", "year", year, "members", len(present), "of", len(names))
		}
		if i == 0 {
			var err error
			if mask, err = domain.BuildLandMask(present[0].Grid, p.cfg.MaskIndex); err != nil {
				return fail(fmt.Errorf("land mask from year %d: %w", year, err))
			}
			p.metrics.MaskedPixels.Set(float64(mask.Plane() - mask.Count()))
		}

		g.Go(func() error {
			f, err := domain.EnsembleYearMax(present, mask)
			if err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
			fields[i] = f
			p.metrics.YearsProcessed.Inc()
			bar.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}

func memberNames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}
