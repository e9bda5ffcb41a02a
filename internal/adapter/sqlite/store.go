// Package sqlite persists region summary tables and trends.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store writes region reports to a SQLite database.
// It implements pipeline.ReportLoader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it closes the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, err := m.Version()
	if err == nil {
		s.logger.Debug("sqlite schema ready", "version", version)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const upsertSummary = `
INSERT INTO region_summary
    (source, region, variable, year, run_id, pixel_count, min, mean, median, std, max, quantiles)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, region, variable, year) DO UPDATE SET
    run_id = excluded.run_id,
    pixel_count = excluded.pixel_count,
    min = excluded.min,
    mean = excluded.mean,
    median = excluded.median,
    std = excluded.std,
    max = excluded.max,
    quantiles = excluded.quantiles`

const upsertTrend = `
INSERT INTO region_trend
    (source, region, variable, statistic, run_id, slope, intercept, first_year, last_year)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, region, variable, statistic) DO UPDATE SET
    run_id = excluded.run_id,
    slope = excluded.slope,
    intercept = excluded.intercept,
    first_year = excluded.first_year,
    last_year = excluded.last_year`

const deleteTrendPoints = `
DELETE FROM region_trend_point
WHERE source = ? AND region = ? AND variable = ? AND statistic = ?`

const insertTrendPoint = `
INSERT INTO region_trend_point
    (source, region, variable, statistic, year, observed, predicted)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// LoadReports writes every report in a single transaction. Rows for the same
// source, region, variable and year are replaced.
func (s *Store) LoadReports(ctx context.Context, reports []domain.RegionReport) error {
	if len(reports) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	sumStmt, err := tx.PrepareContext(ctx, upsertSummary)
	if err != nil {
		return err
	}
	defer sumStmt.Close()
	trendStmt, err := tx.PrepareContext(ctx, upsertTrend)
	if err != nil {
		return err
	}
	defer trendStmt.Close()
	pointStmt, err := tx.PrepareContext(ctx, insertTrendPoint)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for _, r := range reports {
		for _, row := range r.Summary.Rows {
			qs, err := quantilesJSON(r.Summary.Levels, row.Quantiles)
			if err != nil {
				return err
			}
			if _, err := sumStmt.ExecContext(ctx,
				r.Source, r.Region, r.Summary.Variable, row.Year, r.RunID, row.Count,
				nullable(row.Min), nullable(row.Mean), nullable(row.Median), nullable(row.Std), nullable(row.Max),
				qs,
			); err != nil {
				return fmt.Errorf("store summary %s %d: %w", r.Region, row.Year, err)
			}
		}
		if r.Trend == nil || len(r.Trend.Years) == 0 {
			continue
		}
		if _, err := trendStmt.ExecContext(ctx,
			r.Source, r.Region, r.Summary.Variable, r.Statistic, r.RunID,
			r.Trend.Slope, r.Trend.Intercept, r.Trend.Years[0], r.Trend.Years[len(r.Trend.Years)-1],
		); err != nil {
			return fmt.Errorf("store trend %s: %w", r.Region, err)
		}
		if err := storeTrendPoints(ctx, tx, pointStmt, r); err != nil {
			return fmt.Errorf("store trend points %s: %w", r.Region, err)
		}
	}
	return tx.Commit()
}

// Summaries returns the stored rows for one region and variable, by year.
func (s *Store) Summaries(ctx context.Context, source, region, variable string) ([]domain.YearSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, pixel_count, min, mean, median, std, max
		FROM region_summary
		WHERE source = ? AND region = ? AND variable = ?
		ORDER BY year`, source, region, variable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.YearSummary
	for rows.Next() {
		var r domain.YearSummary
		var minV, meanV, medV, stdV, maxV sql.NullFloat64
		if err := rows.Scan(&r.Year, &r.Count, &minV, &meanV, &medV, &stdV, &maxV); err != nil {
			return nil, err
		}
		r.Min, r.Mean, r.Median, r.Std, r.Max = value(minV), value(meanV), value(medV), value(stdV), value(maxV)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trend returns the stored slope and intercept for one region series.
func (s *Store) Trend(ctx context.Context, source, region, variable, statistic string) (slope, intercept float64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT slope, intercept FROM region_trend
		WHERE source = ? AND region = ? AND variable = ? AND statistic = ?`,
		source, region, variable, statistic).Scan(&slope, &intercept)
	return slope, intercept, err
}

// storeTrendPoints replaces the observed and predicted series of a report's
// trend. Years without a prediction are skipped.
func storeTrendPoints(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, r domain.RegionReport) error {
	if _, err := tx.ExecContext(ctx, deleteTrendPoints,
		r.Source, r.Region, r.Summary.Variable, r.Statistic); err != nil {
		return err
	}
	t := r.Trend
	for i, year := range t.Years {
		if i >= len(t.Predicted) {
			break
		}
		observed := sql.NullFloat64{}
		if i < len(t.Observed) {
			observed = nullable(t.Observed[i])
		}
		if _, err := stmt.ExecContext(ctx,
			r.Source, r.Region, r.Summary.Variable, r.Statistic, year, observed, t.Predicted[i],
		); err != nil {
			return err
		}
	}
	return nil
}

// TrendPoints returns the stored trend series for one region, by year.
// Missing observations are NaN.
func (s *Store) TrendPoints(ctx context.Context, source, region, variable, statistic string) (years []int, observed, predicted []float64, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, observed, predicted FROM region_trend_point
		WHERE source = ? AND region = ? AND variable = ? AND statistic = ?
		ORDER BY year`, source, region, variable, statistic)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var year int
		var obs sql.NullFloat64
		var pred float64
		if err := rows.Scan(&year, &obs, &pred); err != nil {
			return nil, nil, nil, err
		}
		years = append(years, year)
		observed = append(observed, value(obs))
		predicted = append(predicted, pred)
	}
	return years, observed, predicted, rows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func value(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// quantilesJSON renders quantiles as {"p5": 1.2, ...}; missing values are null.
func quantilesJSON(levels, values []float64) (string, error) {
	m := make(map[string]*float64, len(levels))
	for i, p := range levels {
		if i >= len(values) || math.IsNaN(values[i]) {
			m[domain.QuantileName(p)] = nil
			continue
		}
		v := values[i]
		m[domain.QuantileName(p)] = &v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("serialize quantiles: %w", err)
	}
	return string(b), nil
}
