package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

// YearTransformer reduces one year slice to every configured product.
type YearTransformer struct {
	products []domain.Product
	mask     domain.Mask
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a YearTransformer over the given products. The mask
// is shared by every year of the source grid.
func NewTransformer(products []domain.Product, mask domain.Mask, logger *slog.Logger, metrics *observability.Metrics) *YearTransformer {
	return &YearTransformer{
		products: products,
		mask:     mask,
		logger:   logger,
		metrics:  metrics,
	}
}

// Products returns the products computed for each year.
func (t *YearTransformer) Products() []domain.Product { return t.products }

// Transform returns one field per product, in product order. It is safe to
// call from several goroutines.
func (t *YearTransformer) Transform(ctx context.Context, s domain.YearSlice) ([]domain.Field, error) {
	start := time.Now()
	out := make([]domain.Field, len(t.products))
	for k, prod := range t.products {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := prod.Compute(s, t.mask)
		if err != nil {
			return nil, fmt.Errorf("year %d: %s: %w", s.Year, prod.Name, err)
		}
		out[k] = f
		t.metrics.ProductsComputed.WithLabelValues(prod.Name).Inc()
	}
	t.metrics.YearsProcessed.Inc()
	t.metrics.YearDuration.Observe(time.Since(start).Seconds())
	t.logger.Debug("year processed", "year", s.Year, "days", len(s.Times), "products", len(t.products))
	return out, nil
}
