package netcdf

import (
	"context"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// Store loads and stores whole datasets by path.
type Store struct {
	Compress bool
}

// NewStore creates a Store. compress selects zstd output.
func NewStore(compress bool) *Store {
	return &Store{Compress: compress}
}

// LoadGrid reads a daily (time, lat, lon) variable.
func (s *Store) LoadGrid(ctx context.Context, path, variable string) (domain.Grid, error) {
	if err := ctx.Err(); err != nil {
		return domain.Grid{}, err
	}
	r, err := Open(path)
	if err != nil {
		return domain.Grid{}, err
	}
	defer r.Close()
	return r.Grid(variable)
}

// LoadField reads a (lat, lon) variable.
func (s *Store) LoadField(ctx context.Context, path, variable string) (domain.Field, error) {
	if err := ctx.Err(); err != nil {
		return domain.Field{}, err
	}
	r, err := Open(path)
	if err != nil {
		return domain.Field{}, err
	}
	defer r.Close()
	return r.Field(variable)
}

// LoadYearly reads a (year, lat, lon) product variable along with the file's
// global attributes.
func (s *Store) LoadYearly(ctx context.Context, path, variable string) (domain.YearlyGrid, domain.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return domain.YearlyGrid{}, nil, err
	}
	r, err := Open(path)
	if err != nil {
		return domain.YearlyGrid{}, nil, err
	}
	defer r.Close()
	y, err := r.Yearly(variable)
	if err != nil {
		return domain.YearlyGrid{}, nil, err
	}
	return y, r.Attributes(), nil
}

// StoreDataset writes ds to path and returns the path written.
func (s *Store) StoreDataset(ctx context.Context, path string, ds domain.Dataset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Write(path, ds, s.Compress)
}
