package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/parcelbook/internal/database"
	"github.com/stwalsh4118/parcelbook/internal/models"
)

// CountyRepository defines data access for county metadata.
type CountyRepository interface {
	// FindByID returns nil, nil when the county does not exist.
	FindByID(ctx context.Context, id int64) (*models.County, error)
	// FindByKey looks a county up by its short key, e.g. "burnet".
	// Returns nil, nil when the county does not exist.
	FindByKey(ctx context.Context, key string) (*models.County, error)
}

type countyRepository struct {
	db *database.Database
}

// NewCountyRepository creates a new instance of CountyRepository.
func NewCountyRepository(db *database.Database) CountyRepository {
	return &countyRepository{db: db}
}

func (r *countyRepository) FindByID(ctx context.Context, id int64) (*models.County, error) {
	return r.findOne(ctx, `SELECT id, key, name FROM counties WHERE id = $1`, id)
}

func (r *countyRepository) FindByKey(ctx context.Context, key string) (*models.County, error) {
	return r.findOne(ctx, `SELECT id, key, name FROM counties WHERE key = $1`, key)
}

func (r *countyRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.County, error) {
	var county models.County
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(&county.ID, &county.Key, &county.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query county %v: %w", arg, err)
	}
	return &county, nil
}
