package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/parcelbook/internal/database"
	"github.com/stwalsh4118/parcelbook/internal/models"
)

// PropertyRepository defines the interface for parcel data access operations.
type PropertyRepository interface {
	// ListBoundaries returns id, propId and geometry for every parcel in a county,
	// ordered by id so repeated loads produce the same feature order.
	ListBoundaries(ctx context.Context, county string) ([]models.Property, error)

	// ListByCounty returns full parcel records with geometry for a county.
	ListByCounty(ctx context.Context, county string) ([]models.Property, error)

	// FindByIDs returns the parcel records (without geometry) for the given ids.
	// Unknown ids are silently absent from the result.
	FindByIDs(ctx context.Context, ids []int64) ([]models.Property, error)

	// FindAtPoint finds the parcel containing the lat/lng point.
	// Returns nil, nil if no parcel is found.
	FindAtPoint(ctx context.Context, lat, lng float64) (*models.Property, error)
}

type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `
	id,
	prop_id,
	owner_name,
	situs_addr,
	mail_addr,
	land_value,
	mkt_value,
	gis_area,
	county,
	county_id`

func scanProperty(row pgx.Row, p *models.Property, extra ...interface{}) error {
	dest := []interface{}{
		&p.ID,
		&p.PropID,
		&p.OwnerName,
		&p.SitusAddr,
		&p.MailAddr,
		&p.LandValue,
		&p.MktValue,
		&p.GisArea,
		&p.County,
		&p.CountyID,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *propertyRepository) ListBoundaries(ctx context.Context, county string) ([]models.Property, error) {
	query := `
		SELECT id, prop_id, geometry
		FROM properties
		WHERE county = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, county)
	if err != nil {
		return nil, fmt.Errorf("failed to query boundaries for county %s: %w", county, err)
	}
	defer rows.Close()

	results := []models.Property{}
	for rows.Next() {
		var p models.Property
		var geomJSON []byte
		if err := rows.Scan(&p.ID, &p.PropID, &geomJSON); err != nil {
			return nil, fmt.Errorf("failed to scan boundary row: %w", err)
		}
		if err := p.Geometry.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for property %d: %w", p.ID, err)
		}
		p.County = county
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boundary rows: %w", err)
	}

	return results, nil
}

func (r *propertyRepository) ListByCounty(ctx context.Context, county string) ([]models.Property, error) {
	query := `SELECT` + propertyColumns + `, geometry
		FROM properties
		WHERE county = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, county)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties for county %s: %w", county, err)
	}
	defer rows.Close()

	results := []models.Property{}
	for rows.Next() {
		var p models.Property
		var geomJSON []byte
		if err := scanProperty(rows, &p, &geomJSON); err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		if err := p.Geometry.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for property %d: %w", p.ID, err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	return results, nil
}

func (r *propertyRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Property, error) {
	if len(ids) == 0 {
		return []models.Property{}, nil
	}

	query := `SELECT` + propertyColumns + `
		FROM properties
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties by id: %w", err)
	}
	defer rows.Close()

	results := []models.Property{}
	for rows.Next() {
		var p models.Property
		if err := scanProperty(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	return results, nil
}

// FindAtPoint uses PostGIS ST_Contains against the stored GeoJSON outline.
//
// Note: PostGIS functions expect (longitude, latitude) order, not (lat, lng).
func (r *propertyRepository) FindAtPoint(ctx context.Context, lat, lng float64) (*models.Property, error) {
	query := `SELECT` + propertyColumns + `, geometry
		FROM properties
		WHERE ST_Contains(
			ST_SetSRID(ST_GeomFromGeoJSON(geometry), 4326),
			ST_SetSRID(ST_MakePoint($1, $2), 4326)
		)
		LIMIT 1
	`

	var p models.Property
	var geomJSON []byte
	err := scanProperty(r.db.Pool.QueryRow(ctx, query, lng, lat), &p, &geomJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property at point (lat=%f, lng=%f): %w", lat, lng, err)
	}

	if err := p.Geometry.Scan(geomJSON); err != nil {
		return nil, fmt.Errorf("failed to parse geometry for property %d: %w", p.ID, err)
	}

	return &p, nil
}
