package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stwalsh4118/parcelbook/internal/database"
	"github.com/stwalsh4118/parcelbook/internal/models"
)

// PostgreSQL error codes and constraint names the saved repository maps to sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	constraintPropertyUnique = "saved_properties_property_id_key"
	constraintNumberUnique   = "saved_properties_user_number_key"
)

var (
	// ErrDuplicateNumber means another record already holds the display number.
	ErrDuplicateNumber = errors.New("display number already assigned")
	// ErrAlreadySaved means the parcel already has a saved record.
	ErrAlreadySaved = errors.New("property already saved")
	// ErrPropertyNotFound means the parcel id does not exist.
	ErrPropertyNotFound = errors.New("property not found")
)

// SavedFilter narrows List. Zero values mean no filter.
type SavedFilter struct {
	County         string
	CountyID       int64
	IncludeDetails bool
}

// SavedRepository defines data access for saved properties.
type SavedRepository interface {
	// Create inserts a saved record with the given display number.
	Create(ctx context.Context, propertyID int64, userNumber string) (*models.SavedProperty, error)

	// FindByPropertyID returns nil, nil when the parcel is not saved.
	FindByPropertyID(ctx context.Context, propertyID int64) (*models.SavedProperty, error)

	// DeleteByPropertyID reports whether a record was removed.
	DeleteByPropertyID(ctx context.Context, propertyID int64) (bool, error)

	// List returns saved records, newest first.
	List(ctx context.Context, filter SavedFilter) ([]models.SavedProperty, error)

	// ListDisplayNumbers returns every persisted display number starting with "PREFIX-".
	ListDisplayNumbers(ctx context.Context, prefix string) ([]string, error)
}

type savedRepository struct {
	db *database.Database
}

// NewSavedRepository creates a new instance of SavedRepository.
func NewSavedRepository(db *database.Database) SavedRepository {
	return &savedRepository{db: db}
}

func (r *savedRepository) Create(ctx context.Context, propertyID int64, userNumber string) (*models.SavedProperty, error) {
	query := `
		INSERT INTO saved_properties (property_id, user_number)
		VALUES ($1, $2)
		RETURNING id, property_id, user_number, created_at
	`

	var saved models.SavedProperty
	err := r.db.Pool.QueryRow(ctx, query, propertyID, userNumber).
		Scan(&saved.ID, &saved.PropertyID, &saved.UserNumber, &saved.CreatedAt)
	if err != nil {
		return nil, classifyInsertError(err, propertyID, userNumber)
	}

	return &saved, nil
}

func classifyInsertError(err error, propertyID int64, userNumber string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == constraintNumberUnique {
				return fmt.Errorf("%w: %s", ErrDuplicateNumber, userNumber)
			}
			if pgErr.ConstraintName == constraintPropertyUnique {
				return fmt.Errorf("%w: %d", ErrAlreadySaved, propertyID)
			}
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %d", ErrPropertyNotFound, propertyID)
		}
	}
	return fmt.Errorf("failed to insert saved property %d: %w", propertyID, err)
}

func (r *savedRepository) FindByPropertyID(ctx context.Context, propertyID int64) (*models.SavedProperty, error) {
	query := `
		SELECT id, property_id, user_number, created_at
		FROM saved_properties
		WHERE property_id = $1
	`

	var saved models.SavedProperty
	err := r.db.Pool.QueryRow(ctx, query, propertyID).
		Scan(&saved.ID, &saved.PropertyID, &saved.UserNumber, &saved.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query saved property %d: %w", propertyID, err)
	}

	return &saved, nil
}

func (r *savedRepository) DeleteByPropertyID(ctx context.Context, propertyID int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM saved_properties WHERE property_id = $1`, propertyID)
	if err != nil {
		return false, fmt.Errorf("failed to delete saved property %d: %w", propertyID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *savedRepository) List(ctx context.Context, filter SavedFilter) ([]models.SavedProperty, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT s.id, s.property_id, s.user_number, s.created_at,
			p.id, p.prop_id, p.owner_name, p.situs_addr, p.mail_addr,
			p.land_value, p.mkt_value, p.gis_area, p.county, p.county_id
		FROM saved_properties s
		JOIN properties p ON p.id = s.property_id
		WHERE 1 = 1`)

	args := []interface{}{}
	if filter.County != "" {
		args = append(args, filter.County)
		fmt.Fprintf(&sb, " AND p.county = $%d", len(args))
	}
	if filter.CountyID != 0 {
		args = append(args, filter.CountyID)
		fmt.Fprintf(&sb, " AND p.county_id = $%d", len(args))
	}
	sb.WriteString(" ORDER BY s.created_at DESC, s.id DESC")

	rows, err := r.db.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved properties: %w", err)
	}
	defer rows.Close()

	results := []models.SavedProperty{}
	for rows.Next() {
		var s models.SavedProperty
		var p models.Property
		err := rows.Scan(
			&s.ID, &s.PropertyID, &s.UserNumber, &s.CreatedAt,
			&p.ID, &p.PropID, &p.OwnerName, &p.SitusAddr, &p.MailAddr,
			&p.LandValue, &p.MktValue, &p.GisArea, &p.County, &p.CountyID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved property row: %w", err)
		}
		if filter.IncludeDetails {
			s.Property = &p
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved properties: %w", err)
	}

	return results, nil
}

func (r *savedRepository) ListDisplayNumbers(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT user_number
		FROM saved_properties
		WHERE user_number LIKE $1 || '-%'
	`

	rows, err := r.db.Pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query display numbers for %s: %w", prefix, err)
	}
	defer rows.Close()

	numbers := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan display number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating display numbers: %w", err)
	}

	return numbers, nil
}
