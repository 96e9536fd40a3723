package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/parcelbook/internal/counties"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
	"github.com/stwalsh4118/parcelbook/internal/repository"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// MaxDetailIDs bounds a single details or export request.
const MaxDetailIDs = 1000

// Service-level errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrParcelNotFound     = errors.New("parcel not found")
	ErrUnknownCounty      = errors.New("unknown county")
	ErrTooManyIDs         = errors.New("too many property ids")
)

// PropertyService defines the business operations over county parcels.
type PropertyService interface {
	// Boundaries returns the county's boundary features. With a zoom the
	// collection is reduced by the zoom policy; without one it is complete.
	// Returns ErrUnknownCounty for counties outside the catalog.
	Boundaries(ctx context.Context, county string, zoom *int) (*geojson.FeatureCollection, error)

	// Properties returns every parcel of a county with full attributes.
	Properties(ctx context.Context, county string) (*geojson.FeatureCollection, error)

	// Details returns parcel records keyed by id. Missing ids are absent.
	Details(ctx context.Context, ids []int64) (map[int64]models.Property, error)

	// Ordered returns parcel records in the order of ids, skipping unknown ones.
	Ordered(ctx context.Context, ids []int64) ([]models.Property, error)

	// AtPoint returns the parcel containing the point.
	// Returns ErrInvalidCoordinates or ErrParcelNotFound.
	AtPoint(ctx context.Context, lat, lng float64) (*models.Property, error)
}

type propertyService struct {
	repo    repository.PropertyRepository
	cache   *parcelcache.Cache
	catalog *counties.Catalog
	log     *logger.Logger
}

// NewPropertyService creates a new instance of PropertyService. Boundary
// collections are served from cache, which should load through BoundaryLoader.
func NewPropertyService(repo repository.PropertyRepository, cache *parcelcache.Cache, catalog *counties.Catalog, log *logger.Logger) PropertyService {
	return &propertyService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		log:     log,
	}
}

// BoundaryLoader adapts the property repository to the parcel cache.
func BoundaryLoader(repo repository.PropertyRepository) parcelcache.Loader {
	return parcelcache.LoaderFunc(func(ctx context.Context, county string) (*geojson.FeatureCollection, error) {
		parcels, err := repo.ListBoundaries(ctx, county)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		for i := range parcels {
			if parcels[i].Geometry.IsEmpty() {
				continue
			}
			fc.Append(parcels[i].BoundaryFeature())
		}
		return fc, nil
	})
}

func (s *propertyService) resolveCounty(county string) (string, error) {
	entry, ok := s.catalog.Lookup(county)
	if !ok {
		s.log.Warn("Unknown county requested", map[string]interface{}{"county": county})
		return "", fmt.Errorf("%w: %q", ErrUnknownCounty, county)
	}
	return entry.Key, nil
}

func (s *propertyService) Boundaries(ctx context.Context, county string, zoom *int) (*geojson.FeatureCollection, error) {
	key, err := s.resolveCounty(county)
	if err != nil {
		return nil, err
	}

	entry, err := s.cache.Load(ctx, key)
	if err != nil {
		s.log.Error("Failed to load boundaries", err, map[string]interface{}{"county": key})
		return nil, fmt.Errorf("failed to load boundaries: %w", err)
	}

	if zoom == nil {
		return entry.Features, nil
	}
	return s.cache.Policy().Filter(entry.Features, *zoom), nil
}

func (s *propertyService) Properties(ctx context.Context, county string) (*geojson.FeatureCollection, error) {
	key, err := s.resolveCounty(county)
	if err != nil {
		return nil, err
	}

	parcels, err := s.repo.ListByCounty(ctx, key)
	if err != nil {
		s.log.Error("Failed to list properties", err, map[string]interface{}{"county": key})
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for i := range parcels {
		if parcels[i].Geometry.IsEmpty() {
			continue
		}
		fc.Append(parcels[i].DetailFeature())
	}

	s.log.Info("Properties listed", map[string]interface{}{
		"county": key,
		"count":  len(fc.Features),
	})
	return fc, nil
}

func (s *propertyService) Details(ctx context.Context, ids []int64) (map[int64]models.Property, error) {
	parcels, err := s.find(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]models.Property, len(parcels))
	for _, p := range parcels {
		out[p.ID] = p
	}
	return out, nil
}

func (s *propertyService) Ordered(ctx context.Context, ids []int64) ([]models.Property, error) {
	byID, err := s.Details(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Property, 0, len(byID))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	return out, nil
}

func (s *propertyService) find(ctx context.Context, ids []int64) ([]models.Property, error) {
	if len(ids) > MaxDetailIDs {
		return nil, fmt.Errorf("%w: %d requested, limit is %d", ErrTooManyIDs, len(ids), MaxDetailIDs)
	}
	if len(ids) == 0 {
		return []models.Property{}, nil
	}

	parcels, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		s.log.Error("Failed to fetch property details", err, map[string]interface{}{"count": len(ids)})
		return nil, fmt.Errorf("failed to fetch property details: %w", err)
	}
	return parcels, nil
}

func (s *propertyService) AtPoint(ctx context.Context, lat, lng float64) (*models.Property, error) {
	if lat < MinLatitude || lat > MaxLatitude {
		s.log.Warn("Invalid latitude provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		s.log.Warn("Invalid longitude provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}

	parcel, err := s.repo.FindAtPoint(ctx, lat, lng)
	if err != nil {
		s.log.Error("Failed to query parcel at point", err, map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, fmt.Errorf("failed to query parcel: %w", err)
	}

	// Repository returns nil, nil when no parcel found
	if parcel == nil {
		s.log.Debug("No parcel found at point", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, ErrParcelNotFound
	}

	s.log.Info("Parcel found at point", map[string]interface{}{
		"lat":       lat,
		"lng":       lng,
		"parcel_id": parcel.ID,
	})
	return parcel, nil
}
