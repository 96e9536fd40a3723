package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/metrics"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/numbering"
	"github.com/stwalsh4118/parcelbook/internal/repository"
)

const (
	// DefaultMaxRetries is how many display numbers Save tries before giving up.
	DefaultMaxRetries = 5
	// DefaultLockWait bounds how long Save waits for the county's numbering lock.
	DefaultLockWait = 10 * time.Second
)

var (
	// ErrPropertyNotFound means the parcel to save does not exist.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrNotSaved means there is no saved record for the parcel.
	ErrNotSaved = errors.New("property is not saved")
	// ErrAllocationConflict means every attempt collided with a concurrently saved number.
	ErrAllocationConflict = errors.New("could not allocate a unique display number")
	// ErrCountyNotFound means the county id does not exist.
	ErrCountyNotFound = errors.New("county not found")
	// ErrNamespaceBusy means another save held the county's numbering lock for too long.
	ErrNamespaceBusy = errors.New("display numbering is busy")
)

// SaveResult is the outcome of Save. AlreadySaved is true when the record existed before the call.
type SaveResult struct {
	Saved        *models.SavedProperty
	AlreadySaved bool
}

// SavedService defines saved-property operations.
type SavedService interface {
	// Save persists a parcel under the next free display number of its county.
	// Saving an already saved parcel returns the existing record.
	Save(ctx context.Context, propertyID int64) (*SaveResult, error)

	// Unsave deletes the saved record, freeing its number for reuse.
	// Returns ErrNotSaved when there is nothing to delete.
	Unsave(ctx context.Context, propertyID int64) error

	// List returns saved records matching the filter.
	List(ctx context.Context, filter repository.SavedFilter) ([]models.SavedProperty, error)

	// NextNumber previews the next display number for a county, treating
	// reserved numbers as taken. Nothing is claimed.
	NextNumber(ctx context.Context, countyID int64, reserved []string) (string, error)
}

type savedService struct {
	saved      repository.SavedRepository
	properties repository.PropertyRepository
	allocator  *numbering.Allocator
	locker     numbering.Locker
	maxRetries int
	lockWait   time.Duration
	log        *logger.Logger
}

// NewSavedService creates a new instance of SavedService.
func NewSavedService(
	saved repository.SavedRepository,
	properties repository.PropertyRepository,
	allocator *numbering.Allocator,
	locker numbering.Locker,
	maxRetries int,
	log *logger.Logger,
) SavedService {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &savedService{
		saved:      saved,
		properties: properties,
		allocator:  allocator,
		locker:     locker,
		maxRetries: maxRetries,
		lockWait:   DefaultLockWait,
		log:        log,
	}
}

func (s *savedService) Save(ctx context.Context, propertyID int64) (*SaveResult, error) {
	existing, err := s.saved.FindByPropertyID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to check saved state: %w", err)
	}
	if existing != nil {
		return &SaveResult{Saved: existing, AlreadySaved: true}, nil
	}

	found, err := s.properties.FindByIDs(ctx, []int64{propertyID})
	if err != nil {
		return nil, fmt.Errorf("failed to load property %d: %w", propertyID, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrPropertyNotFound, propertyID)
	}
	property := found[0]

	prefix, err := s.namespace(ctx, &property)
	if err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	unlock, err := s.locker.Lock(lockCtx, prefix)
	cancel()
	if err != nil {
		if errors.Is(err, numbering.ErrLockTimeout) {
			s.log.Warn("Timed out waiting for numbering lock", map[string]interface{}{
				"property_id": propertyID,
				"namespace":   prefix,
			})
			return nil, fmt.Errorf("%w: %v", ErrNamespaceBusy, err)
		}
		return nil, fmt.Errorf("failed to lock namespace %s: %w", prefix, err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		number, err := s.allocator.NextInNamespace(ctx, prefix, nil)
		if err != nil {
			if errors.Is(err, numbering.ErrNamespaceExhausted) {
				return nil, fmt.Errorf("%w: %v", ErrAllocationConflict, err)
			}
			return nil, fmt.Errorf("failed to allocate display number: %w", err)
		}

		created, err := s.saved.Create(ctx, propertyID, number)
		switch {
		case err == nil:
			created.Property = &property
			s.log.Info("Property saved", map[string]interface{}{
				"property_id": propertyID,
				"number":      number,
				"attempt":     attempt,
			})
			return &SaveResult{Saved: created}, nil

		case errors.Is(err, repository.ErrDuplicateNumber):
			metrics.AllocationConflictsTotal.WithLabelValues(prefix).Inc()
			s.log.Warn("Display number taken concurrently, retrying", map[string]interface{}{
				"property_id": propertyID,
				"number":      number,
				"attempt":     attempt,
			})
			continue

		case errors.Is(err, repository.ErrAlreadySaved):
			winner, findErr := s.saved.FindByPropertyID(ctx, propertyID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load concurrently saved record: %w", findErr)
			}
			if winner == nil {
				return nil, fmt.Errorf("failed to load concurrently saved record %d", propertyID)
			}
			return &SaveResult{Saved: winner, AlreadySaved: true}, nil

		case errors.Is(err, repository.ErrPropertyNotFound):
			return nil, fmt.Errorf("%w: %d", ErrPropertyNotFound, propertyID)

		default:
			s.log.Error("Failed to save property", err, map[string]interface{}{"property_id": propertyID})
			return nil, fmt.Errorf("failed to save property: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", ErrAllocationConflict, prefix, s.maxRetries)
}

// namespace prefers the county foreign key and falls back to the county name.
func (s *savedService) namespace(ctx context.Context, p *models.Property) (string, error) {
	if p.CountyID != nil {
		prefix, err := s.allocator.Namespace(ctx, *p.CountyID)
		if err == nil {
			return prefix, nil
		}
		if !errors.Is(err, numbering.ErrCountyNotFound) {
			return "", err
		}
	}
	return s.allocator.NamespaceForName(p.County), nil
}

func (s *savedService) Unsave(ctx context.Context, propertyID int64) error {
	deleted, err := s.saved.DeleteByPropertyID(ctx, propertyID)
	if err != nil {
		s.log.Error("Failed to unsave property", err, map[string]interface{}{"property_id": propertyID})
		return fmt.Errorf("failed to unsave property: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %d", ErrNotSaved, propertyID)
	}

	s.log.Info("Property unsaved", map[string]interface{}{"property_id": propertyID})
	return nil
}

func (s *savedService) List(ctx context.Context, filter repository.SavedFilter) ([]models.SavedProperty, error) {
	saved, err := s.saved.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved properties: %w", err)
	}
	return saved, nil
}

func (s *savedService) NextNumber(ctx context.Context, countyID int64, reserved []string) (string, error) {
	number, err := s.allocator.Next(ctx, countyID, reserved)
	if err != nil {
		if errors.Is(err, numbering.ErrCountyNotFound) {
			return "", fmt.Errorf("%w: %d", ErrCountyNotFound, countyID)
		}
		if errors.Is(err, numbering.ErrNamespaceExhausted) {
			return "", fmt.Errorf("%w: %v", ErrAllocationConflict, err)
		}
		return "", fmt.Errorf("failed to compute next number: %w", err)
	}
	return number, nil
}
