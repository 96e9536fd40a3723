package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/parcelbook/internal/counties"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/metrics"
	"github.com/stwalsh4118/parcelbook/internal/models"
)

var (
	// ErrCountyNotFound is returned when the county id does not resolve.
	ErrCountyNotFound = errors.New("county not found")
	// ErrNamespaceExhausted means every six-digit number is taken for a prefix.
	ErrNamespaceExhausted = errors.New("display number namespace exhausted")
)

// CountyFinder resolves county metadata. A nil county with a nil error means not found.
type CountyFinder interface {
	FindByID(ctx context.Context, id int64) (*models.County, error)
}

// NumberStore lists the display numbers currently persisted under a prefix.
type NumberStore interface {
	ListDisplayNumbers(ctx context.Context, prefix string) ([]string, error)
}

// Allocator computes the next free display number for a county. It only
// reads; claiming a number is up to whoever persists it.
type Allocator struct {
	counties CountyFinder
	store    NumberStore
	catalog  *counties.Catalog
	log      *logger.Logger
}

// NewAllocator creates an Allocator.
func NewAllocator(finder CountyFinder, store NumberStore, catalog *counties.Catalog, log *logger.Logger) *Allocator {
	return &Allocator{
		counties: finder,
		store:    store,
		catalog:  catalog,
		log:      log.WithComponent("numbering"),
	}
}

// Namespace returns the display number prefix for a county id.
func (a *Allocator) Namespace(ctx context.Context, countyID int64) (string, error) {
	county, err := a.counties.FindByID(ctx, countyID)
	if err != nil {
		return "", fmt.Errorf("failed to look up county %d: %w", countyID, err)
	}
	if county == nil {
		return "", fmt.Errorf("%w: id %d", ErrCountyNotFound, countyID)
	}
	return a.catalog.Prefix(county.Name), nil
}

// Next returns the smallest unused display number for the county, treating
// reserved numbers (selected but not yet saved) as taken.
func (a *Allocator) Next(ctx context.Context, countyID int64, reserved []string) (string, error) {
	prefix, err := a.Namespace(ctx, countyID)
	if err != nil {
		return "", err
	}
	return a.NextInNamespace(ctx, prefix, reserved)
}

// NextInNamespace is Next for an already resolved prefix.
func (a *Allocator) NextInNamespace(ctx context.Context, prefix string, reserved []string) (string, error) {
	persisted, err := a.store.ListDisplayNumbers(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to fetch existing numbers for %s: %w", prefix, err)
	}

	number, err := NextFree(prefix, persisted, reserved)
	if err != nil {
		return "", err
	}

	metrics.NumbersAllocatedTotal.WithLabelValues(prefix).Inc()
	a.log.Debug("Display number computed", map[string]interface{}{
		"prefix":    prefix,
		"number":    number,
		"persisted": len(persisted),
		"reserved":  len(reserved),
	})
	return number, nil
}

// NamespaceForName returns the prefix for a county name without a store lookup.
func (a *Allocator) NamespaceForName(name string) string {
	return a.catalog.Prefix(name)
}
