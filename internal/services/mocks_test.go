package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/repository"
)

// MockPropertyRepository is a mock implementation of PropertyRepository for testing
type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) ListBoundaries(ctx context.Context, county string) ([]models.Property, error) {
	args := m.Called(ctx, county)
	parcels, _ := args.Get(0).([]models.Property)
	return parcels, args.Error(1)
}

func (m *MockPropertyRepository) ListByCounty(ctx context.Context, county string) ([]models.Property, error) {
	args := m.Called(ctx, county)
	parcels, _ := args.Get(0).([]models.Property)
	return parcels, args.Error(1)
}

func (m *MockPropertyRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Property, error) {
	args := m.Called(ctx, ids)
	parcels, _ := args.Get(0).([]models.Property)
	return parcels, args.Error(1)
}

func (m *MockPropertyRepository) FindAtPoint(ctx context.Context, lat, lng float64) (*models.Property, error) {
	args := m.Called(ctx, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	parcel, ok := args.Get(0).(*models.Property)
	if !ok {
		return nil, args.Error(1)
	}
	return parcel, args.Error(1)
}

// MockSavedRepository is a mock implementation of SavedRepository for testing
type MockSavedRepository struct {
	mock.Mock
}

func (m *MockSavedRepository) Create(ctx context.Context, propertyID int64, userNumber string) (*models.SavedProperty, error) {
	args := m.Called(ctx, propertyID, userNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavedProperty), args.Error(1)
}

func (m *MockSavedRepository) FindByPropertyID(ctx context.Context, propertyID int64) (*models.SavedProperty, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavedProperty), args.Error(1)
}

func (m *MockSavedRepository) DeleteByPropertyID(ctx context.Context, propertyID int64) (bool, error) {
	args := m.Called(ctx, propertyID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSavedRepository) List(ctx context.Context, filter repository.SavedFilter) ([]models.SavedProperty, error) {
	args := m.Called(ctx, filter)
	saved, _ := args.Get(0).([]models.SavedProperty)
	return saved, args.Error(1)
}

func (m *MockSavedRepository) ListDisplayNumbers(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	numbers, _ := args.Get(0).([]string)
	return numbers, args.Error(1)
}

// MockCountyRepository is a mock implementation of CountyRepository for testing
type MockCountyRepository struct {
	mock.Mock
}

func (m *MockCountyRepository) FindByID(ctx context.Context, id int64) (*models.County, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.County), args.Error(1)
}

func (m *MockCountyRepository) FindByKey(ctx context.Context, key string) (*models.County, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.County), args.Error(1)
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
