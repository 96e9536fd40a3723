package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/repository"
	"github.com/stwalsh4118/parcelbook/internal/services"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

// MockPropertyService is a mock implementation of services.PropertyService.
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) Boundaries(ctx context.Context, county string, zoom *int) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx, county, zoom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geojson.FeatureCollection), args.Error(1)
}

func (m *MockPropertyService) Properties(ctx context.Context, county string) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx, county)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geojson.FeatureCollection), args.Error(1)
}

func (m *MockPropertyService) Details(ctx context.Context, ids []int64) (map[int64]models.Property, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]models.Property), args.Error(1)
}

func (m *MockPropertyService) Ordered(ctx context.Context, ids []int64) ([]models.Property, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyService) AtPoint(ctx context.Context, lat, lng float64) (*models.Property, error) {
	args := m.Called(ctx, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

var _ services.PropertyService = (*MockPropertyService)(nil)

// MockSavedService is a mock implementation of services.SavedService.
type MockSavedService struct {
	mock.Mock
}

func (m *MockSavedService) Save(ctx context.Context, propertyID int64) (*services.SaveResult, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SaveResult), args.Error(1)
}

func (m *MockSavedService) Unsave(ctx context.Context, propertyID int64) error {
	return m.Called(ctx, propertyID).Error(0)
}

func (m *MockSavedService) List(ctx context.Context, filter repository.SavedFilter) ([]models.SavedProperty, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SavedProperty), args.Error(1)
}

func (m *MockSavedService) NextNumber(ctx context.Context, countyID int64, reserved []string) (string, error) {
	args := m.Called(ctx, countyID, reserved)
	return args.String(0), args.Error(1)
}

var _ services.SavedService = (*MockSavedService)(nil)

// MockTracer is a mock implementation of Tracer.
type MockTracer struct {
	mock.Mock
}

func (m *MockTracer) Run(ctx context.Context, provider string, recs []skiptrace.Record, progress skiptrace.ProgressFunc) ([]skiptrace.Result, error) {
	args := m.Called(ctx, provider, recs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	results := args.Get(0).([]skiptrace.Result)
	if progress != nil {
		for i, r := range results {
			progress(i+1, len(results), r)
		}
	}
	return results, args.Error(1)
}

// setupTestRouter returns a gin engine with the request id and logger middleware.
func setupTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Nop()))
	return router
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }
