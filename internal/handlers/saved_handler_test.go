package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/parcelbook/internal/errors"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/repository"
	"github.com/stwalsh4118/parcelbook/internal/services"
)

func setupSavedRouter(svc *MockSavedService) http.Handler {
	handler := NewSavedHandler(svc)
	router := setupTestRouter()
	v1 := router.Group("/api/v1")
	v1.GET("/saved", handler.List)
	v1.POST("/saved", handler.Save)
	v1.DELETE("/saved/:propertyId", handler.Unsave)
	v1.GET("/counties/:id/next-number", handler.NextNumber)
	return router
}

func savedRecord(propertyID int64, number string) *models.SavedProperty {
	return &models.SavedProperty{
		ID:         propertyID + 100,
		PropertyID: propertyID,
		UserNumber: strPtr(number),
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func postSave(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/saved", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSavedList_Filters(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		filter repository.SavedFilter
	}{
		{name: "no filter", query: "", filter: repository.SavedFilter{}},
		{name: "county", query: "county=burnet", filter: repository.SavedFilter{County: "burnet"}},
		{name: "county id wins", query: "county=burnet&countyId=3&includeDetails=true", filter: repository.SavedFilter{CountyID: 3, IncludeDetails: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSavedService)
			svc.On("List", mock.Anything, tt.filter).Return([]models.SavedProperty{*savedRecord(1, "BUR-000001")}, nil)

			w := httptest.NewRecorder()
			setupSavedRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/saved?"+tt.query, nil))

			require.Equal(t, http.StatusOK, w.Code)
			var resp SavedListResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, 1, resp.Count)
			assert.Equal(t, "BUR-000001", resp.Saved[0].DisplayNumber())
			svc.AssertExpectations(t)
		})
	}
}

func TestSavedList_InvalidCountyID(t *testing.T) {
	svc := new(MockSavedService)

	w := httptest.NewRecorder()
	setupSavedRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/saved?countyId=-1", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrValidation, decodeError(t, w).Error.Code)
}

func TestSave(t *testing.T) {
	tests := []struct {
		name        string
		result      *services.SaveResult
		wantMessage string
		wantAlready bool
	}{
		{
			name:        "new save",
			result:      &services.SaveResult{Saved: savedRecord(7, "BUR-000003")},
			wantMessage: "Property saved successfully",
		},
		{
			name:        "already saved",
			result:      &services.SaveResult{Saved: savedRecord(7, "BUR-000001"), AlreadySaved: true},
			wantMessage: "Property is already saved",
			wantAlready: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSavedService)
			svc.On("Save", mock.Anything, int64(7)).Return(tt.result, nil)

			w := postSave(t, setupSavedRouter(svc), `{"propertyId": 7}`)

			require.Equal(t, http.StatusOK, w.Code)
			var resp SaveResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.OK)
			assert.Equal(t, tt.wantAlready, resp.AlreadySaved)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, tt.result.Saved.DisplayNumber(), resp.Saved.DisplayNumber())
		})
	}
}

func TestSave_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "missing id", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: apierrors.ErrValidation},
		{name: "id is a string", body: `{"propertyId":"7"}`, wantStatus: http.StatusBadRequest, wantCode: apierrors.ErrBadRequest},
		{name: "malformed json", body: `{"propertyId":`, wantStatus: http.StatusBadRequest, wantCode: apierrors.ErrBadRequest},
		{
			name:       "unknown property",
			body:       `{"propertyId":7}`,
			serviceErr: fmt.Errorf("%w: 7", services.ErrPropertyNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   apierrors.ErrNotFound,
		},
		{
			name:       "allocation conflict",
			body:       `{"propertyId":7}`,
			serviceErr: fmt.Errorf("%w: BUR after 5 attempts", services.ErrAllocationConflict),
			wantStatus: http.StatusConflict,
			wantCode:   apierrors.ErrConflict,
		},
		{
			name:       "numbering lock busy",
			body:       `{"propertyId":7}`,
			serviceErr: fmt.Errorf("%w: timed out waiting for numbering lock: BUR", services.ErrNamespaceBusy),
			wantStatus: http.StatusConflict,
			wantCode:   apierrors.ErrConflict,
		},
		{
			name:       "database error",
			body:       `{"propertyId":7}`,
			serviceErr: errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apierrors.ErrInternalServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSavedService)
			if tt.serviceErr != nil {
				svc.On("Save", mock.Anything, int64(7)).Return(nil, tt.serviceErr)
			}

			w := postSave(t, setupSavedRouter(svc), tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestUnsave(t *testing.T) {
	svc := new(MockSavedService)
	svc.On("Unsave", mock.Anything, int64(7)).Return(nil)
	svc.On("Unsave", mock.Anything, int64(8)).Return(fmt.Errorf("%w: 8", services.ErrNotSaved))

	router := setupSavedRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/saved/7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp SaveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Property unsaved successfully", resp.Message)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/saved/8", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/saved/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestNextNumber(t *testing.T) {
	svc := new(MockSavedService)
	svc.On("NextNumber", mock.Anything, int64(2), []string{"BUR-000003"}).Return("BUR-000004", nil)
	svc.On("NextNumber", mock.Anything, int64(3), []string{}).Return("MAD-000001", nil)
	svc.On("NextNumber", mock.Anything, int64(99), []string{}).Return("", fmt.Errorf("%w: 99", services.ErrCountyNotFound))

	router := setupSavedRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/counties/2/next-number?reserved=BUR-000003,", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp NextNumberResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BUR-000004", resp.TempUserNumber)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/counties/3/next-number", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MAD-000001", resp.TempUserNumber)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/counties/99/next-number", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/counties/zero/next-number", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}
