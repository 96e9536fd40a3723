package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client(), logger.Nop())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": message, "request_id": "req-1"},
	})
}

func TestLoadBoundaries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/parcels/boundaries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "burnet", r.URL.Query().Get("county"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		fc := geojson.NewFeatureCollection()
		f := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
		f.Properties["id"] = 7
		f.Properties["propId"] = "R7"
		fc.Append(f)
		writeJSON(w, http.StatusOK, fc)
	})

	c := newTestClient(t, mux)
	var loader parcelcache.Loader = c

	fc, err := loader.LoadBoundaries(context.Background(), "burnet")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "R7", fc.Features[0].Properties["propId"])
}

func TestLoadBoundaries_ServiceUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/parcels/boundaries", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Boundary data is temporarily unavailable")
	})

	_, err := newTestClient(t, mux).LoadBoundaries(context.Background(), "burnet")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "SERVICE_UNAVAILABLE", apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL, nil, logger.Nop())
	_, err := c.LoadBoundaries(context.Background(), "burnet")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/properties/details", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3,1", r.URL.Query().Get("ids"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"details": map[string]interface{}{
				"3": map[string]interface{}{"id": 3, "propId": "R3", "ownerName": "Jane Doe", "county": "burnet"},
			},
		})
	})

	c := newTestClient(t, mux)
	details, err := c.Details(context.Background(), []int64{3, 1})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "R3", details[3].PropID)
	assert.Equal(t, "Jane Doe", *details[3].OwnerName)

	empty, err := c.Details(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNextNumber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/counties/2/next-number", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BUR-000001,BUR-000002", r.URL.Query().Get("reserved"))
		writeJSON(w, http.StatusOK, map[string]string{"tempUserNumber": "BUR-000003"})
	})
	mux.HandleFunc("/api/v1/counties/9/next-number", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "County not found")
	})

	c := newTestClient(t, mux)
	n, err := c.NextNumber(context.Background(), 2, []string{"BUR-000001", "BUR-000002"})
	require.NoError(t, err)
	assert.Equal(t, "BUR-000003", n)

	_, err = c.NextNumber(context.Background(), 9, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "County not found")
}

func TestSaveAndUnsave(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/saved", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"propertyId": 5}`, string(body))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":           true,
			"alreadySaved": false,
			"message":      "Property saved successfully",
			"saved":        map[string]interface{}{"id": 1, "propertyId": 5, "userNumber": "BUR-000001", "createdAt": "2024-01-01T00:00:00Z"},
		})
	})
	mux.HandleFunc("/api/v1/saved/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	})
	mux.HandleFunc("/api/v1/saved/6", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "Property is not saved")
	})

	c := newTestClient(t, mux)
	out, err := c.Save(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "BUR-000001", out.Saved.DisplayNumber())

	require.NoError(t, c.Unsave(context.Background(), 5))
	assert.ErrorIs(t, c.Unsave(context.Background(), 6), ErrNotFound)
}

func TestSave_Conflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/saved", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusConflict, "CONFLICT", "Could not assign a display number, please retry")
	})

	_, err := newTestClient(t, mux).Save(context.Background(), 5)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSavedCountiesExportSkipTrace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/saved", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "burnet", r.URL.Query().Get("county"))
		assert.Equal(t, "true", r.URL.Query().Get("includeDetails"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"saved": []map[string]interface{}{{"id": 1, "propertyId": 5, "userNumber": "BUR-000001", "createdAt": "2024-01-01T00:00:00Z"}},
			"count": 1,
		})
	})
	mux.HandleFunc("/api/v1/counties", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"counties": []map[string]interface{}{{"key": "burnet", "name": "Burnet County", "prefix": "BUR", "available": true}},
		})
	})
	mux.HandleFunc("/api/v1/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Property_ID\nR1\n"))
	})
	mux.HandleFunc("/api/v1/skip-trace/batchdata", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Properties []skiptrace.Record `json:"properties"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Properties, 1) {
			writeAPIError(w, http.StatusBadRequest, "BAD_REQUEST", "bad body")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"provider":  "batchdata",
			"completed": 1,
			"results":   []map[string]interface{}{{"propertyId": req.Properties[0].PropertyID, "status": "completed"}},
		})
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	saved, err := c.Saved(ctx, "burnet", true)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, int64(5), saved[0].PropertyID)

	cs, err := c.Counties(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "BUR", cs[0].Prefix)

	csv, err := c.Export(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, "Property_ID\nR1\n", string(csv))

	out, err := c.SkipTrace(ctx, "batchdata", []skiptrace.Record{{PropertyID: 5, LastName: "Doe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Completed)
	assert.Equal(t, skiptrace.StatusCompleted, out.Results[0].Status)
}
