// Package client talks to the parcelbook HTTP API. It is the fetch boundary
// of a map session: boundary loads, detail lookups, display number previews
// and save/unsave calls all go through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/parcelbook/internal/counties"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

// DefaultTimeout applies when New is given a nil http.Client.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound is matched by API errors with status 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by API errors with status 409.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is matched by transport failures and 502/503 responses.
	ErrUnavailable = errors.New("api unavailable")
)

// APIError is a non-2xx response decoded from the API error envelope.
type APIError struct {
	Details   map[string]interface{}
	Code      string
	Message   string
	RequestID string
	Status    int
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api error %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnavailable:
		return e.Status == http.StatusBadGateway || e.Status == http.StatusServiceUnavailable
	}
	return false
}

// Client is an API client. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	log     *logger.Logger
	baseURL string
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8080.
func New(baseURL string, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:    httpClient,
		log:     log.WithComponent("api-client"),
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
	}
}

// SaveOutcome is the result of Save.
type SaveOutcome struct {
	Saved        *models.SavedProperty `json:"saved"`
	Message      string                `json:"message"`
	OK           bool                  `json:"ok"`
	AlreadySaved bool                  `json:"alreadySaved"`
}

// SkipTraceOutcome is the result of SkipTrace.
type SkipTraceOutcome struct {
	SessionID string             `json:"sessionId"`
	Provider  string             `json:"provider"`
	Results   []skiptrace.Result `json:"results"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
}

// LoadBoundaries fetches the complete boundary collection of a county.
// It satisfies parcelcache.Loader.
func (c *Client) LoadBoundaries(ctx context.Context, county string) (*geojson.FeatureCollection, error) {
	q := url.Values{"county": {county}}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/parcels/boundaries", q, nil, &raw); err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode boundaries for %s: %w", county, err)
	}
	return fc, nil
}

// Details fetches parcel records keyed by id. Unknown ids are absent.
func (c *Client) Details(ctx context.Context, ids []int64) (map[int64]models.Property, error) {
	if len(ids) == 0 {
		return map[int64]models.Property{}, nil
	}

	var resp struct {
		Details map[string]models.Property `json:"details"`
	}
	if err := c.do(ctx, http.MethodGet, "/properties/details", url.Values{"ids": {joinIDs(ids)}}, nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[int64]models.Property, len(resp.Details))
	for key, p := range resp.Details {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected details key %q: %w", key, err)
		}
		out[id] = p
	}
	return out, nil
}

// NextNumber previews the next display number of a county, treating reserved as taken.
func (c *Client) NextNumber(ctx context.Context, countyID int64, reserved []string) (string, error) {
	q := url.Values{}
	if len(reserved) > 0 {
		q.Set("reserved", strings.Join(reserved, ","))
	}

	var resp struct {
		TempUserNumber string `json:"tempUserNumber"`
	}
	path := "/counties/" + strconv.FormatInt(countyID, 10) + "/next-number"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return "", err
	}
	return resp.TempUserNumber, nil
}

// Save persists a parcel. Saving an already saved parcel is not an error.
func (c *Client) Save(ctx context.Context, propertyID int64) (*SaveOutcome, error) {
	body := map[string]int64{"propertyId": propertyID}

	var out SaveOutcome
	if err := c.do(ctx, http.MethodPost, "/saved", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unsave deletes a saved parcel. A parcel that is not saved yields ErrNotFound.
func (c *Client) Unsave(ctx context.Context, propertyID int64) error {
	return c.do(ctx, http.MethodDelete, "/saved/"+strconv.FormatInt(propertyID, 10), nil, nil, nil)
}

// Saved lists saved parcels of a county key, or of every county when county is empty.
func (c *Client) Saved(ctx context.Context, county string, includeDetails bool) ([]models.SavedProperty, error) {
	q := url.Values{}
	if county != "" {
		q.Set("county", county)
	}
	if includeDetails {
		q.Set("includeDetails", "true")
	}

	var resp struct {
		Saved []models.SavedProperty `json:"saved"`
	}
	if err := c.do(ctx, http.MethodGet, "/saved", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Saved, nil
}

// Counties returns the server's county catalog.
func (c *Client) Counties(ctx context.Context) ([]counties.County, error) {
	var resp struct {
		Counties []counties.County `json:"counties"`
	}
	if err := c.do(ctx, http.MethodGet, "/counties", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Counties, nil
}

// Export downloads the CSV export of ids.
func (c *Client) Export(ctx context.Context, ids []int64) ([]byte, error) {
	var raw rawBody
	if err := c.do(ctx, http.MethodGet, "/export", url.Values{"ids": {joinIDs(ids)}}, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SkipTrace submits records to a provider.
func (c *Client) SkipTrace(ctx context.Context, provider string, recs []skiptrace.Record) (*SkipTraceOutcome, error) {
	body := map[string]interface{}{"properties": recs}

	var out SkipTraceOutcome
	if err := c.do(ctx, http.MethodPost, "/skip-trace/"+url.PathEscape(provider), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// rawBody receives the response body unparsed.
type rawBody []byte

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %v", ErrUnavailable, method, path, err)
	}

	c.log.Debug("API call", map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"request_id":  requestID,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *rawBody:
		*dst = data
		return nil
	default:
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
		return nil
	}
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}

	var envelope struct {
		Error struct {
			Details   map[string]interface{} `json:"details"`
			Code      string                 `json:"code"`
			Message   string                 `json:"message"`
			RequestID string                 `json:"request_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.RequestID = envelope.Error.RequestID
		apiErr.Details = envelope.Error.Details
	}
	return apiErr
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
