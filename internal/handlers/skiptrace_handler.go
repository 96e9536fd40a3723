package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/parcelbook/internal/errors"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
	"github.com/stwalsh4118/parcelbook/internal/services"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

// Tracer runs skip-trace lookups. *skiptrace.Runner implements it.
type Tracer interface {
	Run(ctx context.Context, provider string, recs []skiptrace.Record, progress skiptrace.ProgressFunc) ([]skiptrace.Result, error)
}

// SkipTraceHandler proxies owner lookups to the configured vendors.
type SkipTraceHandler struct {
	tracer     Tracer
	properties services.PropertyService
}

// NewSkipTraceHandler creates a new SkipTraceHandler instance. properties
// fills in records submitted with only a propertyId.
func NewSkipTraceHandler(tracer Tracer, properties services.PropertyService) *SkipTraceHandler {
	return &SkipTraceHandler{tracer: tracer, properties: properties}
}

// SkipTraceRequest is the body of POST /skip-trace/:provider. At most 100
// records are accepted per request.
type SkipTraceRequest struct {
	Properties []skiptrace.Record `json:"properties" binding:"required,min=1,max=100,dive"`
}

// SkipTraceResponse carries one result per submitted record, in order.
type SkipTraceResponse struct {
	SessionID string             `json:"sessionId"`
	Provider  string             `json:"provider"`
	Results   []skiptrace.Result `json:"results"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
}

// Run handles POST /api/v1/skip-trace/:provider.
func (h *SkipTraceHandler) Run(c *gin.Context) {
	provider := c.Param("provider")

	var req SkipTraceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "properties array is required")
		return
	}

	recs, err := h.fill(c.Request.Context(), req.Properties)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load property records", err)
		return
	}

	sessionID := uuid.New().String()
	log := middleware.GetLogger(c)

	results, err := h.tracer.Run(c.Request.Context(), provider, recs, func(done, total int, last skiptrace.Result) {
		if log != nil {
			log.Debug("Skip trace progress", map[string]interface{}{
				"session_id":  sessionID,
				"done":        done,
				"total":       total,
				"property_id": last.PropertyID,
				"status":      last.Status,
			})
		}
	})
	if err != nil {
		if errors.Is(err, skiptrace.ErrUnknownProvider) {
			apierrors.NotFound(c, "Unknown skip-trace provider: "+provider)
			return
		}
		apierrors.BadGateway(c, "Skip trace failed", err)
		return
	}

	resp := SkipTraceResponse{SessionID: sessionID, Provider: provider, Results: results}
	for _, r := range results {
		if r.Status == skiptrace.StatusCompleted {
			resp.Completed++
		} else {
			resp.Failed++
		}
	}

	if log != nil {
		log.Info("Skip trace finished", map[string]interface{}{
			"session_id": sessionID,
			"provider":   provider,
			"completed":  resp.Completed,
			"failed":     resp.Failed,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// fill derives name and address from the stored parcel for records that
// carry neither.
func (h *SkipTraceHandler) fill(ctx context.Context, recs []skiptrace.Record) ([]skiptrace.Record, error) {
	var missing []int64
	for _, r := range recs {
		if blank(r) {
			missing = append(missing, r.PropertyID)
		}
	}
	if len(missing) == 0 || h.properties == nil {
		return recs, nil
	}

	byID, err := h.properties.Details(ctx, missing)
	if err != nil {
		return nil, err
	}

	out := make([]skiptrace.Record, len(recs))
	for i, r := range recs {
		out[i] = r
		if p, ok := byID[r.PropertyID]; ok && blank(r) {
			out[i] = skiptrace.RecordFromProperty(p)
		}
	}
	return out, nil
}

func blank(r skiptrace.Record) bool {
	return r.FirstName == "" && r.LastName == "" && r.Street == ""
}
