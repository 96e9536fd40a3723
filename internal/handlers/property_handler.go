package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcelbook/internal/errors"
	"github.com/stwalsh4118/parcelbook/internal/export"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/services"
)

// PropertyHandler serves parcel attributes and CSV exports.
type PropertyHandler struct {
	service services.PropertyService
	now     func() time.Time
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(service services.PropertyService) *PropertyHandler {
	return &PropertyHandler{service: service, now: time.Now}
}

// CountyRequest selects a county by key.
type CountyRequest struct {
	County string `form:"county" binding:"required"`
}

// DetailsResponse maps property id to its record. JSON object keys are the ids as strings.
type DetailsResponse struct {
	Details map[string]models.Property `json:"details"`
}

// Properties handles GET /api/v1/properties.
func (h *PropertyHandler) Properties(c *gin.Context) {
	var req CountyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	fc, err := h.service.Properties(c.Request.Context(), req.County)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCounty) {
			apierrors.NotFound(c, "Unknown county: "+req.County)
			return
		}
		apierrors.InternalServerError(c, "Failed to fetch properties", err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

// Details handles GET /api/v1/properties/details?ids=1,2.
func (h *PropertyHandler) Details(c *gin.Context) {
	ids, ok := h.ids(c)
	if !ok {
		return
	}

	byID, err := h.service.Details(c.Request.Context(), ids)
	if err != nil {
		h.serviceError(c, err, "Failed to fetch property details")
		return
	}

	details := make(map[string]models.Property, len(byID))
	for id, p := range byID {
		details[strconv.FormatInt(id, 10)] = p
	}
	c.JSON(http.StatusOK, DetailsResponse{Details: details})
}

// Export handles GET /api/v1/export?ids=1,2 and returns the parcels as a CSV attachment
// in the order the ids were given.
func (h *PropertyHandler) Export(c *gin.Context) {
	ids, ok := h.ids(c)
	if !ok {
		return
	}

	props, err := h.service.Ordered(c.Request.Context(), ids)
	if err != nil {
		h.serviceError(c, err, "Failed to export properties")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, props); err != nil {
		apierrors.InternalServerError(c, "Failed to export properties", err)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Properties exported", map[string]interface{}{
			"requested": len(ids),
			"exported":  len(props),
		})
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(h.now())+`"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *PropertyHandler) ids(c *gin.Context) ([]int64, bool) {
	ids, err := parseIDs(c.Query("ids"))
	if errors.Is(err, errNoIDs) {
		apierrors.BadRequest(c, "No property IDs provided", nil)
		return nil, false
	}
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return nil, false
	}
	return ids, true
}

func (h *PropertyHandler) serviceError(c *gin.Context, err error, message string) {
	if errors.Is(err, services.ErrTooManyIDs) {
		apierrors.BadRequest(c, err.Error(), map[string]interface{}{"limit": services.MaxDetailIDs})
		return
	}
	apierrors.InternalServerError(c, message, err)
}
