package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	apierrors "github.com/stwalsh4118/parcelbook/internal/errors"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
	"github.com/stwalsh4118/parcelbook/internal/services"
)

// ParcelHandler handles map-facing parcel requests.
type ParcelHandler struct {
	service services.PropertyService
}

// NewParcelHandler creates a new ParcelHandler instance.
func NewParcelHandler(service services.PropertyService) *ParcelHandler {
	return &ParcelHandler{
		service: service,
	}
}

// BoundariesRequest represents the query parameters for the boundaries endpoint.
// Without zoom the complete collection is returned.
type BoundariesRequest struct {
	Zoom   *int   `form:"zoom" binding:"omitempty,gte=0,lte=22"`
	County string `form:"county" binding:"required"`
}

// AtPointRequest represents the query parameters for the at-point endpoint.
type AtPointRequest struct {
	Lat float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// ParcelResponse wraps a single parcel feature.
type ParcelResponse struct {
	Parcel *geojson.Feature `json:"parcel"`
}

// Boundaries handles GET /api/v1/parcels/boundaries.
// It returns the county's outlines (id and propId only), reduced for the zoom when given.
func (h *ParcelHandler) Boundaries(c *gin.Context) {
	var req BoundariesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	fc, err := h.service.Boundaries(c.Request.Context(), req.County, req.Zoom)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownCounty):
			apierrors.NotFound(c, "Unknown county: "+req.County)
		case errors.Is(err, parcelcache.ErrFetchFailed):
			apierrors.ServiceUnavailable(c, "Boundary data is temporarily unavailable")
		default:
			apierrors.InternalServerError(c, "Failed to load boundaries", err)
		}
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		fields := map[string]interface{}{
			"county":   req.County,
			"features": len(fc.Features),
		}
		if req.Zoom != nil {
			fields["zoom"] = *req.Zoom
		}
		log.Debug("Boundaries served", fields)
	}

	c.JSON(http.StatusOK, fc)
}

// AtPoint handles GET /api/v1/parcels/at-point endpoint.
// It retrieves the parcel that contains the given lat/lng point.
func (h *ParcelHandler) AtPoint(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req AtPointRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	if log != nil {
		log.Info("Processing at-point request", map[string]interface{}{
			"lat": req.Lat,
			"lng": req.Lng,
		})
	}

	parcel, err := h.service.AtPoint(c.Request.Context(), req.Lat, req.Lng)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "No property found at this location")
			return
		}
		apierrors.InternalServerError(c, "Failed to query parcel data", err)
		return
	}

	c.JSON(http.StatusOK, ParcelResponse{Parcel: parcel.DetailFeature()})
}
