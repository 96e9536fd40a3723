package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcelbook/internal/errors"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
	"github.com/stwalsh4118/parcelbook/internal/models"
	"github.com/stwalsh4118/parcelbook/internal/repository"
	"github.com/stwalsh4118/parcelbook/internal/services"
)

// SavedHandler handles saved properties and display number previews.
type SavedHandler struct {
	service services.SavedService
}

// NewSavedHandler creates a new SavedHandler instance.
func NewSavedHandler(service services.SavedService) *SavedHandler {
	return &SavedHandler{service: service}
}

// SavedListRequest represents the query parameters for listing saved properties.
// countyId takes precedence over county when both are given.
type SavedListRequest struct {
	County         string `form:"county"`
	CountyID       int64  `form:"countyId" binding:"omitempty,gt=0"`
	IncludeDetails bool   `form:"includeDetails"`
}

// SavedListResponse is the saved list envelope.
type SavedListResponse struct {
	Saved []models.SavedProperty `json:"saved"`
	Count int                    `json:"count"`
}

// SaveRequest is the body of POST /saved.
type SaveRequest struct {
	PropertyID int64 `json:"propertyId" binding:"required,gt=0"`
}

// SaveResponse reports the outcome of a save or unsave.
type SaveResponse struct {
	Saved        *models.SavedProperty `json:"saved,omitempty"`
	Message      string                `json:"message"`
	OK           bool                  `json:"ok"`
	AlreadySaved bool                  `json:"alreadySaved"`
}

// NextNumberResponse carries a previewed display number.
type NextNumberResponse struct {
	TempUserNumber string `json:"tempUserNumber"`
}

// List handles GET /api/v1/saved.
func (h *SavedHandler) List(c *gin.Context) {
	var req SavedListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	filter := repository.SavedFilter{IncludeDetails: req.IncludeDetails}
	if req.CountyID != 0 {
		filter.CountyID = req.CountyID
	} else {
		filter.County = req.County
	}

	saved, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to fetch saved properties", err)
		return
	}

	c.JSON(http.StatusOK, SavedListResponse{Saved: saved, Count: len(saved)})
}

// Save handles POST /api/v1/saved.
func (h *SavedHandler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Valid propertyId is required")
		return
	}

	result, err := h.service.Save(c.Request.Context(), req.PropertyID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPropertyNotFound):
			apierrors.NotFound(c, "Property not found")
		case errors.Is(err, services.ErrAllocationConflict):
			apierrors.Conflict(c, "Could not assign a display number, please retry")
		case errors.Is(err, services.ErrNamespaceBusy):
			apierrors.Conflict(c, "Display numbers for this county are busy, please retry")
		default:
			apierrors.InternalServerError(c, "Failed to save property", err)
		}
		return
	}

	resp := SaveResponse{
		OK:           true,
		AlreadySaved: result.AlreadySaved,
		Message:      "Property saved successfully",
		Saved:        result.Saved,
	}
	if result.AlreadySaved {
		resp.Message = "Property is already saved"
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Save request completed", map[string]interface{}{
			"property_id":   req.PropertyID,
			"already_saved": result.AlreadySaved,
			"number":        result.Saved.DisplayNumber(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// Unsave handles DELETE /api/v1/saved/:propertyId.
func (h *SavedHandler) Unsave(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("propertyId"), 10, 64)
	if err != nil || propertyID <= 0 {
		apierrors.BadRequest(c, "propertyId must be a positive integer", nil)
		return
	}

	if err := h.service.Unsave(c.Request.Context(), propertyID); err != nil {
		if errors.Is(err, services.ErrNotSaved) {
			apierrors.NotFound(c, "Property is not saved")
			return
		}
		apierrors.InternalServerError(c, "Failed to unsave property", err)
		return
	}

	c.JSON(http.StatusOK, SaveResponse{OK: true, Message: "Property unsaved successfully"})
}

// NextNumber handles GET /api/v1/counties/:id/next-number?reserved=A,B.
// The number is a preview; nothing is claimed.
func (h *SavedHandler) NextNumber(c *gin.Context) {
	countyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || countyID <= 0 {
		apierrors.BadRequest(c, "county id must be a positive integer", nil)
		return
	}

	number, err := h.service.NextNumber(c.Request.Context(), countyID, splitList(c.Query("reserved")))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCountyNotFound):
			apierrors.NotFound(c, "County not found")
		case errors.Is(err, services.ErrAllocationConflict):
			apierrors.Conflict(c, "No display numbers left for this county")
		default:
			apierrors.InternalServerError(c, "Failed to generate temporary user number", err)
		}
		return
	}

	c.JSON(http.StatusOK, NextNumberResponse{TempUserNumber: number})
}
