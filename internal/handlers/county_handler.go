package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbook/internal/counties"
)

// CountyHandler serves the county catalog.
type CountyHandler struct {
	catalog *counties.Catalog
}

// NewCountyHandler creates a new CountyHandler instance.
func NewCountyHandler(catalog *counties.Catalog) *CountyHandler {
	return &CountyHandler{catalog: catalog}
}

// CountiesResponse lists catalog counties.
type CountiesResponse struct {
	Counties []counties.County `json:"counties"`
}

// List handles GET /api/v1/counties.
func (h *CountyHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, CountiesResponse{Counties: h.catalog.All()})
}
