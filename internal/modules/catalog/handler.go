package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"parking/internal/domain"
	"parking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(protected, staff *gin.RouterGroup) {
	if protected != nil {
		protected.GET("/spots", h.GetSpots)
		protected.GET("/spots/:id", h.GetSpot)
		protected.GET("/spots/code/:code", h.GetSpotByCode)
	}
	if staff != nil {
		staff.PATCH("/spots/:id", h.UpdateSpot)
	}
}

// GetSpots handles GET /api/v1/spots?row=&has_charger=&active=
func (h *Handler) GetSpots(c *gin.Context) {
	var f domain.SpotFilter

	if row := c.Query("row"); row != "" {
		f.Row = &row
	}
	for key, dst := range map[string]**bool{"has_charger": &f.HasCharger, "active": &f.Active} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+key+" filter")
			return
		}
		*dst = &v
	}

	spots, err := h.service.ListSpots(c.Request.Context(), f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get spots")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"spots": spots, "total": len(spots)})
}

func (h *Handler) GetSpot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid spot ID")
		return
	}

	sp, err := h.service.GetSpot(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"spot": sp})
}

func (h *Handler) GetSpotByCode(c *gin.Context) {
	sp, err := h.service.GetSpotByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"spot": sp})
}

// UpdateSpot handles PATCH /api/v1/admin/spots/:id
func (h *Handler) UpdateSpot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid spot ID")
		return
	}

	var req UpdateSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	sp, err := h.service.UpdateSpot(c.Request.Context(), c.GetInt64("user_id"), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"spot": sp})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Spot not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}
