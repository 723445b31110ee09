package notification

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"parking/internal/domain"
	"parking/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the queue management routes. The group is expected
// to be restricted to staff.
func (h *Handler) RegisterRoutes(staff *gin.RouterGroup) {
	g := staff.Group("/notifications")
	{
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		g.POST("/:id/sent", h.MarkSent)
		g.POST("/:id/failed", h.MarkFailed)
		g.POST("/:id/retry", h.Retry)
	}
}

type markFailedRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) List(c *gin.Context) {
	status := domain.DeliveryStatus(strings.ToLower(c.Query("status")))
	switch status {
	case "", domain.DeliveryPending, domain.DeliverySent, domain.DeliveryFailed:
	default:
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status filter")
		return
	}

	page := 1
	if s := c.Query("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	limit := 20
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
			if limit > 100 {
				limit = 100
			}
		}
	}

	list, total, err := h.service.List(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get notifications")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"notifications": list,
		"total":         total,
		"page":          page,
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notification": n})
}

func (h *Handler) MarkSent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.service.MarkSent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notification": n})
}

func (h *Handler) MarkFailed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req markFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	n, err := h.service.MarkFailed(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notification": n})
}

func (h *Handler) Retry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notification": n})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Notification not found")
	case errors.Is(err, ErrNotRetryable):
		response.Error(c, http.StatusConflict, "NOT_RETRYABLE", err.Error())
	case errors.Is(err, ErrNotPending):
		response.Error(c, http.StatusConflict, "NOT_PENDING", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update notification")
	}
}
