package reservation

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parking/internal/domain"
	"parking/internal/pkg/response"
	"parking/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the user routes on protected and the staff routes
// on staff. Either group may be nil.
func (h *Handler) RegisterRoutes(protected, staff *gin.RouterGroup) {
	if protected != nil {
		protected.GET("/availability", h.CheckAvailability)
		protected.POST("/reservations", h.Create)
		protected.GET("/reservations", h.ListMine)
		protected.GET("/reservations/:id", h.Get)
		protected.POST("/reservations/:id/cancel", h.Cancel)
		protected.POST("/check-ins", h.CheckIn)
		protected.GET("/history", h.ListMyHistory)
	}
	if staff != nil {
		staff.GET("/reservations", h.ListAll)
		staff.GET("/history", h.ListAllHistory)
		staff.POST("/expiry/run", h.RunExpiry)
	}
}

// CheckAvailability
// @Summary  Free spots for a date range
// @Tags     Reservations
// @Security BearerAuth
// @Param    start_date      query string true  "YYYY-MM-DD"
// @Param    end_date        query string true  "YYYY-MM-DD"
// @Param    require_charger query bool   false "only spots with a charger"
// @Router   /availability [GET]
func (h *Handler) CheckAvailability(c *gin.Context) {
	start, end, ok := parseRange(c, c.Query("start_date"), c.Query("end_date"))
	if !ok {
		return
	}
	requireCharger, _ := strconv.ParseBool(c.DefaultQuery("require_charger", "false"))

	out, err := h.service.CheckAvailability(c.Request.Context(), start, end, requireCharger)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// Create
// @Summary  Reserve a spot
// @Tags     Reservations
// @Security BearerAuth
// @Param    request body CreateReservationRequest true "dates, optional spot and charger need"
// @Router   /reservations [POST]
func (h *Handler) Create(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}
	start, end, ok := parseRange(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	res, err := h.service.CreateReservation(c.Request.Context(), CreateInput{
		UserID:         c.GetInt64("user_id"),
		StartDate:      start,
		EndDate:        end,
		SpotID:         req.SpotID,
		RequireCharger: req.RequireCharger,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"reservation": toResponse(res)})
}

func (h *Handler) ListMine(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	rows, err := h.service.ListReservations(c.Request.Context(), c.GetInt64("user_id"), f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservations": toResponses(rows)})
}

func (h *Handler) ListAll(c *gin.Context) {
	f, ok := parseStaffFilter(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, total, err := h.service.ListAllReservations(c.Request.Context(), c.GetInt64("user_id"), f, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"reservations": toResponses(rows),
		"total":        total,
		"page":         page,
	})
}

// ListMyHistory
// @Summary  Status history of the caller's reservations
// @Tags     History
// @Security BearerAuth
// @Param    status query string false "pending, confirmed, cancelled or expired"
// @Param    from   query string false "YYYY-MM-DD"
// @Param    to     query string false "YYYY-MM-DD"
// @Router   /history [GET]
func (h *Handler) ListMyHistory(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	rows, err := h.service.ListHistory(c.Request.Context(), c.GetInt64("user_id"), f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": rows})
}

func (h *Handler) ListAllHistory(c *gin.Context) {
	f, ok := parseStaffFilter(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, total, err := h.service.ListAllHistory(c.Request.Context(), c.GetInt64("user_id"), f, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"history": rows,
		"total":   total,
		"page":    page,
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.service.GetReservation(c.Request.Context(), id, c.GetInt64("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": toResponse(res)})
}

// Cancel
// @Summary  Cancel a reservation
// @Tags     Reservations
// @Security BearerAuth
// @Param    id path string true "reservation id"
// @Router   /reservations/{id}/cancel [POST]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.service.CancelReservation(c.Request.Context(), id, c.GetInt64("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": toResponse(res)})
}

// CheckIn
// @Summary  Check in to today's reservation
// @Tags     Reservations
// @Security BearerAuth
// @Param    request body CheckInRequest true "spot code or reservation id"
// @Router   /check-ins [POST]
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	target := CheckInTarget{SpotCode: req.SpotCode}
	if req.ReservationID != "" {
		id, err := uuid.Parse(req.ReservationID)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid reservation ID")
			return
		}
		target.ReservationID = id
	}

	out, err := h.service.CheckIn(c.Request.Context(), target, c.GetInt64("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"check_in":    out.CheckIn,
		"reservation": toResponse(out.Reservation),
	})
}

func (h *Handler) RunExpiry(c *gin.Context) {
	out, err := h.service.RunExpirySweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid reservation ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseRange(c *gin.Context, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	start, err := domain.ParseDay(strings.TrimSpace(rawStart))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "start_date must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := domain.ParseDay(strings.TrimSpace(rawEnd))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "end_date must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseFilter(c *gin.Context) (domain.ReservationFilter, bool) {
	f := domain.ReservationFilter{Status: domain.ReservationStatus(strings.ToLower(c.Query("status")))}
	if f.Status != "" && !f.Status.Valid() {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status "+string(f.Status))
		return f, false
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		d, err := domain.ParseDay(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", key+" must be YYYY-MM-DD")
			return f, false
		}
		*dst = &d
	}
	return f, true
}

// parseStaffFilter also accepts a user_id narrowing.
func parseStaffFilter(c *gin.Context) (domain.ReservationFilter, bool) {
	f, ok := parseFilter(c)
	if !ok {
		return f, false
	}
	if raw := c.Query("user_id"); raw != "" {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
			return f, false
		}
		f.UserID = &uid
	}
	return f, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrPastDate), errors.Is(err, ErrInvalidCheckInRequest):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrLookaheadExceeded):
		response.Error(c, http.StatusUnprocessableEntity, "LOOKAHEAD_EXCEEDED", err.Error())
	case errors.Is(err, ErrDurationExceeded):
		response.Error(c, http.StatusUnprocessableEntity, "DURATION_EXCEEDED", err.Error())
	case errors.Is(err, ErrChargerMismatch):
		response.Error(c, http.StatusUnprocessableEntity, "CHARGER_MISMATCH", err.Error())
	case errors.Is(err, ErrInactiveUser), errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrSpotUnavailable):
		response.Error(c, http.StatusConflict, "SPOT_UNAVAILABLE", err.Error())
	case errors.Is(err, ErrRecentlyReleased):
		response.Error(c, http.StatusConflict, "SPOT_RECENTLY_RELEASED", err.Error())
	case errors.Is(err, ErrAlreadyCheckedIn):
		response.Error(c, http.StatusConflict, "ALREADY_CHECKED_IN", err.Error())
	case errors.Is(err, ErrOutOfCheckInWindow):
		response.Error(c, http.StatusConflict, "OUT_OF_CHECK_IN_WINDOW", err.Error())
	case errors.Is(err, ErrAlreadyCancelled):
		response.Error(c, http.StatusConflict, "ALREADY_CANCELLED", err.Error())
	case errors.Is(err, ErrNotCancellable):
		response.Error(c, http.StatusConflict, "NOT_CANCELLABLE", err.Error())
	default:
		_ = c.Error(err)
		log.Printf("reservation_handler_error path=%s error=%q", c.FullPath(), err.Error())
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}
