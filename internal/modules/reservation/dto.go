package reservation

import (
	"time"

	"parking/internal/domain"
)

type CreateReservationRequest struct {
	StartDate      string `json:"start_date" binding:"required" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" binding:"required" validate:"required,datetime=2006-01-02"`
	SpotID         *int64 `json:"spot_id" validate:"omitempty,gt=0"`
	RequireCharger bool   `json:"require_charger"`
}

type CheckInRequest struct {
	SpotCode      string `json:"spot_code" validate:"omitempty,spotcode"`
	ReservationID string `json:"reservation_id" validate:"omitempty,uuid"`
}

type ReservationResponse struct {
	ID          string                   `json:"id"`
	UserID      int64                    `json:"user_id"`
	SpotID      int64                    `json:"spot_id"`
	StartDate   string                   `json:"start_date"`
	EndDate     string                   `json:"end_date"`
	Status      domain.ReservationStatus `json:"status"`
	CreatedAt   time.Time                `json:"created_at"`
	CheckedInAt *time.Time               `json:"checked_in_at,omitempty"`
	CancelledAt *time.Time               `json:"cancelled_at,omitempty"`
	ExpiredAt   *time.Time               `json:"expired_at,omitempty"`
}

func toResponse(r *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID.String(),
		UserID:      r.UserID,
		SpotID:      r.SpotID,
		StartDate:   r.StartDate.Format(domain.DayLayout),
		EndDate:     r.EndDate.Format(domain.DayLayout),
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		CheckedInAt: r.CheckedInAt,
		CancelledAt: r.CancelledAt,
		ExpiredAt:   r.ExpiredAt,
	}
}

func toResponses(rows []domain.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toResponse(&rows[i]))
	}
	return out
}
