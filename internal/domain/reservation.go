package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

var reservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationCancelled,
	ReservationExpired,
}

// HoldingStatuses are the statuses that keep a spot occupied.
var HoldingStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed}

func (s ReservationStatus) Holds() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

func (s ReservationStatus) Valid() bool {
	for _, v := range reservationStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
// Confirmed accepts no further transition except an explicit cancellation.
func CanTransition(from, to ReservationStatus) bool {
	switch to {
	case ReservationConfirmed, ReservationExpired:
		return from == ReservationPending
	case ReservationCancelled:
		return from == ReservationPending || from == ReservationConfirmed
	}
	return false
}

// SourcesOf lists the statuses from which a reservation may move to to.
func SourcesOf(to ReservationStatus) []ReservationStatus {
	var out []ReservationStatus
	for _, from := range reservationStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

type Reservation struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      int64             `json:"user_id" gorm:"not null;index"`
	SpotID      int64             `json:"spot_id" gorm:"not null;index:idx_reservations_spot_dates"`
	StartDate   time.Time         `json:"start_date" gorm:"not null;index:idx_reservations_spot_dates"`
	EndDate     time.Time         `json:"end_date" gorm:"not null;index:idx_reservations_spot_dates"`
	Status      ReservationStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CheckedInAt *time.Time        `json:"checked_in_at,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty" gorm:"index"`
	ExpiredAt   *time.Time        `json:"expired_at,omitempty"`
}

func (Reservation) TableName() string {
	return "reservations"
}

func (r *Reservation) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Covers reports whether day falls inside [StartDate, EndDate].
func (r *Reservation) Covers(day time.Time) bool {
	return !day.Before(r.StartDate) && !day.After(r.EndDate)
}

// Overlaps uses the closed-interval test start <= other.end && end >= other.start.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return !r.StartDate.After(end) && !r.EndDate.Before(start)
}

type CheckIn struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ReservationID uuid.UUID `json:"reservation_id" gorm:"type:uuid;not null;uniqueIndex"`
	ActorID       int64     `json:"actor_id" gorm:"not null"`
	CheckedInAt   time.Time `json:"checked_in_at" gorm:"not null"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}

func (c *CheckIn) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ReservationHistory mirrors the current state of one reservation.
// It is written in the same transaction as the reservation it follows.
type ReservationHistory struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	ReservationID uuid.UUID         `json:"reservation_id" gorm:"type:uuid;not null;uniqueIndex"`
	UserID        int64             `json:"user_id" gorm:"not null;index"`
	SpotID        int64             `json:"spot_id" gorm:"not null"`
	StartDate     time.Time         `json:"start_date" gorm:"not null"`
	EndDate       time.Time         `json:"end_date" gorm:"not null"`
	Status        ReservationStatus `json:"status" gorm:"type:varchar(16);not null"`
	CheckInTime   *time.Time        `json:"check_in_time,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (ReservationHistory) TableName() string {
	return "reservation_histories"
}

func (h *ReservationHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// HistoryFor builds the mirror row for r.
func HistoryFor(r *Reservation) *ReservationHistory {
	return &ReservationHistory{
		ReservationID: r.ID,
		UserID:        r.UserID,
		SpotID:        r.SpotID,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Status:        r.Status,
		CheckInTime:   r.CheckedInAt,
	}
}

// ReservationFilter narrows reservation and history listings. Zero values
// are not applied.
type ReservationFilter struct {
	UserID *int64
	Status ReservationStatus
	From   *time.Time
	To     *time.Time
}

// Normalized returns f with its bounds moved to midnight UTC.
func (f ReservationFilter) Normalized() ReservationFilter {
	if f.From != nil {
		d := DayOf(*f.From, nil)
		f.From = &d
	}
	if f.To != nil {
		d := DayOf(*f.To, nil)
		f.To = &d
	}
	return f
}
