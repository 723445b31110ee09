package reservation

import (
	"context"
	"time"

	"parking/internal/domain"

	"github.com/google/uuid"
)

// UserDirectory provides the acting and owning users.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// SpotCatalog is the read side of the spot catalog.
type SpotCatalog interface {
	List(ctx context.Context, f domain.SpotFilter) ([]domain.Spot, error)
	GetByID(ctx context.Context, id int64) (*domain.Spot, error)
	GetByCode(ctx context.Context, code string) (*domain.Spot, error)
}

// NotificationEmitter records that an email should be sent.
type NotificationEmitter interface {
	Enqueue(ctx context.Context, reservationID uuid.UUID, recipient string, kind domain.NotificationKind) (*domain.NotificationIntent, error)
}

// EventPublisher receives committed lifecycle transitions. Publishing is
// best effort and must not block.
type EventPublisher interface {
	Publish(e Event)
}

type EventType string

const (
	EventCreated   EventType = "reservation.created"
	EventConfirmed EventType = "reservation.confirmed"
	EventCancelled EventType = "reservation.cancelled"
	EventExpired   EventType = "reservation.expired"
)

type Event struct {
	Type          EventType                `json:"type"`
	ReservationID uuid.UUID                `json:"reservation_id"`
	UserID        int64                    `json:"user_id"`
	SpotID        int64                    `json:"spot_id"`
	Status        domain.ReservationStatus `json:"status"`
	StartDate     string                   `json:"start_date"`
	EndDate       string                   `json:"end_date"`
	At            time.Time                `json:"at"`
}

func eventFor(t EventType, r *domain.Reservation, at time.Time) Event {
	return Event{
		Type:          t,
		ReservationID: r.ID,
		UserID:        r.UserID,
		SpotID:        r.SpotID,
		Status:        r.Status,
		StartDate:     r.StartDate.Format(domain.DayLayout),
		EndDate:       r.EndDate.Format(domain.DayLayout),
		At:            at,
	}
}
