package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationKind string

const (
	NotifConfirmation NotificationKind = "confirmation"
	NotifReminder     NotificationKind = "reminder"
	NotifCancelled    NotificationKind = "cancelled"
	NotifExpired      NotificationKind = "expired"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// NotificationIntent is a durable "an email should be sent" work item.
// The mail worker polls pending rows and reports sent/failed back.
type NotificationIntent struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	ReservationID uuid.UUID        `json:"reservation_id" gorm:"type:uuid;not null;index"`
	Recipient     string           `json:"recipient" gorm:"size:255;not null"`
	Kind          NotificationKind `json:"kind" gorm:"type:varchar(16);not null"`
	Status        DeliveryStatus   `json:"status" gorm:"type:varchar(16);not null;index"`
	Attempts      int              `json:"attempts" gorm:"not null"`
	LastError     string           `json:"last_error,omitempty" gorm:"type:text"`
	SentAt        *time.Time       `json:"sent_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (NotificationIntent) TableName() string {
	return "notification_intents"
}

func (n *NotificationIntent) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
