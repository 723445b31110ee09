package repository

import (
	"context"
	"time"

	"parking/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.NotificationIntent) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.NotificationIntent, error) {
	var n domain.NotificationIntent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateStatus changes the delivery status only while it equals from.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.DeliveryStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&domain.NotificationIntent{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns intents newest first. An empty status lists every intent.
func (r *NotificationRepository) List(ctx context.Context, status domain.DeliveryStatus, limit, offset int) ([]domain.NotificationIntent, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.NotificationIntent{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.NotificationIntent
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByReservation returns every intent recorded for a reservation, oldest first.
func (r *NotificationRepository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]domain.NotificationIntent, error) {
	var rows []domain.NotificationIntent
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteSentBefore removes delivered intents sent before cutoff.
func (r *NotificationRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", domain.DeliverySent, cutoff).
		Delete(&domain.NotificationIntent{})
	return res.RowsAffected, res.Error
}
