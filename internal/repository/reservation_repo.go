package repository

import (
	"context"
	"database/sql"
	"time"

	"parking/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationRepository owns reservations, their check-ins and their history
// mirror. Methods that must commit together are called on the repository
// handed out by Transaction.
type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Transaction runs fn on a repository bound to a single transaction.
// With serializable set, PostgreSQL runs it at SERIALIZABLE isolation;
// SQLite is already serialised by its single writer connection.
func (r *ReservationRepository) Transaction(ctx context.Context, serializable bool, fn func(tx *ReservationRepository) error) error {
	var opts []*sql.TxOptions
	if serializable && r.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ReservationRepository{db: tx})
	}, opts...)
}

// LockSpot reads a spot with a row lock held until the transaction ends.
func (r *ReservationRepository) LockSpot(ctx context.Context, spotID int64) (*domain.Spot, error) {
	var s domain.Spot
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, spotID).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Insert writes a reservation and its history row.
func (r *ReservationRepository) Insert(ctx context.Context, res *domain.Reservation) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(res).Error; err != nil {
		return err
	}
	return db.Create(domain.HistoryFor(res)).Error
}

func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// HeldSpotIDs returns the spots holding a pending or confirmed reservation
// that intersects [start, end].
func (r *ReservationRepository) HeldSpotIDs(ctx context.Context, start, end time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("status IN ?", domain.HoldingStatuses).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Distinct().
		Pluck("spot_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ReservationRepository) HasOverlap(ctx context.Context, spotID int64, start, end time.Time) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("spot_id = ?", spotID).
		Where("status IN ?", domain.HoldingStatuses).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// FindHoldingOnDay returns the pending or confirmed reservation on spotID
// covering day. A non-nil userID restricts the search to that owner.
func (r *ReservationRepository) FindHoldingOnDay(ctx context.Context, spotID int64, day time.Time, userID *int64) (*domain.Reservation, error) {
	q := r.db.WithContext(ctx).
		Where("spot_id = ?", spotID).
		Where("status IN ?", domain.HoldingStatuses).
		Where("start_date <= ? AND end_date >= ?", day, day)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}

	var res domain.Reservation
	if err := q.Order("created_at ASC").First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelledCovering returns cancelled reservations whose interval covers day.
func (r *ReservationRepository) CancelledCovering(ctx context.Context, day time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.ReservationCancelled).
		Where("cancelled_at IS NOT NULL").
		Where("start_date <= ? AND end_date >= ?", day, day).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExpirable returns pending reservations covering day with no check-in.
func (r *ReservationRepository) ListExpirable(ctx context.Context, day time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.ReservationPending).
		Where("start_date <= ? AND end_date >= ?", day, day).
		Where("checked_in_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM check_ins c WHERE c.reservation_id = reservations.id)").
		Order("start_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves a reservation to `to` only while its status is one of
// `from`. It reports whether the row changed.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []domain.ReservationStatus, to domain.ReservationStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SyncHistory copies the reservation's current state to its history row.
func (r *ReservationRepository) SyncHistory(ctx context.Context, res *domain.Reservation) error {
	h := domain.HistoryFor(res)
	tx := r.db.WithContext(ctx).
		Model(&domain.ReservationHistory{}).
		Where("reservation_id = ?", res.ID).
		Updates(map[string]any{
			"status":        h.Status,
			"start_date":    h.StartDate,
			"end_date":      h.EndDate,
			"spot_id":       h.SpotID,
			"check_in_time": h.CheckInTime,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return r.db.WithContext(ctx).Create(h).Error
	}
	return nil
}

func (r *ReservationRepository) GetHistory(ctx context.Context, reservationID uuid.UUID) (*domain.ReservationHistory, error) {
	var h domain.ReservationHistory
	if err := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *ReservationRepository) CreateCheckIn(ctx context.Context, c *domain.CheckIn) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ReservationRepository) HasCheckIn(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Where("reservation_id = ?", reservationID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *ReservationRepository) CountCheckIns(ctx context.Context, reservationID uuid.UUID) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Where("reservation_id = ?", reservationID).
		Count(&cnt).Error
	return cnt, err
}

// List returns reservations newest start date first, with the total count
// for the filter. limit <= 0 returns every row.
func (r *ReservationRepository) List(ctx context.Context, f domain.ReservationFilter, limit, offset int) ([]domain.Reservation, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Reservation{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("start_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("end_date <= ?", *f.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order("start_date DESC").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var rows []domain.Reservation
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListHistory returns history rows newest start date first, with the total
// count for the filter. limit <= 0 returns every row.
func (r *ReservationRepository) ListHistory(ctx context.Context, f domain.ReservationFilter, limit, offset int) ([]domain.ReservationHistory, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.ReservationHistory{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("start_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("end_date <= ?", *f.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order("start_date DESC").Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var rows []domain.ReservationHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
