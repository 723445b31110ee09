package repository

import (
	"context"

	"parking/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SpotRepository struct {
	db *gorm.DB
}

func NewSpotRepository(db *gorm.DB) *SpotRepository {
	return &SpotRepository{db: db}
}

func (r *SpotRepository) Create(ctx context.Context, s *domain.Spot) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// Upsert inserts a spot or leaves an existing one with the same code untouched.
func (r *SpotRepository) Upsert(ctx context.Context, s *domain.Spot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(s).Error
}

// List returns spots ordered by row then number.
func (r *SpotRepository) List(ctx context.Context, f domain.SpotFilter) ([]domain.Spot, error) {
	q := r.db.WithContext(ctx).Model(&domain.Spot{})
	if f.Row != nil {
		q = q.Where("row_letter = ?", *f.Row)
	}
	if f.HasCharger != nil {
		q = q.Where("has_charger = ?", *f.HasCharger)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}

	var spots []domain.Spot
	if err := q.Order("row_letter ASC").Order("number ASC").Find(&spots).Error; err != nil {
		return nil, err
	}
	return spots, nil
}

func (r *SpotRepository) GetByID(ctx context.Context, id int64) (*domain.Spot, error) {
	var s domain.Spot
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SpotRepository) GetByCode(ctx context.Context, code string) (*domain.Spot, error) {
	var s domain.Spot
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateFlags changes the administrative flags of a spot. Nil leaves a flag as is.
func (r *SpotRepository) UpdateFlags(ctx context.Context, id int64, active, hasCharger *bool) (*domain.Spot, error) {
	updates := map[string]any{}
	if active != nil {
		updates["active"] = *active
	}
	if hasCharger != nil {
		updates["has_charger"] = *hasCharger
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&domain.Spot{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetByID(ctx, id)
}
