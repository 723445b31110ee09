package catalog

import (
	"context"
	"errors"
	"log"
	"strings"

	"parking/internal/domain"
	"parking/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("spot not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidLayout = errors.New("invalid spot layout")
)

type Service struct {
	spotRepo *repository.SpotRepository
	userRepo *repository.UserRepository
}

func NewService(spotRepo *repository.SpotRepository, userRepo *repository.UserRepository) *Service {
	return &Service{spotRepo: spotRepo, userRepo: userRepo}
}

/* ---------- READ ---------- */

func (s *Service) ListSpots(ctx context.Context, f domain.SpotFilter) ([]domain.Spot, error) {
	if f.Row != nil {
		row := strings.ToUpper(strings.TrimSpace(*f.Row))
		f.Row = &row
	}
	return s.spotRepo.List(ctx, f)
}

func (s *Service) GetSpot(ctx context.Context, id int64) (*domain.Spot, error) {
	sp, err := s.spotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return sp, nil
}

func (s *Service) GetSpotByCode(ctx context.Context, code string) (*domain.Spot, error) {
	sp, err := s.spotRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, notFound(err)
	}
	return sp, nil
}

/* ---------- ADMIN ---------- */

// UpdateSpot changes the active and charger flags. Only staff may do it.
// Existing reservations on a deactivated spot are left in place.
func (s *Service) UpdateSpot(ctx context.Context, actorID, spotID int64, req UpdateSpotRequest) (*domain.Spot, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !actor.Active || !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}

	sp, err := s.spotRepo.UpdateFlags(ctx, spotID, req.Active, req.HasCharger)
	if err != nil {
		return nil, notFound(err)
	}

	log.Printf("spot_updated id=%d code=%s active=%t has_charger=%t actor_id=%d",
		sp.ID, sp.Code, sp.Active, sp.HasCharger, actorID)
	return sp, nil
}

// EnsureLayout creates rows × perRow spots, skipping codes that already
// exist. Spots in chargerRows get a charger.
func (s *Service) EnsureLayout(ctx context.Context, rows []string, perRow int, chargerRows []string) (int, error) {
	if len(rows) == 0 || perRow <= 0 || perRow > 99 {
		return 0, ErrInvalidLayout
	}
	charged := make(map[string]bool, len(chargerRows))
	for _, r := range chargerRows {
		charged[strings.ToUpper(r)] = true
	}

	created := 0
	for _, row := range rows {
		row = strings.ToUpper(strings.TrimSpace(row))
		if row == "" {
			return created, ErrInvalidLayout
		}
		for n := 1; n <= perRow; n++ {
			code := domain.SpotCode(row, n)
			if _, err := s.spotRepo.GetByCode(ctx, code); err == nil {
				continue
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return created, err
			}

			sp := &domain.Spot{Code: code, Row: row, Number: n, HasCharger: charged[row], Active: true}
			if err := s.spotRepo.Upsert(ctx, sp); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
