package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"parking/internal/domain"
	"parking/internal/pkg/clock"
	"parking/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Availability is the answer to an availability query.
type Availability struct {
	Spots       []domain.Spot `json:"spots"`
	Total       int           `json:"total"`
	WithCharger int           `json:"with_charger"`
}

type CreateInput struct {
	UserID         int64
	StartDate      time.Time
	EndDate        time.Time
	SpotID         *int64
	RequireCharger bool
}

// CheckInTarget addresses a check-in by spot code or by reservation id.
type CheckInTarget struct {
	SpotCode      string
	ReservationID uuid.UUID
}

type CheckInResult struct {
	CheckIn     *domain.CheckIn     `json:"check_in"`
	Reservation *domain.Reservation `json:"reservation"`
}

type SweepResult struct {
	ExpiredCount int `json:"expired_count"`
	FailedCount  int `json:"failed_count"`
}

// Service is the reservation lifecycle manager. It owns every status
// transition: create, check-in, cancel and expire.
type Service struct {
	users        UserDirectory
	spots        SpotCatalog
	reservations *repository.ReservationRepository
	index        *AvailabilityIndex
	policy       Policy
	notifs       NotificationEmitter
	events       EventPublisher
	clock        clock.Clock
}

func NewService(
	users UserDirectory,
	spots SpotCatalog,
	reservations *repository.ReservationRepository,
	notifs NotificationEmitter,
	events EventPublisher,
	clk clock.Clock,
	policy Policy,
) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		users:        users,
		spots:        spots,
		reservations: reservations,
		index:        NewAvailabilityIndex(spots),
		policy:       policy,
		notifs:       notifs,
		events:       events,
		clock:        clk,
	}
}

// CheckAvailability lists the spots free for the whole of [start, end].
// Spots released today after the cutoff are left out of same-day results.
func (s *Service) CheckAvailability(ctx context.Context, start, end time.Time, requireCharger bool) (*Availability, error) {
	start, end = domain.DayOf(start, nil), domain.DayOf(end, nil)
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	now := s.clock.Now()
	excluded, err := s.releasedSpots(ctx, s.reservations, start, now)
	if err != nil {
		return nil, err
	}

	free, err := s.index.Free(ctx, s.reservations, start, end, requireCharger, excluded)
	if err != nil {
		return nil, err
	}

	out := &Availability{Spots: free, Total: len(free)}
	for _, sp := range free {
		if sp.HasCharger {
			out.WithCharger++
		}
	}
	return out, nil
}

// CreateReservation validates the request, picks or verifies the spot and
// commits a pending reservation with its history row in one transaction.
// Dates are taken as calendar days in whatever zone the caller built them.
func (s *Service) CreateReservation(ctx context.Context, in CreateInput) (*domain.Reservation, error) {
	now := s.clock.Now()
	in.StartDate = domain.DayOf(in.StartDate, nil)
	in.EndDate = domain.DayOf(in.EndDate, nil)

	user, err := s.loadUser(ctx, in.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if err := s.policy.CheckRequest(user, in.StartDate, in.EndDate, now); err != nil {
		return nil, err
	}

	var requested *domain.Spot
	if in.SpotID != nil {
		requested, err = s.loadSpot(ctx, *in.SpotID)
		if err != nil {
			return nil, err
		}
		if err := s.policy.CheckSpot(requested, in.RequireCharger); err != nil {
			return nil, err
		}
		if !requested.Active {
			return nil, fmt.Errorf("%w: %s is inactive", ErrSpotUnavailable, requested.Code)
		}
	}

	var candidates []domain.Spot
	if requested != nil {
		candidates = []domain.Spot{*requested}
	} else {
		candidates, err = s.index.Candidates(ctx, in.RequireCharger)
		if err != nil {
			return nil, err
		}
	}

	res := &domain.Reservation{
		UserID:    user.ID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    domain.ReservationPending,
	}

	err = s.reservations.Transaction(ctx, true, func(tx *repository.ReservationRepository) error {
		excluded, err := s.releasedSpots(ctx, tx, in.StartDate, now)
		if err != nil {
			return err
		}
		if requested != nil && excluded[requested.ID] {
			return fmt.Errorf("%w: %s", ErrRecentlyReleased, requested.Code)
		}

		held, err := tx.HeldSpotIDs(ctx, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}

		for _, sp := range freeSpots(candidates, held, excluded) {
			locked, err := tx.LockSpot(ctx, sp.ID)
			if err != nil {
				return err
			}
			if !locked.Active || (in.RequireCharger && !locked.HasCharger) {
				continue
			}
			overlap, err := tx.HasOverlap(ctx, locked.ID, in.StartDate, in.EndDate)
			if err != nil {
				return err
			}
			if overlap {
				continue
			}

			res.SpotID = locked.ID
			return tx.Insert(ctx, res)
		}
		return ErrSpotUnavailable
	})
	if err != nil {
		if isWriteConflict(err) {
			return nil, ErrSpotUnavailable
		}
		return nil, err
	}

	log.Printf("reservation_created id=%s user_id=%d spot_id=%d start=%s end=%s",
		res.ID, res.UserID, res.SpotID, res.StartDate.Format(domain.DayLayout), res.EndDate.Format(domain.DayLayout))

	s.emit(ctx, res, user.Email, domain.NotifConfirmation)
	s.publish(EventCreated, res, now)
	return res, nil
}

// CancelReservation moves a pending or confirmed reservation to cancelled.
// Only the owner or staff may cancel.
func (s *Service) CancelReservation(ctx context.Context, id uuid.UUID, actorID int64) (*domain.Reservation, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	res, err := s.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.ID && !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if err := cancellable(res.Status); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cancelledAt := now.UTC()

	err = s.reservations.Transaction(ctx, false, func(tx *repository.ReservationRepository) error {
		ok, err := tx.UpdateStatus(ctx, id, domain.SourcesOf(domain.ReservationCancelled), domain.ReservationCancelled, map[string]any{
			"cancelled_at": cancelledAt,
		})
		if err != nil {
			return err
		}
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return cancellable(current.Status)
		}
		*res = *current
		return tx.SyncHistory(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("reservation_cancelled id=%s spot_id=%d actor_id=%d at=%s",
		res.ID, res.SpotID, actor.ID, cancelledAt.Format(time.RFC3339))

	s.emitToOwner(ctx, res, domain.NotifCancelled)
	s.publish(EventCancelled, res, now)
	return res, nil
}

func cancellable(status domain.ReservationStatus) error {
	switch {
	case domain.CanTransition(status, domain.ReservationCancelled):
		return nil
	case status == domain.ReservationCancelled:
		return ErrAlreadyCancelled
	}
	return fmt.Errorf("%w: reservation is %s", ErrNotCancellable, status)
}

// checkInnable maps a status that cannot move to confirmed onto the
// matching check-in error.
func checkInnable(status domain.ReservationStatus) error {
	switch {
	case domain.CanTransition(status, domain.ReservationConfirmed):
		return nil
	case status == domain.ReservationConfirmed:
		return ErrAlreadyCheckedIn
	}
	return fmt.Errorf("%w: reservation is %s", ErrOutOfCheckInWindow, status)
}

// CheckIn confirms today's reservation addressed by spot code or id.
func (s *Service) CheckIn(ctx context.Context, target CheckInTarget, actorID int64) (*CheckInResult, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := s.policy.Today(now)

	var res *domain.Reservation
	switch {
	case target.ReservationID != uuid.Nil:
		res, err = s.loadReservation(ctx, target.ReservationID)
		if err != nil {
			return nil, err
		}
		if res.UserID != actor.ID && !actor.Role.IsStaff() {
			return nil, ErrForbidden
		}
		if !res.Covers(today) {
			return nil, fmt.Errorf("%w: reservation runs %s to %s", ErrOutOfCheckInWindow,
				res.StartDate.Format(domain.DayLayout), res.EndDate.Format(domain.DayLayout))
		}
		if !res.Status.Holds() {
			return nil, fmt.Errorf("%w: reservation is %s", ErrOutOfCheckInWindow, res.Status)
		}

	case strings.TrimSpace(target.SpotCode) != "":
		spot, err := s.spots.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(target.SpotCode)))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSpotNotFound
			}
			return nil, err
		}
		var owner *int64
		if !actor.Role.IsStaff() {
			owner = &actor.ID
		}
		res, err = s.reservations.FindHoldingOnDay(ctx, spot.ID, today, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNoActiveReservation
			}
			return nil, err
		}

	default:
		return nil, ErrInvalidCheckInRequest
	}

	if err := checkInnable(res.Status); err != nil {
		return nil, err
	}

	checkedInAt := now.UTC()
	ci := &domain.CheckIn{ReservationID: res.ID, ActorID: actor.ID, CheckedInAt: checkedInAt}

	err = s.reservations.Transaction(ctx, false, func(tx *repository.ReservationRepository) error {
		exists, err := tx.HasCheckIn(ctx, res.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyCheckedIn
		}
		if err := tx.CreateCheckIn(ctx, ci); err != nil {
			return err
		}

		ok, err := tx.UpdateStatus(ctx, res.ID, domain.SourcesOf(domain.ReservationConfirmed), domain.ReservationConfirmed, map[string]any{
			"checked_in_at": checkedInAt,
		})
		if err != nil {
			return err
		}
		current, err := tx.GetByID(ctx, res.ID)
		if err != nil {
			return err
		}
		if !ok {
			return checkInnable(current.Status)
		}
		*res = *current
		return tx.SyncHistory(ctx, res)
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}

	log.Printf("reservation_checked_in id=%s spot_id=%d actor_id=%d", res.ID, res.SpotID, actor.ID)

	s.publish(EventConfirmed, res, now)
	return &CheckInResult{CheckIn: ci, Reservation: res}, nil
}

// RunExpirySweep expires today's pending reservations that have no check-in.
// Each reservation commits on its own; failures are logged and skipped.
func (s *Service) RunExpirySweep(ctx context.Context) (*SweepResult, error) {
	now := s.clock.Now()
	today := s.policy.Today(now)

	due, err := s.reservations.ListExpirable(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list expirable reservations: %w", err)
	}
	log.Printf("expiry_sweep started day=%s candidates=%d", today.Format(domain.DayLayout), len(due))

	out := &SweepResult{}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res := due[i]
		expired, err := s.expireOne(ctx, &res, now)
		if err != nil {
			out.FailedCount++
			log.Printf("expiry_sweep failed id=%s error=%q", res.ID, err.Error())
			continue
		}
		if !expired {
			continue
		}
		out.ExpiredCount++

		s.emitToOwner(ctx, &res, domain.NotifExpired)
		s.publish(EventExpired, &res, now)
	}

	log.Printf("expiry_sweep completed day=%s expired=%d failed=%d",
		today.Format(domain.DayLayout), out.ExpiredCount, out.FailedCount)
	return out, nil
}

func (s *Service) expireOne(ctx context.Context, res *domain.Reservation, now time.Time) (bool, error) {
	var expired bool
	err := s.reservations.Transaction(ctx, false, func(tx *repository.ReservationRepository) error {
		ok, err := tx.UpdateStatus(ctx, res.ID, domain.SourcesOf(domain.ReservationExpired), domain.ReservationExpired, map[string]any{
			"expired_at": now.UTC(),
		})
		if err != nil || !ok {
			return err
		}
		current, err := tx.GetByID(ctx, res.ID)
		if err != nil {
			return err
		}
		*res = *current
		expired = true
		return tx.SyncHistory(ctx, res)
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

// GetReservation returns a reservation to its owner or to staff.
func (s *Service) GetReservation(ctx context.Context, id uuid.UUID, actorID int64) (*domain.Reservation, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	res, err := s.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.ID && !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	return res, nil
}

// ListReservations lists the reservations owned by userID.
func (s *Service) ListReservations(ctx context.Context, userID int64, f domain.ReservationFilter) ([]domain.Reservation, error) {
	f = f.Normalized()
	f.UserID = &userID
	rows, _, err := s.reservations.List(ctx, f, 0, 0)
	return rows, err
}

// ListAllReservations is the staff view over every user, paginated.
func (s *Service) ListAllReservations(ctx context.Context, actorID int64, f domain.ReservationFilter, page, limit int) ([]domain.Reservation, int64, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !actor.Role.IsStaff() {
		return nil, 0, ErrForbidden
	}
	limit, offset := pageBounds(page, limit)
	return s.reservations.List(ctx, f.Normalized(), limit, offset)
}

// ListHistory returns the history rows of userID's reservations.
func (s *Service) ListHistory(ctx context.Context, userID int64, f domain.ReservationFilter) ([]domain.ReservationHistory, error) {
	f = f.Normalized()
	f.UserID = &userID
	rows, _, err := s.reservations.ListHistory(ctx, f, 0, 0)
	return rows, err
}

// ListAllHistory is the staff view over every user's history, paginated.
func (s *Service) ListAllHistory(ctx context.Context, actorID int64, f domain.ReservationFilter, page, limit int) ([]domain.ReservationHistory, int64, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !actor.Role.IsStaff() {
		return nil, 0, ErrForbidden
	}
	limit, offset := pageBounds(page, limit)
	return s.reservations.ListHistory(ctx, f.Normalized(), limit, offset)
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return limit, (page - 1) * limit
}

// releasedSpots applies the same-day release rule for a request starting on
// start. Inside a transaction repo must be the transaction's repository.
func (s *Service) releasedSpots(ctx context.Context, repo *repository.ReservationRepository, start, now time.Time) (map[int64]bool, error) {
	if !s.policy.CutoffApplies(start, now) {
		return nil, nil
	}
	cancelled, err := repo.CancelledCovering(ctx, s.policy.Today(now))
	if err != nil {
		return nil, err
	}
	return s.policy.ReleasedSince(cancelled, now), nil
}

func (s *Service) loadUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) loadSpot(ctx context.Context, id int64) (*domain.Spot, error) {
	sp, err := s.spots.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}
	return sp, nil
}

func (s *Service) loadReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) emitToOwner(ctx context.Context, res *domain.Reservation, kind domain.NotificationKind) {
	owner, err := s.users.GetByID(ctx, res.UserID)
	if err != nil {
		log.Printf("notification_enqueue_failed reservation_id=%s kind=%s error=%q", res.ID, kind, err.Error())
		return
	}
	s.emit(ctx, res, owner.Email, kind)
}

// emit never fails the transition that triggered it.
func (s *Service) emit(ctx context.Context, res *domain.Reservation, recipient string, kind domain.NotificationKind) {
	if s.notifs == nil {
		return
	}
	if _, err := s.notifs.Enqueue(ctx, res.ID, recipient, kind); err != nil {
		log.Printf("notification_enqueue_failed reservation_id=%s kind=%s error=%q", res.ID, kind, err.Error())
	}
}

func (s *Service) publish(t EventType, res *domain.Reservation, at time.Time) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventFor(t, res, at))
}

// isWriteConflict recognises the errors a losing concurrent Create gets.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "could not serialize")
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
