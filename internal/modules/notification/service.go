package notification

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"parking/internal/domain"
	"parking/internal/pkg/clock"
	"parking/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages the durable notification intent queue. The mail worker
// is an external collaborator: it lists pending intents and reports the
// outcome through MarkSent and MarkFailed.
type Service struct {
	repo  *repository.NotificationRepository
	clock clock.Clock
}

func NewService(repo *repository.NotificationRepository, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, clock: clk}
}

// Enqueue records a pending intent for recipient.
func (s *Service) Enqueue(ctx context.Context, reservationID uuid.UUID, recipient string, kind domain.NotificationKind) (*domain.NotificationIntent, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, ErrInvalidRecipient
	}
	switch kind {
	case domain.NotifConfirmation, domain.NotifReminder, domain.NotifCancelled, domain.NotifExpired:
	default:
		return nil, ErrInvalidKind
	}

	n := &domain.NotificationIntent{
		ReservationID: reservationID,
		Recipient:     recipient,
		Kind:          kind,
		Status:        domain.DeliveryPending,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	log.Printf("notification_enqueued id=%s reservation_id=%s kind=%s", n.ID, reservationID, kind)
	return n, nil
}

func (s *Service) MarkSent(ctx context.Context, id uuid.UUID) (*domain.NotificationIntent, error) {
	sentAt := s.clock.Now().UTC()
	return s.transition(ctx, id, domain.DeliveryPending, domain.DeliverySent, ErrNotPending, map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"sent_at":    sentAt,
		"last_error": "",
	})
}

func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.NotificationIntent, error) {
	return s.transition(ctx, id, domain.DeliveryPending, domain.DeliveryFailed, ErrNotPending, map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": strings.TrimSpace(reason),
	})
}

// Retry puts a failed intent back in the pending queue.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*domain.NotificationIntent, error) {
	n, err := s.transition(ctx, id, domain.DeliveryFailed, domain.DeliveryPending, ErrNotRetryable, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("notification_retry id=%s attempts=%d", n.ID, n.Attempts)
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.NotificationIntent, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// List pages through intents newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, status domain.DeliveryStatus, page, limit int) ([]domain.NotificationIntent, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, status, limit, (page-1)*limit)
}

func (s *Service) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]domain.NotificationIntent, error) {
	return s.repo.ListByReservation(ctx, reservationID)
}

// Purge deletes sent intents older than keep. Pending and failed intents
// are never purged.
func (s *Service) Purge(ctx context.Context, keep time.Duration) (int64, error) {
	if keep <= 0 {
		return 0, ErrInvalidRetention
	}
	start := time.Now()
	deleted, err := s.repo.DeleteSentBefore(ctx, s.clock.Now().UTC().Add(-keep))
	if err != nil {
		log.Printf("notification purge failed: %v", err)
		return 0, err
	}
	log.Printf("Cleanup completed: deleted %d sent notifications in %v", deleted, time.Since(start))
	return deleted, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to domain.DeliveryStatus, wrongState error, extra map[string]any) (*domain.NotificationIntent, error) {
	ok, err := s.repo.UpdateStatus(ctx, id, from, to, extra)
	if err != nil {
		return nil, err
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wrongState
	}
	return n, nil
}
