package expiry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"parking/internal/modules/reservation"
	"parking/internal/pkg/clock"
)

var ErrAlreadyRunning = errors.New("expiry scheduler already running")

// Sweeper is the job the scheduler fires.
type Sweeper interface {
	RunExpirySweep(ctx context.Context) (*reservation.SweepResult, error)
}

// Scheduler fires the expiry sweep once a day at a fixed site-local time.
// It is a single job definition, not a general cron.
type Scheduler struct {
	sweeper Sweeper
	clock   clock.Clock
	site    *time.Location
	hour    int
	minute  int

	runMu sync.Mutex

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

func NewScheduler(sweeper Sweeper, clk clock.Clock, site *time.Location, hour, minute int) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	if site == nil {
		site = time.UTC
	}
	return &Scheduler{
		sweeper: sweeper,
		clock:   clk,
		site:    site,
		hour:    hour,
		minute:  minute,
	}
}

// NextRun returns the first firing time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.site)
	y, m, d := local.Date()
	next := time.Date(y, m, d, s.hour, s.minute, 0, 0, s.site)
	if !next.After(now) {
		next = time.Date(y, m, d+1, s.hour, s.minute, 0, 0, s.site)
	}
	return next
}

// Start launches the background loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return ErrAlreadyRunning
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done

	next := s.NextRun(s.clock.Now())
	go func() {
		defer close(done)
		for {
			wait := next.Sub(s.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)

			select {
			case <-timer.C:
				if _, err := s.RunNow(ctx); err != nil {
					log.Printf("Scheduled expiry sweep error: %v", err)
				}
				next = s.NextRun(next)
			case <-stopCh:
				timer.Stop()
				log.Println("Expiry scheduler stopped")
				return
			case <-ctx.Done():
				timer.Stop()
				log.Println("Expiry scheduler stopped (context Done)")
				return
			}
		}
	}()

	log.Printf("Expiry scheduler started, next run at %s", next.Format(time.RFC3339))
	return nil
}

// Stop ends the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stopCh, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

// RunNow runs one sweep immediately. Concurrent calls are serialised.
func (s *Scheduler) RunNow(ctx context.Context) (*reservation.SweepResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	startTime := time.Now()
	res, err := s.sweeper.RunExpirySweep(ctx)
	if err != nil {
		return res, err
	}

	log.Printf("Expiry sweep completed: expired %d reservations (%d failed) in %v",
		res.ExpiredCount, res.FailedCount, time.Since(startTime))
	return res, nil
}
