package reservation

import (
	"fmt"
	"time"

	"parking/internal/domain"
)

// Policy holds the side-effect-free booking rules. All wall-clock rules are
// evaluated in Site.
type Policy struct {
	Site         *time.Location
	CutoffHour   int
	CutoffMinute int
}

func NewPolicy(site *time.Location, cutoffHour, cutoffMinute int) Policy {
	if site == nil {
		site = time.UTC
	}
	return Policy{Site: site, CutoffHour: cutoffHour, CutoffMinute: cutoffMinute}
}

// Today is the site-local calendar day of now.
func (p Policy) Today(now time.Time) time.Time {
	return domain.DayOf(now, p.Site)
}

// CutoffAt is the release cutoff instant on day.
func (p Policy) CutoffAt(day time.Time) time.Time {
	return domain.AtLocalTime(day, p.CutoffHour, p.CutoffMinute, p.Site)
}

// CheckRequest applies, in order, the user, date, lookahead and duration
// rules and returns the first failure.
func (p Policy) CheckRequest(user *domain.User, start, end, now time.Time) error {
	if user == nil {
		return ErrUserNotFound
	}
	if !user.Active {
		return ErrInactiveUser
	}

	if end.Before(start) {
		return ErrInvalidRange
	}
	today := p.Today(now)
	if start.Before(today) {
		return ErrPastDate
	}

	limit := user.Role.BookingLimit()
	if ahead := WorkingDaysBetween(today, start); ahead > limit {
		return fmt.Errorf("%w: %d working days ahead, %s limit is %d", ErrLookaheadExceeded, ahead, user.Role, limit)
	}
	if days := domain.DaysInclusive(start, end); days > limit {
		return fmt.Errorf("%w: %d days, %s limit is %d", ErrDurationExceeded, days, user.Role, limit)
	}
	return nil
}

// CheckSpot validates an explicitly requested spot against the charger need.
func (p Policy) CheckSpot(spot *domain.Spot, requireCharger bool) error {
	if requireCharger && !spot.HasCharger {
		return fmt.Errorf("%w: %s", ErrChargerMismatch, spot.Code)
	}
	return nil
}

// CutoffApplies reports whether a request starting on start is subject to
// the same-day release rule at now.
func (p Policy) CutoffApplies(start, now time.Time) bool {
	today := p.Today(now)
	if !start.Equal(today) {
		return false
	}
	return !now.Before(p.CutoffAt(today))
}

// ReleasedSince returns the spots of cancelled reservations that were
// cancelled today at or after the cutoff.
func (p Policy) ReleasedSince(cancelled []domain.Reservation, now time.Time) map[int64]bool {
	today := p.Today(now)
	cutoff := p.CutoffAt(today)

	out := make(map[int64]bool)
	for _, r := range cancelled {
		if r.CancelledAt == nil || !r.Covers(today) {
			continue
		}
		at := *r.CancelledAt
		if at.Before(cutoff) || !domain.DayOf(at, p.Site).Equal(today) {
			continue
		}
		out[r.SpotID] = true
	}
	return out
}

// WorkingDaysBetween counts Monday to Friday days in (from, to]. from itself
// is never counted; to is counted when it is a weekday.
func WorkingDaysBetween(from, to time.Time) int {
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
