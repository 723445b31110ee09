package reservation

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var (
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrSpotNotFound          = fmt.Errorf("spot %w", ErrNotFound)
	ErrReservationNotFound   = fmt.Errorf("reservation %w", ErrNotFound)
	ErrNoActiveReservation   = fmt.Errorf("active reservation for today %w", ErrNotFound)
	ErrInactiveUser          = errors.New("user is not active")
	ErrInvalidRange          = errors.New("end date is before start date")
	ErrPastDate              = errors.New("start date is in the past")
	ErrLookaheadExceeded     = errors.New("start date is too far ahead for role")
	ErrDurationExceeded      = errors.New("reservation is too long for role")
	ErrChargerMismatch       = errors.New("spot has no charger")
	ErrRecentlyReleased      = errors.New("spot was released after the cutoff today")
	ErrSpotUnavailable       = errors.New("spot is not available for the requested dates")
	ErrAlreadyCheckedIn      = errors.New("reservation already checked in")
	ErrOutOfCheckInWindow    = errors.New("check-in is not possible for this reservation today")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyCancelled      = errors.New("reservation already cancelled")
	ErrNotCancellable        = errors.New("reservation can no longer be cancelled")
	ErrInvalidCheckInRequest = errors.New("spot code or reservation id is required")
)
