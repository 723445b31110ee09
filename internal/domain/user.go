package domain

import "time"

type UserRole string

const (
	RoleEmployee  UserRole = "employee"
	RoleManager   UserRole = "manager"
	RoleSecretary UserRole = "secretary"
)

const (
	standardBookingLimit = 5
	managerBookingLimit  = 30
)

// BookingLimit is both the lookahead (working days) and the maximum stay
// (calendar days) a role may reserve.
func (r UserRole) BookingLimit() int {
	if r == RoleManager {
		return managerBookingLimit
	}
	return standardBookingLimit
}

// IsStaff reports whether the role may act on other users' reservations.
func (r UserRole) IsStaff() bool {
	return r == RoleSecretary
}

func (r UserRole) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleSecretary:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null" validate:"required,email"`
	PasswordHash string    `json:"-" gorm:"not null"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         UserRole  `json:"role" gorm:"size:16;not null;index"`
	Active       bool      `json:"active" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
