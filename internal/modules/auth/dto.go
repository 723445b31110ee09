package auth

import "parking/internal/domain"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email"`
	Password  string          `json:"password" validate:"required,min=8"`
	FirstName string          `json:"first_name" validate:"required"`
	LastName  string          `json:"last_name"`
	Role      domain.UserRole `json:"role" validate:"required,oneof=employee manager secretary"`
}

type UserPublic struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	BookingLimit int    `json:"booking_limit"`
	Active       bool   `json:"active"`
}

func toPublic(u *domain.User) UserPublic {
	return UserPublic{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.FullName(),
		Role:         string(u.Role),
		BookingLimit: u.Role.BookingLimit(),
		Active:       u.Active,
	}
}
