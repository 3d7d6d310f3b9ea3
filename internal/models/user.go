package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StartingWalletBalance is credited to every new profile
const StartingWalletBalance int64 = 1000

// MinPasswordLength applies to sign-up, password change and reset
const MinPasswordLength = 6

// UserProfile is the denormalized profile kept next to the credential record
type UserProfile struct {
	ID            uuid.UUID `json:"uid" db:"id"`
	Email         string    `json:"email" db:"email"`
	Username      string    `json:"username" db:"username"`
	IsAdmin       bool      `json:"is_admin" db:"is_admin"`
	Wallet        int64     `json:"wallet" db:"wallet"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
}

// Validate checks basic profile fields
func (u *UserProfile) Validate() error {
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	return ValidateUsername(u.Username)
}

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 || len(username) > 30 {
		return fmt.Errorf("username must be between 3 and 30 characters")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Identity is the authenticated caller as established by the access token
type Identity struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"-"`
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username" binding:"required"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token   string      `json:"token"`
	Profile UserProfile `json:"user"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ConfirmResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

type TopUpResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Wallet int64     `json:"wallet"`
}
