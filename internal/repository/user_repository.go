package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/models"
)

// UserRepository stores login credentials and user profiles
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const credentialColumns = `user_id, email, display_name, password_hash, created_at`

func scanCredentials(row rowScanner) (*auth.Credentials, error) {
	c := &auth.Credentials{}
	err := row.Scan(&c.UserID, &c.Email, &c.DisplayName, &c.PasswordHash, &c.CreatedAt)
	return c, err
}

// CreateCredentials inserts a credential record
func (r *UserRepository) CreateCredentials(ctx context.Context, c *auth.Credentials) error {
	query := `
		INSERT INTO user_credentials (user_id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, c.UserID, c.Email, c.DisplayName, c.PasswordHash).Scan(&c.CreatedAt)
	if database.IsUniqueViolation(err, "user_credentials_email_key") {
		return fmt.Errorf("email %s: %w", c.Email, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create credentials: %w", err)
	}

	return nil
}

func (r *UserRepository) GetCredentials(ctx context.Context, userID uuid.UUID) (*auth.Credentials, error) {
	query := `SELECT ` + credentialColumns + ` FROM user_credentials WHERE user_id = $1`

	c, err := scanCredentials(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(err, "credentials")
	}
	return c, nil
}

func (r *UserRepository) GetCredentialsByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	query := `SELECT ` + credentialColumns + ` FROM user_credentials WHERE email = $1`

	c, err := scanCredentials(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, notFound(err, "credentials")
	}
	return c, nil
}

func (r *UserRepository) UpdateCredentials(ctx context.Context, userID uuid.UUID, displayName, email string) error {
	query := `
		UPDATE user_credentials
		SET display_name = $1, email = $2, updated_at = NOW()
		WHERE user_id = $3
	`

	res, err := r.db.ExecContext(ctx, query, displayName, email, userID)
	if database.IsUniqueViolation(err, "user_credentials_email_key") {
		return fmt.Errorf("email %s: %w", email, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	return expectRow(res, "credentials")
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	query := `UPDATE user_credentials SET password_hash = $1, updated_at = NOW() WHERE user_id = $2`

	res, err := r.db.ExecContext(ctx, query, hash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectRow(res, "credentials")
}

func (r *UserRepository) DeleteCredentials(ctx context.Context, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return expectRow(res, "credentials")
}

const profileColumns = `id, email, username, is_admin, wallet, created_at, email_verified`

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	err := row.Scan(&p.ID, &p.Email, &p.Username, &p.IsAdmin, &p.Wallet, &p.CreatedAt, &p.EmailVerified)
	return p, err
}

// CreateProfile inserts a profile for an existing credential record
func (r *UserRepository) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	query := `
		INSERT INTO users (id, email, username, is_admin, wallet, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.Email,
		p.Username,
		p.IsAdmin,
		p.Wallet,
		p.EmailVerified,
	).Scan(&p.CreatedAt)

	switch {
	case database.IsUniqueViolation(err, "users_username_key"):
		return apperr.ErrDuplicateUsername
	case database.IsUniqueViolation(err, ""):
		return fmt.Errorf("profile %s: %w", p.ID, apperr.ErrConflict)
	case err != nil:
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

func (r *UserRepository) GetProfile(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return p, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE username = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return p, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) error {
	query := `UPDATE users SET username = $1, email = $2, updated_at = NOW() WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, username, email, id)
	if database.IsUniqueViolation(err, "users_username_key") {
		return apperr.ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectRow(res, "user")
}

// ListProfiles returns all profiles, newest first
func (r *UserRepository) ListProfiles(ctx context.Context) ([]models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *p)
	}

	return users, rows.Err()
}

// IncrementWallet adds delta to the wallet in one statement
func (r *UserRepository) IncrementWallet(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	query := `UPDATE users SET wallet = wallet + $1, updated_at = NOW() WHERE id = $2 RETURNING wallet`

	var balance int64
	if err := r.db.QueryRowContext(ctx, query, delta, id).Scan(&balance); err != nil {
		return 0, notFound(err, "user")
	}
	return balance, nil
}
