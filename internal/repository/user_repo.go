package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkspot/internal/apperr"
	"parkspot/internal/db"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *db.User) error
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByID(ctx context.Context, id int64) (*db.User, error)
	MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error
	UpsertVerificationPin(ctx context.Context, userID int64, pin string, expiresAt time.Time) error
	ConsumeVerificationPin(ctx context.Context, userID int64, pin string, now time.Time) (bool, error)
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(database *sql.DB) *UserRepository {
	return &UserRepository{DB: database}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *db.User) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, phone, role, facility_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		user.Name, user.Email, user.PasswordHash, user.Phone, user.Role, user.FacilityID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s already registered: %w", user.Email, apperr.ErrUnavailable)
		}
		return apperr.Store("insert user", err)
	}
	return nil
}

// GetUserByEmail returns (nil, nil) when no user exists, so callers can treat
// unknown emails the same as bad passwords.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	user, err := r.scanUser(r.DB.QueryRowContext(ctx, userSelect+` WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("get user by email", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*db.User, error) {
	user, err := r.scanUser(r.DB.QueryRowContext(ctx, userSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
		}
		return nil, apperr.Store("get user by id", err)
	}
	return user, nil
}

const userSelect = `
	SELECT id, name, email, password_hash, phone, role, facility_id, email_verified_at, created_at, updated_at
	FROM users`

func (r *UserRepository) scanUser(row *sql.Row) (*db.User, error) {
	var user db.User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Phone,
		&user.Role, &user.FacilityID, &user.EmailVerifiedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email_verified_at = $2, updated_at = NOW() WHERE id = $1`,
		userID, at)
	if err != nil {
		return apperr.Store("mark email verified", err)
	}
	return nil
}

// UpsertVerificationPin replaces any previous pin for the user; only the most
// recently issued pin is valid.
func (r *UserRepository) UpsertVerificationPin(ctx context.Context, userID int64, pin string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO email_verification_pins (user_id, pin, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET pin = EXCLUDED.pin, expires_at = EXCLUDED.expires_at, created_at = NOW()`,
		userID, pin, expiresAt)
	if err != nil {
		return apperr.Store("upsert verification pin", err)
	}
	return nil
}

// ConsumeVerificationPin deletes the pin row when it matches and has not
// expired, reporting whether it did. A pin verifies at most once.
func (r *UserRepository) ConsumeVerificationPin(ctx context.Context, userID int64, pin string, now time.Time) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `
		DELETE FROM email_verification_pins
		WHERE user_id = $1 AND pin = $2 AND expires_at > $3`,
		userID, pin, now)
	if err != nil {
		return false, apperr.Store("consume verification pin", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Store("consume verification pin", err)
	}
	return affected > 0, nil
}
