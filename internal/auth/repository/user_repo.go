package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ba-assist/ba-assist-backend/internal/auth/domain"
	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const userColumns = `id, email, name, password_hash, firebase_uid, created_at, updated_at, last_login_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u           domain.User
		hash, fuid  sql.NullString
		lastLoginAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &hash, &fuid, &u.CreatedAt, &u.UpdatedAt, &lastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	if fuid.Valid {
		u.FirebaseUID = &fuid.String
	}
	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, email, name, passwordHash string) (*domain.User, error) {
	const q = `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, q, email, name, passwordHash))
	if postgres.IsUniqueViolation(err, "users_email_key") {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, q, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, q, email)
}

func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE firebase_uid = $1`
	return r.getOne(ctx, q, uid)
}

func (r *UserRepository) getOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

func (r *UserRepository) UpdateName(ctx context.Context, id, name string) (*domain.User, error) {
	const q = `
		UPDATE users SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, q, id, name))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("update user name: %w", err)
	}
	return u, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update password", q, id, passwordHash)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	const q = `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update last login", q, id)
}

func (r *UserRepository) execOne(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpsertFirebase links a Firebase identity to the account with the same
// e-mail, creating a password-less account when there is none. An account
// already linked to a different uid is left alone and reported as a conflict.
func (r *UserRepository) UpsertFirebase(ctx context.Context, uid, email, name string) (*domain.User, error) {
	const q = `
		INSERT INTO users (email, name, firebase_uid)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET firebase_uid = EXCLUDED.firebase_uid,
		    name = CASE WHEN users.name = '' THEN EXCLUDED.name ELSE users.name END,
		    updated_at = NOW()
		WHERE users.firebase_uid IS NULL OR users.firebase_uid = EXCLUDED.firebase_uid
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, q, email, name, uid))
	// The conflict WHERE filtered the row out: the e-mail belongs to an
	// account linked to another uid.
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrFirebaseLinked
	}
	if postgres.IsUniqueViolation(err, "users_firebase_uid_key") {
		return nil, domain.ErrFirebaseLinked
	}
	if err != nil {
		return nil, fmt.Errorf("upsert firebase user: %w", err)
	}
	return u, nil
}
