package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ba-assist/ba-assist-backend/internal/auth/domain"
)

var userCols = []string{"id", "email", "name", "password_hash", "firebase_uid", "created_at", "updated_at", "last_login_at"}

func newRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, name, password_hash)")).
		WithArgs("ana@example.com", "Ana", "hash").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "ana@example.com", "Ana", "hash", nil, now, now, nil))

	u, err := repo.Create(context.Background(), "ana@example.com", "Ana", "hash")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.True(t, u.HasPassword())
	assert.Nil(t, u.FirebaseUID)
	assert.Nil(t, u.LastLoginAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := repo.Create(context.Background(), "ana@example.com", "Ana", "hash")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_GetByID_ScansNullables(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u-2").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-2", "bo@example.com", "Bo", nil, "fb-2", now, now, now))

	u, err := repo.GetByID(context.Background(), "u-2")
	require.NoError(t, err)
	assert.False(t, u.HasPassword())
	require.NotNil(t, u.FirebaseUID)
	assert.Equal(t, "fb-2", *u.FirebaseUID)
	require.NotNil(t, u.LastLoginAt)
}

func TestUserRepository_UpdatePassword_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("u-404", "h").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "u-404", "h")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_UpsertFirebase(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email) DO UPDATE")).
		WithArgs("cy@example.com", "Cy", "fb-3").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-3", "cy@example.com", "Cy", nil, "fb-3", now, now, nil))

	u, err := repo.UpsertFirebase(context.Background(), "fb-3", "cy@example.com", "Cy")
	require.NoError(t, err)
	assert.Equal(t, "u-3", u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpsertFirebase_LinkedToOtherUID(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`WHERE users.firebase_uid IS NULL OR users.firebase_uid = EXCLUDED.firebase_uid`).
		WithArgs("cy@example.com", "Cy", "fb-other").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.UpsertFirebase(context.Background(), "fb-other", "cy@example.com", "Cy")
	assert.ErrorIs(t, err, domain.ErrFirebaseLinked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpsertFirebase_UIDTaken(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email) DO UPDATE")).
		WithArgs("dee@example.com", "Dee", "fb-3").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_firebase_uid_key"})

	_, err := repo.UpsertFirebase(context.Background(), "fb-3", "dee@example.com", "Dee")
	assert.ErrorIs(t, err, domain.ErrFirebaseLinked)
}
