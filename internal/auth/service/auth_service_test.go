package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/auth/domain"
	"github.com/ba-assist/ba-assist-backend/internal/auth/session"
	"github.com/ba-assist/ba-assist-backend/internal/mailer"
)

type fakeUsers struct {
	byID    map[string]*domain.User
	touched []string
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*domain.User{}} }

func (f *fakeUsers) Create(_ context.Context, email, name, hash string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}
	u := &domain.User{ID: "u-" + email, Email: email, Name: name, PasswordHash: &hash}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) GetByFirebaseUID(_ context.Context, uid string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.FirebaseUID != nil && *u.FirebaseUID == uid {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) UpdateName(_ context.Context, id, name string) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Name = name
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = &hash
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeUsers) UpsertFirebase(_ context.Context, uid, email, name string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			if u.FirebaseUID != nil && *u.FirebaseUID != uid {
				return nil, domain.ErrFirebaseLinked
			}
			u.FirebaseUID = &uid
			return u, nil
		}
	}
	u := &domain.User{ID: "u-" + email, Email: email, Name: name, FirebaseUID: &uid}
	f.byID[u.ID] = u
	return u, nil
}

type fakeSessions struct {
	revoked map[string]time.Time
	resets  map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{revoked: map[string]time.Time{}, resets: map[string]string{}}
}

func (f *fakeSessions) Revoke(_ context.Context, jti string, exp time.Time) error {
	f.revoked[jti] = exp
	return nil
}

func (f *fakeSessions) SaveResetToken(_ context.Context, userID string, _ time.Duration) (string, error) {
	token := "reset-" + userID
	f.resets[token] = userID
	return token, nil
}

func (f *fakeSessions) ConsumeResetToken(_ context.Context, token string) (string, error) {
	id, ok := f.resets[token]
	if !ok {
		return "", session.ErrResetTokenNotFound
	}
	delete(f.resets, token)
	return id, nil
}

type outbox struct{ sent []mailer.Message }

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	o.sent = append(o.sent, m)
	return nil
}

type fakeFirebase struct {
	ident *domain.FirebaseIdentity
	err   error
}

func (f fakeFirebase) Verify(context.Context, string) (*domain.FirebaseIdentity, error) {
	return f.ident, f.err
}

type fixture struct {
	svc      *AuthService
	users    *fakeUsers
	sessions *fakeSessions
	mail     *outbox
}

func newFixture(fb IDTokenVerifier) fixture {
	f := fixture{users: newFakeUsers(), sessions: newFakeSessions(), mail: &outbox{}}
	f.svc = NewAuthService(f.users, session.NewManager("0123456789abcdef0123456789abcdef", time.Hour), f.sessions, f.mail,
		Options{PublicURL: "https://app.example", Firebase: fb})
	return f
}

func TestRegister(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	s, err := f.svc.Register(ctx, domain.RegisterInput{Email: "  Ana@Example.COM ", Password: "correct horse", Name: " Ana "})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", s.User.Email)
	assert.Equal(t, "Ana", s.User.Name)
	assert.NotEmpty(t, s.Token)
	assert.False(t, s.ExpiresAt.IsZero())
	assert.NotEqual(t, "correct horse", *s.User.PasswordHash)
	assert.Equal(t, []string{s.User.ID}, f.users.touched)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "ana@example.com", f.mail.sent[0].To)

	_, err = f.svc.Register(ctx, domain.RegisterInput{Email: "ana@example.com", Password: "another pw"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(nil)
	cases := map[string]domain.RegisterInput{
		"empty email":    {Email: " ", Password: "longenough"},
		"bad email":      {Email: "not-an-email", Password: "longenough"},
		"short password": {Email: "a@example.com", Password: "short"},
		"long password":  {Email: "a@example.com", Password: strings.Repeat("x", 73)},
		"long name":      {Email: "a@example.com", Password: "longenough", Name: strings.Repeat("n", 121)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, domain.RegisterInput{Email: "bo@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	s, err := f.svc.Login(ctx, "BO@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "bo@example.com", s.User.Email)

	_, err = f.svc.Login(ctx, "bo@example.com", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogout_RevokesTokenID(t *testing.T) {
	f := newFixture(nil)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, f.svc.Logout(context.Background(), "jti-1", exp))
	assert.Equal(t, exp, f.sessions.revoked["jti-1"])

	require.NoError(t, f.svc.Logout(context.Background(), "", exp))
	assert.Len(t, f.sessions.revoked, 1)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	s, err := f.svc.Register(ctx, domain.RegisterInput{Email: "cy@example.com", Password: "first-password"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, s.User.ID, "not-it", "second-password")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, s.User.ID, "first-password", "second-password"))
	_, err = f.svc.Login(ctx, "cy@example.com", "second-password")
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	s, err := f.svc.Register(ctx, domain.RegisterInput{Email: "di@example.com", Password: "old-password"})
	require.NoError(t, err)
	f.mail.sent = nil

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))
	assert.Empty(t, f.mail.sent)

	require.NoError(t, f.svc.ForgotPassword(ctx, "DI@example.com"))
	require.Len(t, f.mail.sent, 1)
	token := "reset-" + s.User.ID
	assert.Contains(t, f.mail.sent[0].Body, "https://app.example/reset-password?token="+token)

	err = f.svc.ResetPassword(ctx, token, "short")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "brand-new-password"))
	_, err = f.svc.Login(ctx, "di@example.com", "brand-new-password")
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, token, "another-password")
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
}

func TestFirebaseSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		_, err := newFixture(nil).svc.FirebaseSignIn(ctx, "tok")
		assert.ErrorIs(t, err, apperr.ErrUnavailable)
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := newFixture(fakeFirebase{err: errors.New("expired")}).svc.FirebaseSignIn(ctx, "tok")
		assert.ErrorIs(t, err, domain.ErrInvalidIDToken)
	})

	t.Run("links existing account by email", func(t *testing.T) {
		f := newFixture(fakeFirebase{ident: &domain.FirebaseIdentity{UID: "fb-1", Email: "Eve@Example.com", EmailVerified: true, Name: "Eve"}})
		reg, err := f.svc.Register(ctx, domain.RegisterInput{Email: "eve@example.com", Password: "password-1"})
		require.NoError(t, err)

		s, err := f.svc.FirebaseSignIn(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, s.User.ID)
		require.NotNil(t, s.User.FirebaseUID)
		assert.Equal(t, "fb-1", *s.User.FirebaseUID)
	})

	t.Run("creates password-less account", func(t *testing.T) {
		f := newFixture(fakeFirebase{ident: &domain.FirebaseIdentity{UID: "fb-2", Email: "fay@example.com", EmailVerified: true}})
		s, err := f.svc.FirebaseSignIn(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, s.User.HasPassword())

		_, err = f.svc.Login(ctx, "fay@example.com", "anything-at-all")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unverified email cannot claim an account", func(t *testing.T) {
		f := newFixture(fakeFirebase{ident: &domain.FirebaseIdentity{UID: "fb-mallory", Email: "gil@example.com"}})
		_, err := f.svc.Register(ctx, domain.RegisterInput{Email: "gil@example.com", Password: "password-1"})
		require.NoError(t, err)

		s, err := f.svc.FirebaseSignIn(ctx, "tok")
		assert.ErrorIs(t, err, domain.ErrEmailUnverified)
		assert.Equal(t, 401, apperr.Status(err))
		assert.Nil(t, s)

		u, err := f.users.GetByEmail(ctx, "gil@example.com")
		require.NoError(t, err)
		assert.Nil(t, u.FirebaseUID)
	})

	t.Run("email linked to another uid", func(t *testing.T) {
		f := newFixture(fakeFirebase{ident: &domain.FirebaseIdentity{UID: "fb-first", Email: "hal@example.com", EmailVerified: true}})
		first, err := f.svc.FirebaseSignIn(ctx, "tok")
		require.NoError(t, err)

		f.svc.opts.Firebase = fakeFirebase{ident: &domain.FirebaseIdentity{UID: "fb-second", Email: "hal@example.com", EmailVerified: true}}
		_, err = f.svc.FirebaseSignIn(ctx, "tok")
		assert.ErrorIs(t, err, domain.ErrFirebaseLinked)
		assert.Equal(t, 409, apperr.Status(err))

		u, err := f.users.GetByID(ctx, first.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "fb-first", *u.FirebaseUID)
	})
}

func TestHashPasswordIsBcrypt(t *testing.T) {
	h, err := hashPassword("pa55word!")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("pa55word!")))
}
