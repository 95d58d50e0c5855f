package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/auth/domain"
	"github.com/ba-assist/ba-assist-backend/internal/auth/session"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/mailer"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
	maxNameLen       = 120
)

type UserRepository interface {
	Create(ctx context.Context, email, name, passwordHash string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	UpdateName(ctx context.Context, id, name string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string) error
	UpsertFirebase(ctx context.Context, uid, email, name string) (*domain.User, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, *session.Claims, error)
}

type SessionStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	SaveResetToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ConsumeResetToken(ctx context.Context, token string) (string, error)
}

type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.FirebaseIdentity, error)
}

// Session is a freshly issued session token for a user.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type Options struct {
	ResetTTL  time.Duration
	PublicURL string
	// nil disables POST /auth/firebase.
	Firebase IDTokenVerifier
}

type AuthService struct {
	users    UserRepository
	tokens   TokenIssuer
	sessions SessionStore
	mail     mailer.Sender
	opts     Options
}

func NewAuthService(users UserRepository, tokens TokenIssuer, sessions SessionStore, mail mailer.Sender, opts Options) *AuthService {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &AuthService{users: users, tokens: tokens, sessions: sessions, mail: mail, opts: opts}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Invalidf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Invalidf("email is not valid")
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return apperr.Invalidf("password must be at least %d characters", minPasswordLen)
	}
	if len(pw) > maxPasswordBytes {
		return apperr.Invalidf("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", apperr.Invalidf("name must be at most %d characters", maxNameLen)
	}
	return name, nil
}

func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (s *AuthService) Register(ctx context.Context, in domain.RegisterInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, email, name, hash)
	if err != nil {
		return nil, err
	}

	s.sendBestEffort(ctx, mailer.Welcome(user.Email, user.Name, s.opts.PublicURL))
	return s.startSession(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*Session, error) {
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		logging.FromContext(ctx).Warn("record last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: claims.ExpiresAt()}, nil
}

// Logout revokes the token id so the cookie cannot be replayed.
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, jti, expiresAt)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (*domain.User, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return s.users.UpdateName(ctx, userID, name)
}

// ChangePassword requires the current password unless the account has none
// yet (Firebase-only accounts setting a first password).
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() {
		if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(current)) != nil {
			return domain.ErrWrongPassword
		}
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// ForgotPassword never reveals whether the address is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	logger := logging.FromContext(ctx)
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.sessions.SaveResetToken(ctx, user.ID, s.opts.ResetTTL)
	if err != nil {
		return err
	}
	link := s.opts.PublicURL + "/reset-password?token=" + url.QueryEscape(token)
	s.sendBestEffort(ctx, mailer.PasswordReset(user.Email, link, s.opts.ResetTTL))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrInvalidResetToken
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	userID, err := s.sessions.ConsumeResetToken(ctx, token)
	if errors.Is(err, session.ErrResetTokenNotFound) {
		return domain.ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// FirebaseSignIn exchanges a Firebase ID token for a session.
func (s *AuthService) FirebaseSignIn(ctx context.Context, idToken string) (*Session, error) {
	if s.opts.Firebase == nil {
		return nil, domain.ErrFirebaseDisabled
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.Invalidf("id_token is required")
	}
	ident, err := s.opts.Firebase.Verify(ctx, idToken)
	if err != nil {
		logging.FromContext(ctx).Info("firebase token rejected", zap.Error(err))
		return nil, domain.ErrInvalidIDToken
	}

	user, err := s.users.GetByFirebaseUID(ctx, ident.UID)
	if errors.Is(err, domain.ErrUserNotFound) {
		email := NormalizeEmail(ident.Email)
		if email == "" {
			return nil, apperr.Invalidf("firebase account has no e-mail address")
		}
		// The address selects which account gets linked, so it must be proven.
		if !ident.EmailVerified {
			return nil, domain.ErrEmailUnverified
		}
		user, err = s.users.UpsertFirebase(ctx, ident.UID, email, strings.TrimSpace(ident.Name))
	}
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) sendBestEffort(ctx context.Context, msg mailer.Message) {
	if s.mail == nil {
		return
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		logging.FromContext(ctx).Warn("mail send failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}
