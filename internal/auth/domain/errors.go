package domain

import "github.com/ba-assist/ba-assist-backend/internal/apperr"

var (
	ErrUserNotFound       = apperr.New(apperr.ErrNotFound, "user not found")
	ErrEmailTaken         = apperr.New(apperr.ErrConflict, "email is already registered")
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	ErrNotAuthenticated   = apperr.New(apperr.ErrUnauthorized, "not authenticated")
	ErrInvalidResetToken  = apperr.New(apperr.ErrInvalid, "reset token is invalid or expired")
	ErrWrongPassword      = apperr.New(apperr.ErrInvalid, "current password is incorrect")
	ErrFirebaseDisabled   = apperr.New(apperr.ErrUnavailable, "firebase sign-in is not configured")
	ErrInvalidIDToken     = apperr.New(apperr.ErrUnauthorized, "invalid firebase id token")
	ErrEmailUnverified    = apperr.New(apperr.ErrUnauthorized, "firebase e-mail address is not verified")
	ErrFirebaseLinked     = apperr.New(apperr.ErrConflict, "account is linked to another firebase identity")
)
