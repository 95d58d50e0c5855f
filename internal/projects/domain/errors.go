package domain

import "github.com/ba-assist/ba-assist-backend/internal/apperr"

var (
	ErrNotFound          = apperr.New(apperr.ErrNotFound, "project not found")
	ErrForbidden         = apperr.New(apperr.ErrForbidden, "you do not have access to this project")
	ErrPublicIDExhausted = apperr.New(apperr.ErrConflict, "could not allocate a project id, try again")
)
