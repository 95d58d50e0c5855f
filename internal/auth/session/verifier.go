package session

import (
	"context"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

var (
	errUnauthenticated  = apperr.New(apperr.ErrUnauthorized, "not authenticated")
	errSessionRevoked   = apperr.New(apperr.ErrUnauthorized, "session has been revoked")
	errStateUnavailable = apperr.New(apperr.ErrUnavailable, "session store unavailable")
)

type revocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Verifier checks a raw token against its signature, expiry and the denylist.
type Verifier struct {
	tokens  *Manager
	revoked revocationChecker
}

func NewVerifier(tokens *Manager, revoked revocationChecker) *Verifier {
	return &Verifier{tokens: tokens, revoked: revoked}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := v.tokens.Parse(raw)
	if err != nil {
		return nil, errUnauthenticated
	}
	revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errStateUnavailable
	}
	if revoked {
		return nil, errSessionRevoked
	}
	return claims, nil
}
