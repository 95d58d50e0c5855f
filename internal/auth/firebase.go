package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/ba-assist/ba-assist-backend/config"
	"github.com/ba-assist/ba-assist-backend/internal/auth/domain"
)

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier adapts the Firebase Admin auth client to the sign-in flow.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier returns nil when no credentials are configured.
func NewFirebaseVerifier(ctx context.Context, cfg *config.FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.CredentialsPath == "" {
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*domain.FirebaseIdentity, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	ident := &domain.FirebaseIdentity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		ident.Email = email
	}
	if verified, ok := tok.Claims["email_verified"].(bool); ok {
		ident.EmailVerified = verified
	}
	if name, ok := tok.Claims["name"].(string); ok {
		ident.Name = name
	}
	return ident, nil
}
