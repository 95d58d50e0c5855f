package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ba-assist/ba-assist-backend/config"
)

type stubClient struct {
	tok *fbauth.Token
	err error
}

func (s stubClient) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return s.tok, s.err
}

func TestFirebaseVerifier_Verify(t *testing.T) {
	v := &FirebaseVerifier{client: stubClient{tok: &fbauth.Token{
		UID:    "fb-1",
		Claims: map[string]interface{}{"email": "ana@example.com", "email_verified": true, "name": "Ana"},
	}}}

	ident, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "fb-1", ident.UID)
	assert.Equal(t, "ana@example.com", ident.Email)
	assert.Equal(t, "Ana", ident.Name)
	assert.True(t, ident.EmailVerified)

	v = &FirebaseVerifier{client: stubClient{tok: &fbauth.Token{
		UID:    "fb-2",
		Claims: map[string]interface{}{"email": "victim@example.com", "email_verified": false},
	}}}
	ident, err = v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, ident.EmailVerified)

	v = &FirebaseVerifier{client: stubClient{err: errors.New("expired")}}
	_, err = v.Verify(context.Background(), "tok")
	assert.Error(t, err)
}

func TestNewFirebaseVerifier_DisabledWithoutCredentials(t *testing.T) {
	v, err := NewFirebaseVerifier(context.Background(), &config.FirebaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, v)
}
