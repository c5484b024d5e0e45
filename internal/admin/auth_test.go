package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/middleware"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator("Ops@VocalVent.com", hashPassword(t, "s3cret"))

	email, err := auth.Authenticate(context.Background(), " ops@vocalvent.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops@vocalvent.com", email)

	_, err = auth.Authenticate(context.Background(), "ops@vocalvent.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.True(t, gateway.IsError(err))

	_, err = auth.Authenticate(context.Background(), "other@vocalvent.com", "s3cret")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestAuthenticateWithoutAccount(t *testing.T) {
	_, err := NewAuthenticator("", "").Authenticate(context.Background(), "a@b.com", "x")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, expires, err := issuer.Issue("ops@vocalvent.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := middleware.ParseAdminToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops@vocalvent.com", claims.Email)
	assert.Equal(t, middleware.AdminRole, claims.Role)

	_, err = middleware.ParseAdminToken("other", token)
	assert.Error(t, err)
}

func TestTokenIssuerExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue("ops@vocalvent.com")
	require.NoError(t, err)

	_, err = middleware.ParseAdminToken("secret", token)
	assert.Error(t, err)
}

func TestTokenIssuerRequiresSecret(t *testing.T) {
	_, _, err := NewTokenIssuer("", 0).Issue("ops@vocalvent.com")
	assert.ErrorIs(t, err, ErrTokenSecretMissing)
}
