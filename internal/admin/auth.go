// Package admin is the operator surface: login, record review and the
// shared setting groups every visitor sees.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/middleware"
)

// ErrTokenSecretMissing is returned when tokens are requested without a signing secret.
var ErrTokenSecretMissing = errors.New("admin: jwt secret not configured")

// Authenticator checks operator credentials against the configured account.
type Authenticator struct {
	email        string
	passwordHash []byte
}

// NewAuthenticator creates an authenticator for one operator account. An
// empty email or hash rejects every login.
func NewAuthenticator(email, passwordHash string) *Authenticator {
	return &Authenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
	}
}

// Authenticate returns the canonical operator email or an authorization
// *gateway.Error.
func (a *Authenticator) Authenticate(_ context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if a.email == "" || len(a.passwordHash) == 0 {
		return "", unauthorized("login", errors.New("no admin account configured"))
	}
	// Compare the hash even on an email mismatch so both paths cost the same.
	hashErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if subtle.ConstantTimeCompare([]byte(email), []byte(a.email)) != 1 || hashErr != nil {
		return "", unauthorized("login", nil)
	}
	return a.email, nil
}

// TokenIssuer signs admin session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an HS256 issuer. ttl defaults to 12 hours.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for email and returns it with its expiry.
func (i *TokenIssuer) Issue(email string) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}
	now := i.now().UTC()
	expires := now.Add(i.ttl)
	claims := middleware.AdminClaims{
		Email: email,
		Role:  middleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func unauthorized(op string, err error) *gateway.Error {
	if err == nil {
		err = gateway.ErrUnauthorized
	} else {
		err = errors.Join(gateway.ErrUnauthorized, err)
	}
	return &gateway.Error{Service: "admin", Op: op, StatusCode: http.StatusUnauthorized, Err: err}
}
