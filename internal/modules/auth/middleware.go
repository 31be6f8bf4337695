// Package auth attaches the caller identity to every request: the account
// from a verified bearer token when one is sent, and the guest identity kept
// in cookies either way.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/identity"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	bearerPrefix = "Bearer "
	tokenParam   = "access_token"
)

var (
	ErrInvalidToken     = errors.New("invalid access token")
	ErrTokensDisabled   = errors.New("access tokens are not accepted")
	ErrMissingSubject   = errors.New("access token has no subject")
	ErrGuestUnavailable = errors.New("unable to resolve guest identity")
)

// Claims are the account claims issued by the identity provider.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`

	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token signed with secret.
func ParseToken(secret []byte, raw string) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, ErrTokensDisabled
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(
		raw,
		&claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Claims{}, ErrMissingSubject
	}

	return claims, nil
}

// AuthenticationMiddleware never rejects a request without a token; such
// callers act as guests. A token that fails verification is rejected.
func AuthenticationMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolve(secret, w, r)
			if err != nil {
				core.LogWarn(r.Context(), "failed to authenticate request", zap.Error(err))
				core.WriteCommandError(w, r, core.NewCommandError(http.StatusUnauthorized, err))
				return
			}

			next.ServeHTTP(w, r.WithContext(core.WithSession(r.Context(), session)))
		})
	}
}

func resolve(secret []byte, w http.ResponseWriter, r *http.Request) (core.ContextSession, error) {
	guest, err := identity.NewResolver(identity.NewCookieGuestStorage(w, r)).GuestIdentity()
	if err != nil {
		return core.ContextSession{}, fmt.Errorf("%w: %w", ErrGuestUnavailable, err)
	}

	raw := bearerToken(r)
	if raw == "" {
		return core.ContextSession{
			MemberID:    identity.MemberID("", guest.ID),
			DisplayName: identity.DisplayName("", "", guest.Name),
			GuestID:     guest.ID,
			IsGuest:     true,
		}, nil
	}

	claims, err := ParseToken(secret, raw)
	if err != nil {
		return core.ContextSession{}, err
	}

	return core.ContextSession{
		AccountID:   claims.Subject,
		Email:       claims.Email,
		MemberID:    identity.MemberID(claims.Subject, guest.ID),
		DisplayName: identity.DisplayName(claims.Name, claims.Email, guest.Name),
		PhotoURL:    claims.Picture,
		GuestID:     guest.ID,
	}, nil
}

// bearerToken reads the Authorization header, falling back to a query
// parameter since browsers cannot set headers on websocket requests.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}

	return r.URL.Query().Get(tokenParam)
}
