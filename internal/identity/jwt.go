// Package identity resolves bearer tokens issued by the identity service to
// user ids.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"chat-sync/internal/models"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingBearer = errors.New("invalid Authorization header")
	ErrReserved      = errors.New("reserved identity")
)

// IsReserved reports whether userID belongs to the service itself and may
// not be claimed by a caller.
func IsReserved(userID string) bool {
	return strings.EqualFold(strings.TrimSpace(userID), models.AIAssistantID)
}

// Claims accepts the standard subject or a user_id claim.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HMAC-signed tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the token and returns the user id it names.
func (v *Verifier) Verify(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	if IsReserved(userID) {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, ErrReserved)
	}
	return userID, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter for websocket clients that cannot set headers.
func TokenFromRequest(r *http.Request) (string, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		parts := strings.SplitN(hdr, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", ErrMissingBearer
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingBearer
}
