package identity

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifySubject(t *testing.T) {
	v := NewVerifier("s3cret")
	token := sign(t, "s3cret", jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestVerifyUserIDClaim(t *testing.T) {
	v := NewVerifier("s3cret")
	token := sign(t, "s3cret", Claims{UserID: "user-7"})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("s3cret")

	tests := map[string]string{
		"wrong secret": sign(t, "other", jwt.RegisteredClaims{Subject: "u"}),
		"expired": sign(t, "s3cret", jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
		"no subject": sign(t, "s3cret", jwt.RegisteredClaims{}),
		"garbage":    "not.a.jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyRejectsReservedIdentity(t *testing.T) {
	v := NewVerifier("s3cret")

	for _, token := range []string{
		sign(t, "s3cret", jwt.RegisteredClaims{Subject: "ai-assistant"}),
		sign(t, "s3cret", Claims{UserID: "AI-Assistant"}),
	} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, ErrReserved)
	}
	assert.False(t, IsReserved("ai-assistant-fan"))
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws/rooms/r1", nil)
	req.Header.Set("Authorization", "Bearer abc")
	token, err := TokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	req = httptest.NewRequest("GET", "/ws/rooms/r1?token=xyz", nil)
	token, err = TokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	req = httptest.NewRequest("GET", "/ws/rooms/r1", nil)
	req.Header.Set("Authorization", "Basic abc")
	_, err = TokenFromRequest(req)
	assert.ErrorIs(t, err, ErrMissingBearer)

	_, err = TokenFromRequest(httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrMissingBearer)
}
