package auth_test

import (
	"errors"
	"testing"
	"time"

	"exam-service/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("alice", "student")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, time.Hour, issuer.TTL())
}

func TestTokenRejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	t.Run("Expired", func(t *testing.T) {
		expired := auth.NewTokenIssuer("test-secret", -time.Minute)
		token, err := expired.Issue("alice", "student")
		require.NoError(t, err)

		_, err = issuer.Parse(token)
		assert.True(t, errors.Is(err, auth.ErrInvalidToken))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := auth.NewTokenIssuer("another-secret", time.Hour)
		token, err := other.Issue("alice", "student")
		require.NoError(t, err)

		_, err = issuer.Parse(token)
		assert.True(t, errors.Is(err, auth.ErrInvalidToken))
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.True(t, errors.Is(err, auth.ErrInvalidToken))
	})

	t.Run("UnsignedAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
			Username: "mallory",
			Role:     "faculty",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "exam-service",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Parse(signed)
		assert.True(t, errors.Is(err, auth.ErrInvalidToken))
	})

	t.Run("MissingRole", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "exam-service",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = issuer.Parse(signed)
		assert.True(t, errors.Is(err, auth.ErrInvalidToken))
	})
}
