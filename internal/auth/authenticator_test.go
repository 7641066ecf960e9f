package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goevery/sitepush/internal/ierr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)

	return tokenString
}

func TestAuthenticator_AuthenticateJWT(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	t.Run("valid jwt", func(t *testing.T) {
		tokenString := signToken(t, "test-secret", jwt.MapClaims{
			"sub":   "42",
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
			"aud":   "sitepush",
			"scope": []string{"subscribe"},
		})

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.NoError(t, err)
		assert.NotNil(t, auth)
		assert.Equal(t, "42", auth.Subject)
		assert.Equal(t, []string{"subscribe"}, auth.Scope)
		assert.False(t, auth.IsAdmin)
		assert.True(t, auth.CanSubscribeAs("42"))
		assert.False(t, auth.CanSubscribeAs("7"))
	})

	t.Run("invalid jwt signature", func(t *testing.T) {
		tokenString := signToken(t, "invalid-secret", jwt.MapClaims{
			"sub":   "42",
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
			"aud":   "sitepush",
			"scope": []string{"subscribe"},
		})

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.IsType(t, ierr.Error{}, err)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("expired jwt", func(t *testing.T) {
		tokenString := signToken(t, "test-secret", jwt.MapClaims{
			"sub":   "42",
			"exp":   time.Now().Add(-time.Hour).Unix(),
			"iat":   time.Now().Unix(),
			"aud":   "sitepush",
			"scope": []string{"subscribe"},
		})

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("wrong audience", func(t *testing.T) {
		tokenString := signToken(t, "test-secret", jwt.MapClaims{
			"sub":   "42",
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
			"aud":   "broadcaster",
			"scope": []string{"subscribe"},
		})

		_, err := authenticator.AuthenticateJWT(tokenString)

		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		tokenString := signToken(t, "test-secret", jwt.MapClaims{
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
			"aud":   "sitepush",
			"scope": []string{"subscribe"},
		})

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, err.(ierr.Error).Code)
	})

	t.Run("disabled without secret", func(t *testing.T) {
		disabled := NewAuthenticator("", nil)

		assert.False(t, disabled.JWTEnabled())

		_, err := disabled.AuthenticateJWT("anything")
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})
}

func TestAuthenticator_AuthenticateAPIKey(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	t.Run("valid api key", func(t *testing.T) {
		auth, err := authenticator.AuthenticateAPIKey("test-api-key")

		assert.NoError(t, err)
		assert.NotNil(t, auth)
		assert.Equal(t, "api", auth.Subject)
		assert.Equal(t, []string{"publish"}, auth.Scope)
		assert.True(t, auth.IsAdmin)
		assert.True(t, auth.IsPublisher())
		assert.False(t, auth.IsSubscriber())
	})

	t.Run("invalid api key", func(t *testing.T) {
		auth, err := authenticator.AuthenticateAPIKey("invalid-api-key")

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.IsType(t, ierr.Error{}, err)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/stream", nil)
	r.Header.Set("Authorization", "Bearer abc")

	token, ok := BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	r = httptest.NewRequest("GET", "/stream?token=xyz", nil)
	token, ok = BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	r = httptest.NewRequest("GET", "/stream", nil)
	_, ok = BearerToken(r)
	assert.False(t, ok)
}
