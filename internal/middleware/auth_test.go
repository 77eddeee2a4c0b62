package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID int64, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func actorCapturingHandler(actor *Actor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*actor = ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}
}

func TestOptionalAuth_ValidToken(t *testing.T) {
	var actor Actor
	handler := OptionalAuth(testSecret)(actorCapturingHandler(&actor))

	req := httptest.NewRequest("GET", "/payments/start/1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, 7, "buyer@example.com"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), actor.UserID)
	assert.Equal(t, "buyer@example.com", actor.Email)
}

func TestOptionalAuth_NoHeader_Anonymous(t *testing.T) {
	var actor Actor
	handler := OptionalAuth(testSecret)(actorCapturingHandler(&actor))

	req := httptest.NewRequest("POST", "/payments/notify", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Actor{}, actor)
}

func TestOptionalAuth_InvalidToken_Anonymous(t *testing.T) {
	var actor Actor
	handler := OptionalAuth(testSecret)(actorCapturingHandler(&actor))

	req := httptest.NewRequest("GET", "/payments/start/1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Actor{}, actor)
}

func TestOptionalAuth_WrongSecret_Anonymous(t *testing.T) {
	var actor Actor
	handler := OptionalAuth("other-secret")(actorCapturingHandler(&actor))

	req := httptest.NewRequest("GET", "/payments/start/1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, 7, "buyer@example.com"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Actor{}, actor)
}
