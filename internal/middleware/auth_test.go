package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func signTestToken(t *testing.T, secret string, userID int) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func authTestHandler(gotUserID *int, gotOK *bool) http.Handler {
	return AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUserID, *gotOK = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	t.Run("missing cookie is unauthorized", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		InitAuthMiddleware(db, nil)

		var userID int
		var ok bool
		req := httptest.NewRequest("GET", "/accounts", nil)
		w := httptest.NewRecorder()

		authTestHandler(&userID, &ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, ok)
	})

	t.Run("bad signature is unauthorized", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		InitAuthMiddleware(db, nil)

		forged := signTestToken(t, "some-other-secret", 42)

		var userID int
		var ok bool
		req := httptest.NewRequest("GET", "/accounts", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: forged})
		w := httptest.NewRecorder()

		authTestHandler(&userID, &ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, ok)
	})

	t.Run("valid token with live session row passes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		InitAuthMiddleware(db, nil)

		token := signTestToken(t, "test-secret", 42)

		mock.ExpectQuery("SELECT user_id FROM sessions WHERE token").
			WithArgs(token).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(42))

		var userID int
		var ok bool
		req := httptest.NewRequest("GET", "/accounts", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		w := httptest.NewRecorder()

		authTestHandler(&userID, &ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, ok)
		assert.Equal(t, 42, userID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("valid signature without session row is unauthorized", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		InitAuthMiddleware(db, nil)

		// Logged-out sessions leave a verifiable token behind; the missing
		// row must still reject it.
		token := signTestToken(t, "test-secret", 42)

		mock.ExpectQuery("SELECT user_id FROM sessions WHERE token").
			WithArgs(token).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

		var userID int
		var ok bool
		req := httptest.NewRequest("GET", "/accounts", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		w := httptest.NewRecorder()

		authTestHandler(&userID, &ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, ok)
	})

	t.Run("cached session short-circuits the database", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		InitAuthMiddleware(db, redisClient)

		token := signTestToken(t, "test-secret", 42)
		redisMock.ExpectGet("session:" + token).SetVal("42")

		var userID int
		var ok bool
		req := httptest.NewRequest("GET", "/accounts", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		w := httptest.NewRecorder()

		authTestHandler(&userID, &ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 42, userID)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
