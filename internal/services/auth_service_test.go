package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

const validSignupBody = `{
	"email": "jane.smith@example.com",
	"password": "Str0ng&Secret",
	"firstName": "Jane",
	"lastName": "Smith",
	"phoneNumber": "9195551234",
	"dateOfBirth": "1990-06-15",
	"ssn": "123456789",
	"address": "123 Main St",
	"city": "Chapel Hill",
	"state": "NC",
	"zipCode": "27514"
}`

func setupAuthTest(t *testing.T) (*AuthService, sqlmock.Sqlmock, redismock.ClientMock, func()) {
	t.Helper()

	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("bcrypt.cost", bcrypt.MinCost)

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	redisClient, redisMock := redismock.NewClientMock()

	service := NewAuthService(db, redisClient)
	return service, mock, redisMock, func() { db.Close() }
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestAuthService_Signup(t *testing.T) {
	now := time.Date(2025, time.November, 16, 12, 0, 0, 0, time.UTC)

	t.Run("successful signup", func(t *testing.T) {
		service, mock, redisMock, cleanup := setupAuthTest(t)
		defer cleanup()
		service.now = func() time.Time { return now }

		expectedToken, err := signSessionToken(42, now.Add(SessionTTL))
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id FROM users WHERE email").
			WithArgs("jane.smith@example.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))
		mock.ExpectExec("INSERT INTO sessions").
			WithArgs(expectedToken, 42, now.Add(SessionTTL), now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		redisMock.ExpectSet(sessionCacheKey(expectedToken), 42, SessionTTL).SetVal("OK")

		req := httptest.NewRequest("POST", "/auth/signup", bytes.NewBufferString(validSignupBody))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, expectedToken, response["token"])

		user := response["user"].(map[string]interface{})
		assert.Equal(t, "jane.smith@example.com", user["email"])
		assert.NotContains(t, user, "password")
		assert.NotContains(t, user, "ssn")

		cookie := sessionCookie(t, w)
		assert.Equal(t, expectedToken, cookie.Value)
		assert.Equal(t, 604800, cookie.MaxAge)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation failure carries every field message", func(t *testing.T) {
		service, mock, _, cleanup := setupAuthTest(t)
		defer cleanup()

		body := `{"email": "bad", "password": "weakpass"}`
		req := httptest.NewRequest("POST", "/auth/signup", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Validation failed", response.Error)

		passwordMessages := []string{}
		for _, fieldErr := range response.Fields {
			if fieldErr.Field == "password" {
				passwordMessages = append(passwordMessages, fieldErr.Message)
			}
		}
		assert.Contains(t, passwordMessages, "Password must contain at least one uppercase letter")
		assert.Contains(t, passwordMessages, "Password must contain at least one number")
		assert.Contains(t, passwordMessages, "Password must contain at least one special character")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		service, mock, _, cleanup := setupAuthTest(t)
		defer cleanup()
		service.now = func() time.Time { return now }

		mock.ExpectQuery("SELECT id FROM users WHERE email").
			WithArgs("jane.smith@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		req := httptest.NewRequest("POST", "/auth/signup", bytes.NewBufferString(validSignupBody))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "User already exists", response.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		service, _, _, cleanup := setupAuthTest(t)
		defer cleanup()

		req := httptest.NewRequest("POST", "/auth/signup", bytes.NewBufferString(`{"email": "a@b.com", "isAdmin": true}`))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	now := time.Date(2025, time.November, 16, 12, 0, 0, 0, time.UTC)

	userRow := func(hashedPassword string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "email", "password", "first_name", "last_name",
			"phone_number", "date_of_birth", "address", "city", "state", "zip_code", "created_at"}).
			AddRow(42, "jane.smith@example.com", hashedPassword, "Jane", "Smith",
				"9195551234", "1990-06-15", "123 Main St", "Chapel Hill", "NC", "27514", now)
	}

	t.Run("successful login supersedes prior sessions", func(t *testing.T) {
		service, mock, redisMock, cleanup := setupAuthTest(t)
		defer cleanup()
		service.now = func() time.Time { return now }

		hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ng&Secret"), bcrypt.MinCost)
		assert.NoError(t, err)

		expectedToken, err := signSessionToken(42, now.Add(SessionTTL))
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, email, password").
			WithArgs("jane.smith@example.com").
			WillReturnRows(userRow(string(hashed)))
		mock.ExpectQuery("SELECT token FROM sessions WHERE user_id").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"token"}))
		mock.ExpectExec("DELETE FROM sessions WHERE user_id").
			WithArgs(42).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO sessions").
			WithArgs(expectedToken, 42, now.Add(SessionTTL), now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		redisMock.ExpectSet(sessionCacheKey(expectedToken), 42, SessionTTL).SetVal("OK")

		body := `{"email": "Jane.Smith@Example.com", "password": "Str0ng&Secret"}`
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		cookie := sessionCookie(t, w)
		assert.Equal(t, expectedToken, cookie.Value)
		assert.Equal(t, 604800, cookie.MaxAge)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("login evicts superseded sessions from the cache", func(t *testing.T) {
		service, mock, redisMock, cleanup := setupAuthTest(t)
		defer cleanup()
		service.now = func() time.Time { return now }

		hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ng&Secret"), bcrypt.MinCost)
		assert.NoError(t, err)

		expectedToken, err := signSessionToken(42, now.Add(SessionTTL))
		assert.NoError(t, err)

		// Two sessions from other devices: their rows go, and so must their
		// cache entries, or the old tokens keep authenticating until the
		// cache TTL expires.
		mock.ExpectQuery("SELECT id, email, password").
			WithArgs("jane.smith@example.com").
			WillReturnRows(userRow(string(hashed)))
		mock.ExpectQuery("SELECT token FROM sessions WHERE user_id").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"token"}).
				AddRow("stale-token-a").
				AddRow("stale-token-b"))
		redisMock.ExpectDel(sessionCacheKey("stale-token-a")).SetVal(1)
		redisMock.ExpectDel(sessionCacheKey("stale-token-b")).SetVal(1)
		mock.ExpectExec("DELETE FROM sessions WHERE user_id").
			WithArgs(42).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("INSERT INTO sessions").
			WithArgs(expectedToken, 42, now.Add(SessionTTL), now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		redisMock.ExpectSet(sessionCacheKey(expectedToken), 42, SessionTTL).SetVal("OK")

		body := `{"email": "jane.smith@example.com", "password": "Str0ng&Secret"}`
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		service, mock, _, cleanup := setupAuthTest(t)
		defer cleanup()

		hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ng&Secret"), bcrypt.MinCost)
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, email, password").
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT id, email, password").
			WithArgs("jane.smith@example.com").
			WillReturnRows(userRow(string(hashed)))

		var bodies = []string{
			`{"email": "nobody@example.com", "password": "Str0ng&Secret"}`,
			`{"email": "jane.smith@example.com", "password": "WrongPassword1!"}`,
		}

		responses := []string{}
		for _, body := range bodies {
			req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString(body))
			w := httptest.NewRecorder()

			service.Login(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			responses = append(responses, w.Body.String())
		}

		assert.Equal(t, responses[0], responses[1])

		var response ErrorResponse
		json.Unmarshal([]byte(responses[0]), &response)
		assert.Equal(t, "Invalid credentials", response.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing fields fail request-shape validation", func(t *testing.T) {
		service, _, _, cleanup := setupAuthTest(t)
		defer cleanup()

		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString(`{"email": "jane.smith@example.com"}`))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Run("with active session", func(t *testing.T) {
		service, mock, redisMock, cleanup := setupAuthTest(t)
		defer cleanup()

		mock.ExpectExec("DELETE FROM sessions WHERE token").
			WithArgs("some-token").
			WillReturnResult(sqlmock.NewResult(0, 1))
		redisMock.ExpectDel(sessionCacheKey("some-token")).SetVal(1)

		req := httptest.NewRequest("POST", "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "some-token"})
		w := httptest.NewRecorder()

		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, true, response["success"])
		assert.Equal(t, "Logged out successfully", response["message"])

		cookie := sessionCookie(t, w)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.MaxAge < 0, "cookie must be expired")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without a session cookie", func(t *testing.T) {
		service, mock, _, cleanup := setupAuthTest(t)
		defer cleanup()

		req := httptest.NewRequest("POST", "/auth/logout", nil)
		w := httptest.NewRecorder()

		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, false, response["success"])
		assert.Equal(t, "No active session", response["message"])

		// Cookie is cleared even with no session to delete.
		cookie := sessionCookie(t, w)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.MaxAge < 0, "cookie must be expired")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
