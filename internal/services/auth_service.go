package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/clearledger/backend/internal/models"
	"github.com/clearledger/backend/internal/schema"
)

const (
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "session"

	// SessionTTL matches the cookie Max-Age of 604800 seconds.
	SessionTTL = 7 * 24 * time.Hour
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
	now       func() time.Time
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login. The user never carries
// password or SSN hashes; their struct tags omit them from JSON.
type AuthResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// Signup handles new-user registration: full identity validation, duplicate
// email rejection, independent one-way hashing of password and SSN, and
// session issuance via the session cookie.
func (s *AuthService) Signup(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Signup attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req schema.SignupInput
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Signup failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if fieldErrs := schema.ValidateSignup(&req, s.now()); len(fieldErrs) > 0 {
		log.Printf("[AUTH] Signup validation failed: %d field error(s)", len(fieldErrs))
		SendFieldErrors(w, "Validation failed", fieldErrs)
		return
	}

	log.Printf("[AUTH] Signup request for email: %s", req.Email)

	var existingID int
	err := s.db.QueryRow("SELECT id FROM users WHERE email = $1", req.Email).Scan(&existingID)
	if err == nil {
		log.Printf("[AUTH] Signup rejected - email already registered: %s", req.Email)
		SendErrorResponse(w, "User already exists", http.StatusConflict, nil)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[AUTH] Duplicate-email check failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	hashedPassword, err := hashSecret(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	hashedSSN, err := hashSecret(req.SSN)
	if err != nil {
		log.Printf("[AUTH] SSN hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	user := models.User{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
	}

	err = s.db.QueryRow(`
		INSERT INTO users (email, password, first_name, last_name, phone_number, date_of_birth, ssn, address, city, state, zip_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		req.Email, hashedPassword, req.FirstName, req.LastName, req.PhoneNumber,
		req.DateOfBirth, hashedSSN, req.Address, req.City, req.State, req.ZipCode, s.now(),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "User already exists", http.StatusConflict, nil)
		return
	}

	token, err := s.issueSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("[AUTH] Session issuance failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to create session", http.StatusInternalServerError, nil)
		return
	}

	setSessionCookie(w, token)

	log.Printf("[AUTH] Signup successful for user %d", user.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{User: user, Token: token})
}

// Login authenticates by email and password. The failure response is
// identical whether the user is missing or the password is wrong. A
// successful login supersedes every prior session for the user.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	email, fieldErrs := schema.ValidateEmail(req.Email)
	if len(fieldErrs) > 0 {
		SendFieldErrors(w, "Validation failed", fieldErrs)
		return
	}

	var user models.User
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, email, password, first_name, last_name, phone_number, date_of_birth, address, city, state, zip_code, created_at
		FROM users WHERE email = $1`, email,
	).Scan(&user.ID, &user.Email, &hashedPassword, &user.FirstName, &user.LastName,
		&user.PhoneNumber, &user.DateOfBirth, &user.Address, &user.City, &user.State,
		&user.ZipCode, &user.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Login failed for %s", email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifySecret(req.Password, hashedPassword) {
		log.Printf("[AUTH] Login failed for user %d", user.ID)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	// One active session per user: superseded sessions are removed before
	// the replacement is issued.
	if err := s.revokeUserSessions(r.Context(), user.ID); err != nil {
		log.Printf("[AUTH] Failed to clear prior sessions for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to create session", http.StatusInternalServerError, nil)
		return
	}

	token, err := s.issueSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("[AUTH] Session issuance failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to create session", http.StatusInternalServerError, nil)
		return
	}

	setSessionCookie(w, token)

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{User: user, Token: token})
}

// Logout deletes exactly the session presented in the cookie, never the
// user's other sessions. The cookie is cleared whether or not a session was
// present.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		token = cookie.Value
	}

	clearSessionCookie(w)
	w.Header().Set("Content-Type", "application/json")

	if token == "" {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "No active session",
		})
		return
	}

	if _, err := s.db.Exec("DELETE FROM sessions WHERE token = $1", token); err != nil {
		log.Printf("[AUTH] Session deletion failed: %v", err)
		SendErrorResponse(w, "Failed to log out", http.StatusInternalServerError, nil)
		return
	}

	if s.redis != nil {
		if err := s.redis.Del(r.Context(), sessionCacheKey(token)).Err(); err != nil {
			log.Printf("[AUTH] Failed to evict cached session: %v", err)
		}
	}

	log.Printf("[AUTH] Logout successful")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// revokeUserSessions deletes every session row for the user and evicts the
// matching cache entries. The middleware trusts the cache before the table,
// so a superseded token must leave the cache when its row goes, or it would
// keep authenticating until the cache TTL expires.
func (s *AuthService) revokeUserSessions(ctx context.Context, userID int) error {
	if s.redis != nil {
		rows, err := s.db.Query("SELECT token FROM sessions WHERE user_id = $1", userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var token string
			if err := rows.Scan(&token); err != nil {
				return err
			}
			if err := s.redis.Del(ctx, sessionCacheKey(token)).Err(); err != nil {
				log.Printf("[AUTH] Failed to evict cached session for user %d: %v", userID, err)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	_, err := s.db.Exec("DELETE FROM sessions WHERE user_id = $1", userID)
	return err
}

// issueSession signs a token, persists the session row, and caches it
// best-effort in Redis. The sessions table is the source of truth; a cache
// failure is logged and ignored.
func (s *AuthService) issueSession(ctx context.Context, userID int) (string, error) {
	now := s.now()
	expiresAt := now.Add(SessionTTL)

	token, err := signSessionToken(userID, expiresAt)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		token, userID, expiresAt, now)
	if err != nil {
		return "", err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, sessionCacheKey(token), userID, SessionTTL).Err(); err != nil {
			log.Printf("[AUTH] Failed to cache session for user %d: %v", userID, err)
		}
	}

	return token, nil
}

func signSessionToken(userID int, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     expiresAt.Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func sessionCacheKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // serialized as Max-Age=0
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func hashSecret(plaintext string) (string, error) {
	cost := viper.GetInt("bcrypt.cost")
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifySecret(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}
