package middleware

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

const sessionCookieName = "session"

type contextKey string

const userIDContextKey = contextKey("userID")

var (
	authDB    *sql.DB
	authRedis *redis.Client
)

// InitAuthMiddleware wires the storage handles the session middleware needs.
// Redis is optional; a nil client means every lookup goes to the database.
func InitAuthMiddleware(db *sql.DB, redisClient *redis.Client) {
	authDB = db
	authRedis = redisClient
}

// AuthMiddleware authenticates requests via the session cookie: the token
// must carry a valid signature and a live session row must exist for it.
// The session's user id is injected into the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		if !tokenSignatureValid(cookie.Value) {
			http.Error(w, "Invalid session", http.StatusUnauthorized)
			return
		}

		userID, ok := lookupSession(r.Context(), cookie.Value)
		if !ok {
			http.Error(w, "Invalid session", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id injected by
// AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int)
	return userID, ok
}

// ContextWithUserID injects a user id directly, for handler tests that
// bypass the middleware.
func ContextWithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func tokenSignatureValid(tokenString string) bool {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	return err == nil && token.Valid
}

// lookupSession resolves a token to its user id, trying the Redis cache
// first and falling back to the sessions table, which stays authoritative.
func lookupSession(ctx context.Context, token string) (int, bool) {
	if authRedis != nil {
		cached, err := authRedis.Get(ctx, "session:"+token).Result()
		if err == nil {
			if userID, convErr := strconv.Atoi(cached); convErr == nil {
				return userID, true
			}
		} else if err != redis.Nil {
			log.Printf("[AUTH] Session cache lookup failed: %v", err)
		}
	}

	var userID int
	err := authDB.QueryRowContext(ctx,
		"SELECT user_id FROM sessions WHERE token = $1 AND expires_at > NOW()", token,
	).Scan(&userID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[AUTH] Session lookup failed: %v", err)
		}
		return 0, false
	}

	return userID, true
}
