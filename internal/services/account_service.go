package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/clearledger/backend/internal/middleware"
	"github.com/clearledger/backend/internal/models"
	"github.com/clearledger/backend/internal/money"
)

// maxAccountNumberAttempts bounds the collision-retry loop. With a 10^10
// keyspace the ceiling is unreachable in practice, but the loop must stay
// finite.
const maxAccountNumberAttempts = 50

var accountNumberKeyspace = big.NewInt(10_000_000_000)

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
	now       func() time.Time
}

type CreateAccountRequest struct {
	AccountType string `json:"accountType" validate:"required,oneof=checking savings"`
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// GenerateAccountNumber draws a 10-digit zero-padded account number
// uniformly from [0, 10^10) using a cryptographically strong source.
// Uniqueness is the caller's responsibility.
func GenerateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, accountNumberKeyspace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%010d", n), nil
}

// uniqueAccountNumber generates, checks storage for a collision, and retries
// until a free number is found or the attempt ceiling is hit. No lock is
// held across iterations.
func (s *AccountService) uniqueAccountNumber() (string, error) {
	for attempt := 1; attempt <= maxAccountNumberAttempts; attempt++ {
		number, err := GenerateAccountNumber()
		if err != nil {
			return "", err
		}

		var exists bool
		err = s.db.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)", number,
		).Scan(&exists)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}

		log.Printf("[ACCOUNT] Account number collision on attempt %d", attempt)
	}

	return "", errors.New("account number keyspace exhausted")
}

// CreateAccount opens a checking or savings account for the authenticated
// user. At most one account of each type per user.
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateAccountRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[ACCOUNT] Create failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[ACCOUNT] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[ACCOUNT] Create validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var existing bool
	err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1 AND account_type = $2)",
		userID, req.AccountType,
	).Scan(&existing)
	if err != nil {
		log.Printf("[ACCOUNT] Duplicate-type check failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}
	if existing {
		SendErrorResponse(w, fmt.Sprintf("You already have a %s account", req.AccountType), http.StatusConflict, nil)
		return
	}

	number, err := s.uniqueAccountNumber()
	if err != nil {
		log.Printf("[ACCOUNT] Account number allocation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	var accountID int
	err = s.db.QueryRow(`
		INSERT INTO accounts (user_id, account_number, account_type, balance, status, created_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id`,
		userID, number, req.AccountType, models.AccountStatusActive, s.now(),
	).Scan(&accountID)
	if err != nil {
		log.Printf("[ACCOUNT] Account creation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	// Read the row back so the response carries what was persisted.
	account, err := s.fetchAccount(accountID)
	if err != nil {
		log.Printf("[ACCOUNT] Read-back failed for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Created %s account %s for user %d", account.AccountType, account.AccountNumber, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccounts lists the authenticated user's accounts.
func (s *AccountService) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, account_number, account_type, balance::text, status, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to list accounts for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			log.Printf("[ACCOUNT] Failed to scan account row for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[ACCOUNT] Row iteration failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (s *AccountService) fetchAccount(accountID int) (*models.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, account_number, account_type, balance::text, status, created_at
		FROM accounts
		WHERE id = $1`, accountID)

	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var account models.Account
	var balance string
	err := row.Scan(&account.ID, &account.UserID, &account.AccountNumber,
		&account.AccountType, &balance, &account.Status, &account.CreatedAt)
	if err != nil {
		return models.Account{}, err
	}

	account.Balance, err = money.ParseBalance(balance)
	if err != nil {
		return models.Account{}, fmt.Errorf("invalid stored balance %q: %w", balance, err)
	}
	return account, nil
}
