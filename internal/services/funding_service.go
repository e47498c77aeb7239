package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/backend/internal/middleware"
	"github.com/clearledger/backend/internal/models"
	"github.com/clearledger/backend/internal/money"
	"github.com/clearledger/backend/internal/schema"
)

// Existence and ownership failures are deliberately indistinguishable so a
// caller cannot probe for other users' account ids.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountNotActive = errors.New("account is not active")
)

// FundingService orchestrates deposits: ownership check, instrument
// validation, ledger append, and balance mutation as one storage
// transaction.
type FundingService struct {
	db        *sql.DB
	validator *ValidationHelper
	now       func() time.Time
}

type FundAccountRequest struct {
	Amount        json.Number               `json:"amount"`
	FundingSource schema.FundingSourceInput `json:"fundingSource"`
}

// FundResult carries the appended transaction and the balance as read back
// from storage after the update, so client and storage never disagree.
type FundResult struct {
	Transaction models.Transaction `json:"transaction"`
	NewBalance  decimal.Decimal    `json:"newBalance"`
}

func NewFundingService(db *sql.DB) *FundingService {
	return &FundingService{
		db:        db,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// FundAccount handles a deposit into one of the caller's accounts.
func (s *FundingService) FundAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountID, err := strconv.Atoi(chi.URLParam(r, "accountId"))
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req FundAccountRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[FUNDING] Invalid request body: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[FUNDING] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	amount, err := money.ParseAmount(req.Amount.String())
	if err != nil {
		msg := "Invalid amount format"
		if errors.Is(err, money.ErrNonPositiveAmount) {
			msg = "Amount must be greater than $0.00"
		}
		SendFieldErrors(w, "Validation failed", schema.FieldErrors{{Field: "amount", Message: msg}})
		return
	}

	if fieldErrs := schema.ValidateFundingSource(req.FundingSource); len(fieldErrs) > 0 {
		log.Printf("[FUNDING] Funding source validation failed: %d field error(s)", len(fieldErrs))
		SendFieldErrors(w, "Validation failed", fieldErrs)
		return
	}

	result, err := s.fundAccount(r.Context(), userID, accountID, amount, req.FundingSource.Type)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		case errors.Is(err, ErrAccountNotActive):
			SendErrorResponse(w, "Account is not active", http.StatusBadRequest, nil)
		default:
			log.Printf("[FUNDING] Deposit failed for account %d: %v", accountID, err)
			SendErrorResponse(w, "Failed to fund account", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[FUNDING] Deposited %s into account %d (new balance %s)",
		money.Format(amount), accountID, money.Format(result.NewBalance))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// fundAccount performs the deposit as one storage transaction: lock the
// account row, append the ledger entry, update the balance, and read the
// persisted balance back before committing. The row lock makes concurrent
// deposits to the same account serialize instead of losing updates.
func (s *FundingService) fundAccount(ctx context.Context, userID, accountID int, amount decimal.Decimal, sourceType string) (*FundResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balanceStr, status string
	err = tx.QueryRowContext(ctx, `
		SELECT balance::text, status FROM accounts
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`,
		accountID, userID,
	).Scan(&balanceStr, &status)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}

	if status != models.AccountStatusActive {
		return nil, ErrAccountNotActive
	}

	balance, err := money.ParseBalance(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balanceStr, err)
	}

	now := s.now()
	txn := models.Transaction{
		AccountID:   accountID,
		ReferenceID: uuid.NewString(),
		Type:        models.TransactionTypeDeposit,
		Amount:      amount,
		Description: fmt.Sprintf("Funding from %s", sourceType),
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   now,
		ProcessedAt: now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (account_id, reference_id, type, amount, description, status, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		txn.AccountID, txn.ReferenceID, txn.Type, txn.Amount.String(),
		txn.Description, txn.Status, txn.CreatedAt, txn.ProcessedAt,
	).Scan(&txn.ID)
	if err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	newBalance := balance.Add(amount)
	if _, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = $1 WHERE id = $2",
		newBalance.String(), accountID,
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	// Return the value storage holds, not the one computed in memory. A
	// failure here means the ledger write may already be visible, so log
	// loudly; the rollback keeps the unit atomic.
	var persistedStr string
	err = tx.QueryRowContext(ctx,
		"SELECT balance::text FROM accounts WHERE id = $1", accountID,
	).Scan(&persistedStr)
	if err != nil {
		log.Printf("[FUNDING] Balance read-back failed for account %d after ledger append: %v", accountID, err)
		return nil, fmt.Errorf("read back balance: %w", err)
	}

	persisted, err := money.ParseBalance(persistedStr)
	if err != nil {
		log.Printf("[FUNDING] Persisted balance unparseable for account %d: %q", accountID, persistedStr)
		return nil, fmt.Errorf("invalid persisted balance %q: %w", persistedStr, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &FundResult{Transaction: txn, NewBalance: persisted}, nil
}

// GetTransactions lists an account's ledger, most recent first, each entry
// enriched with the account's type.
func (s *FundingService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountID, err := strconv.Atoi(chi.URLParam(r, "accountId"))
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	transactions, err := s.listTransactions(r.Context(), userID, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[FUNDING] Failed to list transactions for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (s *FundingService) listTransactions(ctx context.Context, userID, accountID int) ([]models.Transaction, error) {
	var accountType string
	err := s.db.QueryRowContext(ctx,
		"SELECT account_type FROM accounts WHERE id = $1 AND user_id = $2",
		accountID, userID,
	).Scan(&accountType)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check account ownership: %w", err)
	}

	// Descending by creation time; equal timestamps surface in insertion
	// order, which ascending ids preserve.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, reference_id, type, amount::text, description, status, created_at, processed_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var txn models.Transaction
		var amountStr string
		err := rows.Scan(&txn.ID, &txn.AccountID, &txn.ReferenceID, &txn.Type,
			&amountStr, &txn.Description, &txn.Status, &txn.CreatedAt, &txn.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		txn.Amount, err = money.ParseBalance(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
		}

		txn.AccountType = accountType
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return transactions, nil
}
