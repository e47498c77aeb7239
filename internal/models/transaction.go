package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit     = "deposit"
	TransactionStatusCompleted = "completed"
)

// Transaction is an immutable ledger entry. Rows are append-only: the core
// never updates or deletes them, and the sum of deposit amounts for an
// account always equals its current balance.
type Transaction struct {
	ID          int             `json:"id" db:"id"`
	AccountID   int             `json:"accountId" db:"account_id"`
	ReferenceID string          `json:"referenceId" db:"reference_id"`
	Type        string          `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description string          `json:"description" db:"description"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	ProcessedAt time.Time       `json:"processedAt" db:"processed_at"`

	// AccountType is joined in for transaction listings; not a column on
	// the transactions relation itself.
	AccountType string `json:"accountType,omitempty" db:"-"`
}
