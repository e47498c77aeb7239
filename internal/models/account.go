package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types and statuses. A user holds at most one account of each type;
// only active accounts may be funded.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"

	AccountStatusActive = "active"
)

// Account belongs to exactly one user. Balance is mutated only by the
// funding engine, inside a storage transaction.
type Account struct {
	ID            int             `json:"id" db:"id"`
	UserID        int             `json:"userId" db:"user_id"`
	AccountNumber string          `json:"accountNumber" db:"account_number"` // 10 digits, globally unique
	AccountType   string          `json:"accountType" db:"account_type"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
