package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeIncome   Type = "income"
	TypeExpense  Type = "expense"
	TypeTransfer Type = "transfer"

	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// EditWindow is how long after creation a transaction may still be amended.
const EditWindow = 12 * time.Hour

type (
	// Type classifies a transaction.
	Type string

	// Direction marks which side of a transfer a transaction records.
	// Non-transfer transactions are stored as IN but their direction plays
	// no part in balance math.
	Direction string

	// Account is a balance holder owned by a single user. The balance is
	// mutated only through the ledger's adjustment primitive and always
	// equals the net effect of the non-deleted transactions referencing it.
	Account struct {
		ID      string `json:"id"`
		OwnerID string `json:"ownerId"`
		Name    string `json:"name"`
		Balance Money  `json:"balance"`
	}

	// Transaction is a single monetary movement against one account.
	// Transfer transactions come in pairs sharing a GroupID, one OUT and
	// one IN.
	Transaction struct {
		ID          string    `json:"id"`
		OwnerID     string    `json:"ownerId"`
		AccountID   string    `json:"accountId"`
		Type        Type      `json:"type"`
		Direction   Direction `json:"direction"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
		GroupID     string    `json:"groupId,omitempty"`
		Deleted     bool      `json:"deleted"`
		Division    string    `json:"division,omitempty"`
	}
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrEditWindowExpired   = errors.New("edit window expired")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
)

func (t Type) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Effect returns the signed cents this transaction contributes to its
// account's balance while not deleted:
//
//	income        +amount
//	expense       -amount
//	transfer OUT  -amount
//	transfer IN   +amount
func (t Transaction) Effect() int64 {
	switch t.Type {
	case TypeIncome:
		return t.Amount.Cents
	case TypeExpense:
		return -t.Amount.Cents
	case TypeTransfer:
		if t.Direction == DirectionOut {
			return -t.Amount.Cents
		}
		return t.Amount.Cents
	}
	return 0
}

// Editable reports whether the transaction is still inside its edit window
// at the given instant.
func (t Transaction) Editable(now time.Time) bool {
	return now.Sub(t.CreatedAt) <= EditWindow
}

// ValidateAccountName rejects blank or oversized account names.
func ValidateAccountName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > 100 {
		return ErrInvalidInput
	}
	return nil
}
