package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of decimal places stored for money.
	AmountScale = 2
	// AmountDigits is the number of integer digits a money column holds.
	AmountDigits = 18
)

// MoneyLimit is the exclusive upper bound for amounts and balances.
var MoneyLimit = decimal.New(1, AmountDigits)

type TransactionType string

const (
	Deposit    TransactionType = "DEPOSIT"
	Withdrawal TransactionType = "WITHDRAWAL"
	Transfer   TransactionType = "TRANSFER"
)

func (t TransactionType) Valid() bool {
	switch t {
	case Deposit, Withdrawal, Transfer:
		return true
	}
	return false
}

type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	FromAccountID *uuid.UUID      `json:"fromAccountId,omitempty"`
	ToAccountID   *uuid.UUID      `json:"toAccountId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`

	// Populated by list queries; empty when the side is absent.
	FromIBAN string `json:"-"`
	ToIBAN   string `json:"-"`
}

// SignedAmount is the effect of t on the balance of accountID.
func (t *Transaction) SignedAmount(accountID uuid.UUID) decimal.Decimal {
	switch t.Type {
	case Deposit:
		return t.Amount
	case Withdrawal:
		return t.Amount.Neg()
	case Transfer:
		if t.FromAccountID != nil && *t.FromAccountID == accountID {
			return t.Amount.Neg()
		}
		return t.Amount
	}
	return decimal.Zero
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	// ListTransactions returns transactions newest first. A nil accountID
	// returns every transaction, otherwise only those where the account is
	// source or destination.
	ListTransactions(ctx context.Context, accountID *uuid.UUID) ([]Transaction, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Account() AccountRepository
	Transaction() TransactionRepository
	WithTransaction(ctx context.Context, fn func(Store) error) error
	// WithSnapshot runs fn against a consistent read-only view without
	// taking row locks.
	WithSnapshot(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}
