// Package memstore is an in-process implementation of domain.Store, used
// when DB_DRIVER=memory and by tests that do not need Postgres.
package memstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
)

type state struct {
	accounts     map[uuid.UUID]domain.Account
	order        []uuid.UUID
	transactions []domain.Transaction
}

func (s *state) clone() *state {
	cp := &state{
		accounts:     make(map[uuid.UUID]domain.Account, len(s.accounts)),
		order:        append([]uuid.UUID(nil), s.order...),
		transactions: append([]domain.Transaction(nil), s.transactions...),
	}
	for id, a := range s.accounts {
		cp.accounts[id] = a
	}
	return cp
}

// Store keeps accounts and transactions in memory. A single mutex
// serialises every operation, and WithTransaction holds it for the whole
// unit of work so that check-then-update sequences are atomic.
type Store struct {
	mu     *sync.Mutex
	st     *state
	inTx   bool
	logger *slog.Logger
}

var _ domain.Store = (*Store)(nil)

func New(logger *slog.Logger) *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			accounts: make(map[uuid.UUID]domain.Account),
		},
		logger: logger,
	}
}

func (s *Store) Account() domain.AccountRepository { return accountRepo{s} }
func (s *Store) Transaction() domain.TransactionRepository { return transactionRepo{s} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithTransaction runs fn against a private copy of the data and publishes
// the copy only if fn succeeds.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.ErrCannotBeginTransaction.WithDetails(err.Error())
	}

	work := s.st.clone()
	txStore := &Store{mu: s.mu, st: work, inTx: true, logger: s.logger}
	if err := fn(txStore); err != nil {
		return err
	}

	*s.st = *work
	return nil
}

// WithSnapshot runs fn under the store mutex against a copy of the data. Writes
// made by fn are discarded.
func (s *Store) WithSnapshot(ctx context.Context, fn func(domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.ErrCannotBeginTransaction.WithDetails(err.Error())
	}

	return fn(&Store{mu: s.mu, st: s.st.clone(), inTx: true, logger: s.logger})
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type accountRepo struct{ s *Store }

func (r accountRepo) CreateAccount(ctx context.Context, account *domain.Account) error {
	defer r.s.lock()()

	for _, a := range r.s.st.accounts {
		if a.IBAN == account.IBAN {
			r.s.logger.Warn("Duplicate account creation attempt", "iban", account.IBAN)
			return errors.ErrDuplicateAccount
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	account.CreatedAt = now
	account.UpdatedAt = now
	r.s.st.accounts[account.ID] = *account
	r.s.st.order = append(r.s.st.order, account.ID)

	r.s.logger.Info("Account created successfully", "account_id", account.ID)
	return nil
}

func (r accountRepo) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	defer r.s.lock()()

	a, ok := r.s.st.accounts[id]
	if !ok {
		r.s.logger.Warn("Account not found", "account_id", id)
		return nil, errors.ErrAccountNotFound
	}
	return &a, nil
}

// GetAccountForUpdate is GetAccount: the transaction already holds the lock.
func (r accountRepo) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.GetAccount(ctx, id)
}

func (r accountRepo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	defer r.s.lock()()

	accounts := make([]domain.Account, 0, len(r.s.st.order))
	for _, id := range r.s.st.order {
		accounts = append(accounts, r.s.st.accounts[id])
	}
	return accounts, nil
}

func (r accountRepo) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	defer r.s.lock()()

	a, ok := r.s.st.accounts[id]
	if !ok {
		r.s.logger.Warn("No account found to update", "account_id", id)
		return errors.ErrAccountNotFound
	}

	next := a.Balance.Add(delta)
	if next.IsNegative() {
		r.s.logger.Warn("Balance would become negative", "account_id", id, "delta", delta)
		return errors.ErrInsufficientFunds
	}
	if next.GreaterThanOrEqual(domain.MoneyLimit) {
		r.s.logger.Warn("Balance would exceed the column range", "account_id", id, "delta", delta)
		return errors.ErrBalanceLimitExceeded
	}

	a.Balance = next
	a.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	r.s.st.accounts[id] = a

	r.s.logger.Info("Account balance updated", "account_id", id, "delta", delta)
	return nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	defer r.s.lock()()

	if !tx.Amount.Abs().LessThan(domain.MoneyLimit) {
		return errors.ErrInvalidAmount.WithDetails("amount is too large")
	}

	tx.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	r.s.st.transactions = append(r.s.st.transactions, *tx)

	r.s.logger.Info("Transaction created successfully", "transaction_id", tx.ID, "type", tx.Type)
	return nil
}

// ListTransactions walks the log backwards, which is newest first because
// transactions are only ever appended.
func (r transactionRepo) ListTransactions(ctx context.Context, accountID *uuid.UUID) ([]domain.Transaction, error) {
	defer r.s.lock()()

	out := []domain.Transaction{}
	for i := len(r.s.st.transactions) - 1; i >= 0; i-- {
		tx := r.s.st.transactions[i]
		if accountID != nil && !references(tx, *accountID) {
			continue
		}
		if tx.FromAccountID != nil {
			tx.FromIBAN = r.s.st.accounts[*tx.FromAccountID].IBAN
		}
		if tx.ToAccountID != nil {
			tx.ToIBAN = r.s.st.accounts[*tx.ToAccountID].IBAN
		}
		out = append(out, tx)
	}
	return out, nil
}

func references(tx domain.Transaction, id uuid.UUID) bool {
	return (tx.FromAccountID != nil && *tx.FromAccountID == id) ||
		(tx.ToAccountID != nil && *tx.ToAccountID == id)
}
