package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
)

type AccountService struct {
	store  domain.Store
	logger *slog.Logger
}

func NewAccountService(store domain.Store, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger,
	}
}

// CreateAccount opens an account with a zero balance.
func (s *AccountService) CreateAccount(ctx context.Context, iban string) (*domain.Account, error) {
	s.logger.Info("Creating account", "iban", iban)

	if !domain.ValidIBAN(iban) {
		return nil, errors.ErrInvalidIBAN
	}

	account := &domain.Account{
		ID:      uuid.New(),
		IBAN:    iban,
		Balance: decimal.Zero,
	}

	if err := s.store.Account().CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	id, err := parseAccountID(accountID)
	if err != nil {
		return nil, err
	}

	return s.store.Account().GetAccount(ctx, id)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.store.Account().ListAccounts(ctx)
}

// AccountActivity is an account with the transactions it sent and
// received, newest first.
type AccountActivity struct {
	Account  domain.Account
	Sent     []domain.Transaction
	Received []domain.Transaction
}

// ListAccountActivity lists every account with its transactions, read from
// one snapshot.
func (s *AccountService) ListAccountActivity(ctx context.Context) ([]AccountActivity, error) {
	var activity []AccountActivity
	err := s.store.WithSnapshot(ctx, func(store domain.Store) error {
		accounts, err := store.Account().ListAccounts(ctx)
		if err != nil {
			return err
		}
		history, err := store.Transaction().ListTransactions(ctx, nil)
		if err != nil {
			return err
		}

		index := make(map[uuid.UUID]int, len(accounts))
		activity = make([]AccountActivity, len(accounts))
		for i, account := range accounts {
			index[account.ID] = i
			activity[i] = AccountActivity{
				Account:  account,
				Sent:     []domain.Transaction{},
				Received: []domain.Transaction{},
			}
		}

		for _, tx := range history {
			if tx.FromAccountID != nil {
				if i, ok := index[*tx.FromAccountID]; ok {
					activity[i].Sent = append(activity[i].Sent, tx)
				}
			}
			if tx.ToAccountID != nil {
				if i, ok := index[*tx.ToAccountID]; ok {
					activity[i].Received = append(activity[i].Received, tx)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// Statement returns the account's transactions with the balance after each
// one. The balance and the history are read from one snapshot, so a
// transaction committing in between cannot skew the replay.
func (s *AccountService) Statement(ctx context.Context, accountID string) (*domain.Statement, error) {
	id, err := parseAccountID(accountID)
	if err != nil {
		return nil, err
	}

	var statement domain.Statement
	err = s.store.WithSnapshot(ctx, func(store domain.Store) error {
		account, err := store.Account().GetAccount(ctx, id)
		if err != nil {
			return err
		}

		history, err := store.Transaction().ListTransactions(ctx, &id)
		if err != nil {
			return err
		}

		statement = domain.BuildStatement(*account, history)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Statement built", "account_id", id, "entries", len(statement.Entries))
	return &statement, nil
}

func parseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.ErrInvalidAccountID.WithDetails(err.Error())
	}
	return id, nil
}
