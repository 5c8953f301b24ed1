package service

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
	"ibanbank/internal/events"
)

const publishTimeout = 5 * time.Second

type TransactionService struct {
	store     domain.Store
	publisher events.Publisher
	logger    *slog.Logger
}

func NewTransactionService(store domain.Store, publisher events.Publisher, logger *slog.Logger) *TransactionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TransactionService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

type ProcessRequest struct {
	Type          domain.TransactionType
	Amount        decimal.Decimal
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
}

// Process validates req and applies it: the transaction record and every
// balance change it implies are written in one database transaction.
func (s *TransactionService) Process(ctx context.Context, req *ProcessRequest) (*domain.Transaction, error) {
	s.logger.Info("Processing transaction",
		"type", req.Type,
		"amount", req.Amount,
		"from_account_id", req.FromAccountID,
		"to_account_id", req.ToAccountID)

	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	transaction, err := buildTransaction(req)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTransaction(ctx, func(store domain.Store) error {
		return apply(ctx, store, transaction)
	})
	if err != nil {
		s.logger.Warn("Transaction rejected", "type", req.Type, "error", err)
		return nil, err
	}

	s.logger.Info("Transaction completed successfully", "transaction_id", transaction.ID, "type", transaction.Type)
	s.publish(ctx, transaction)
	return transaction, nil
}

// ListTransactions returns transactions newest first. An empty accountID
// lists every transaction.
func (s *TransactionService) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	if accountID == "" {
		return s.store.Transaction().ListTransactions(ctx, nil)
	}

	id, err := parseAccountID(accountID)
	if err != nil {
		return nil, err
	}
	return s.store.Transaction().ListTransactions(ctx, &id)
}

// validateAmount bounds the exponent before any rescaling: decoded JSON
// may carry an exponent such as 1e-20000000, and rounding it would
// materialise a power of ten with that many digits.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}

	exp := amount.Exponent()
	if exp > domain.AmountDigits {
		return errors.ErrInvalidAmount.WithDetails("amount is too large")
	}
	if exp < -(domain.AmountScale + domain.AmountDigits) {
		return errors.NewAppError(errors.InvalidAmount, "amount must have at most two decimal places")
	}

	if !amount.Equal(amount.Round(domain.AmountScale)) {
		return errors.NewAppError(errors.InvalidAmount, "amount must have at most two decimal places")
	}
	if amount.GreaterThanOrEqual(domain.MoneyLimit) {
		return errors.ErrInvalidAmount.WithDetails("amount is too large")
	}
	return nil
}

func buildTransaction(req *ProcessRequest) (*domain.Transaction, error) {
	transaction := &domain.Transaction{
		ID:     uuid.New(),
		Type:   req.Type,
		Amount: req.Amount,
	}

	switch req.Type {
	case domain.Deposit:
		if req.ToAccountID == nil {
			return nil, errors.ErrInvalidAccountID.WithDetails("toAccountId is required for DEPOSIT")
		}
		transaction.ToAccountID = req.ToAccountID

	case domain.Withdrawal:
		if req.FromAccountID == nil {
			return nil, errors.ErrInvalidAccountID.WithDetails("fromAccountId is required for WITHDRAWAL")
		}
		transaction.FromAccountID = req.FromAccountID

	case domain.Transfer:
		if req.FromAccountID == nil || req.ToAccountID == nil {
			return nil, errors.ErrInvalidAccountID.WithDetails("fromAccountId and toAccountId are required for TRANSFER")
		}
		if *req.FromAccountID == *req.ToAccountID {
			return nil, errors.ErrSameAccountTransfer
		}
		transaction.FromAccountID = req.FromAccountID
		transaction.ToAccountID = req.ToAccountID

	default:
		return nil, errors.ErrInvalidTransactionType
	}

	return transaction, nil
}

func apply(ctx context.Context, store domain.Store, tx *domain.Transaction) error {
	accounts := store.Account()

	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range lockOrder(tx) {
		account, err := accounts.GetAccountForUpdate(ctx, id)
		if err != nil {
			return err
		}
		locked[id] = account
	}

	if tx.FromAccountID != nil && locked[*tx.FromAccountID].Balance.LessThan(tx.Amount) {
		return errors.ErrInsufficientFunds
	}

	if err := store.Transaction().CreateTransaction(ctx, tx); err != nil {
		return err
	}

	if tx.FromAccountID != nil {
		if err := accounts.AdjustBalance(ctx, *tx.FromAccountID, tx.Amount.Neg()); err != nil {
			return err
		}
	}
	if tx.ToAccountID != nil {
		if err := accounts.AdjustBalance(ctx, *tx.ToAccountID, tx.Amount); err != nil {
			return err
		}
	}

	return nil
}

// lockOrder returns the accounts touched by tx sorted by id, so that two
// opposing transfers acquire row locks in the same order.
func lockOrder(tx *domain.Transaction) []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if tx.FromAccountID != nil {
		ids = append(ids, *tx.FromAccountID)
	}
	if tx.ToAccountID != nil {
		ids = append(ids, *tx.ToAccountID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

func (s *TransactionService) publish(ctx context.Context, tx *domain.Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishTransactionCreated(ctx, events.NewTransactionCreatedEvent(tx)); err != nil {
		s.logger.Error("Failed to publish transaction event", "transaction_id", tx.ID, "error", err)
	}
}
