package repository

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
)

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, amount, from_account_id, to_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	createdAt := now()
	_, err := r.db.ExecContext(ctx,
		query,
		tx.ID,
		string(tx.Type),
		tx.Amount.String(),
		nullUUID(tx.FromAccountID),
		nullUUID(tx.ToAccountID),
		createdAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == pqNumericOverflow {
			r.logger.Warn("Transaction amount exceeds the column range", "amount", tx.Amount)
			return errors.ErrInvalidAmount.WithDetails("amount is too large")
		}
		r.logger.Error("Failed to create transaction",
			"type", tx.Type,
			"from_account_id", tx.FromAccountID,
			"to_account_id", tx.ToAccountID,
			"amount", tx.Amount,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	tx.CreatedAt = createdAt
	r.logger.Info("Transaction created successfully", "transaction_id", tx.ID, "type", tx.Type)
	return nil
}

func (r *transactionRepository) ListTransactions(ctx context.Context, accountID *uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT t.id, t.type, t.amount, t.from_account_id, t.to_account_id, t.created_at,
		       COALESCE(fa.iban, ''), COALESCE(ta.iban, '')
		FROM transactions t
		LEFT JOIN accounts fa ON fa.id = t.from_account_id
		LEFT JOIN accounts ta ON ta.id = t.to_account_id
	`
	args := []interface{}{}
	if accountID != nil {
		query += ` WHERE t.from_account_id = $1 OR t.to_account_id = $1`
		args = append(args, *accountID)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "account_id", accountID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var (
			tx        domain.Transaction
			txType    string
			amountStr string
			from, to  uuid.NullUUID
		)
		if err := rows.Scan(&tx.ID, &txType, &amountStr, &from, &to, &tx.CreatedAt, &tx.FromIBAN, &tx.ToIBAN); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan transaction").WithDetails(err.Error())
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse amount").WithDetails(err.Error())
		}
		tx.Amount = amount
		tx.Type = domain.TransactionType(txType)
		if from.Valid {
			tx.FromAccountID = &from.UUID
		}
		if to.Valid {
			tx.ToAccountID = &to.UUID
		}

		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}

	return transactions, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
