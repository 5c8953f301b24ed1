package events

import (
	"context"
	"time"

	"ibanbank/internal/domain"
)

const TransactionCreated = "transaction.created"

type TransactionCreatedEvent struct {
	EventType     string `json:"eventType"`
	TransactionID string `json:"transactionId"`
	Type          string `json:"type"`
	FromAccountID string `json:"fromAccountId,omitempty"`
	ToAccountID   string `json:"toAccountId,omitempty"`
	Amount        string `json:"amount"`
	BookedAt      string `json:"bookedAt"`
}

func NewTransactionCreatedEvent(tx *domain.Transaction) TransactionCreatedEvent {
	event := TransactionCreatedEvent{
		EventType:     TransactionCreated,
		TransactionID: tx.ID.String(),
		Type:          string(tx.Type),
		Amount:        tx.Amount.String(),
		BookedAt:      tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if tx.FromAccountID != nil {
		event.FromAccountID = tx.FromAccountID.String()
	}
	if tx.ToAccountID != nil {
		event.ToAccountID = tx.ToAccountID.String()
	}
	return event
}

// Publisher announces committed transactions to downstream consumers.
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, event TransactionCreatedEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishTransactionCreated(context.Context, TransactionCreatedEvent) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
