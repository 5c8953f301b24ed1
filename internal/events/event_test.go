package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibanbank/internal/domain"
)

func TestNewTransactionCreatedEvent(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	tx := &domain.Transaction{
		ID:            uuid.New(),
		Type:          domain.Transfer,
		Amount:        decimal.RequireFromString("12.50"),
		FromAccountID: &from,
		ToAccountID:   &to,
		CreatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	event := NewTransactionCreatedEvent(tx)

	assert.Equal(t, TransactionCreated, event.EventType)
	assert.Equal(t, tx.ID.String(), event.TransactionID)
	assert.Equal(t, "TRANSFER", event.Type)
	assert.Equal(t, "12.5", event.Amount)
	assert.Equal(t, from.String(), event.FromAccountID)
	assert.Equal(t, to.String(), event.ToAccountID)
	assert.Equal(t, "2024-05-01T10:00:00Z", event.BookedAt)
}

func TestDepositEventOmitsSource(t *testing.T) {
	to := uuid.New()
	tx := &domain.Transaction{ID: uuid.New(), Type: domain.Deposit, Amount: decimal.NewFromInt(3), ToAccountID: &to}

	payload, err := json.Marshal(NewTransactionCreatedEvent(tx))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.NotContains(t, raw, "fromAccountId")
	assert.Equal(t, to.String(), raw["toAccountId"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishTransactionCreated(context.Background(), TransactionCreatedEvent{}))
	assert.NoError(t, p.Close())
}
