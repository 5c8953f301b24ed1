package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
	"ibanbank/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// CreateTransactionRequest accepts amount as a JSON number or string.
type CreateTransactionRequest struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	FromAccountID *string         `json:"fromAccountId,omitempty"`
	ToAccountID   *string         `json:"toAccountId,omitempty"`
}

type AccountSummary struct {
	ID   string `json:"id"`
	IBAN string `json:"iban"`
}

type TransactionResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Amount        string          `json:"amount"`
	FromAccountID *string         `json:"fromAccountId"`
	ToAccountID   *string         `json:"toAccountId"`
	FromAccount   *AccountSummary `json:"fromAccount,omitempty"`
	ToAccount     *AccountSummary `json:"toAccount,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func newTransactionResponse(tx *domain.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:        tx.ID.String(),
		Type:      string(tx.Type),
		Amount:    money(tx.Amount),
		CreatedAt: tx.CreatedAt,
	}
	if tx.FromAccountID != nil {
		id := tx.FromAccountID.String()
		response.FromAccountID = &id
		if tx.FromIBAN != "" {
			response.FromAccount = &AccountSummary{ID: id, IBAN: tx.FromIBAN}
		}
	}
	if tx.ToAccountID != nil {
		id := tx.ToAccountID.String()
		response.ToAccountID = &id
		if tx.ToIBAN != "" {
			response.ToAccount = &AccountSummary{ID: id, IBAN: tx.ToIBAN}
		}
	}
	return response
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	fromID, err := optionalAccountID(req.FromAccountID)
	if err != nil {
		WriteError(w, err)
		return
	}
	toID, err := optionalAccountID(req.ToAccountID)
	if err != nil {
		WriteError(w, err)
		return
	}

	transaction, err := h.transactionService.Process(r.Context(), &service.ProcessRequest{
		Type:          domain.TransactionType(req.Type),
		Amount:        req.Amount,
		FromAccountID: fromID,
		ToAccountID:   toID,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newTransactionResponse(transaction))
}

func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.transactionService.ListTransactions(r.Context(), r.URL.Query().Get("accountId"))
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponses(transactions))
}

func transactionResponses(transactions []domain.Transaction) []TransactionResponse {
	response := make([]TransactionResponse, 0, len(transactions))
	for i := range transactions {
		response = append(response, newTransactionResponse(&transactions[i]))
	}
	return response
}

func optionalAccountID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, errors.ErrInvalidAccountID.WithDetails(err.Error())
	}
	return &id, nil
}
