package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
	"ibanbank/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type CreateAccountRequest struct {
	IBAN string `json:"iban"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	IBAN      string    `json:"iban"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccountActivityResponse is returned by GET /api/account?include=transactions.
type AccountActivityResponse struct {
	AccountResponse
	SentTransactions     []TransactionResponse `json:"sentTransactions"`
	ReceivedTransactions []TransactionResponse `json:"receivedTransactions"`
}

type StatementEntryResponse struct {
	Transaction  TransactionResponse `json:"transaction"`
	Description  string              `json:"description"`
	SignedAmount string              `json:"signedAmount"`
	Balance      string              `json:"balance"`
}

type StatementResponse struct {
	Account        AccountResponse          `json:"account"`
	OpeningBalance string                   `json:"openingBalance"`
	Entries        []StatementEntryResponse `json:"entries"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID.String(),
		IBAN:      account.IBAN,
		Balance:   money(account.Balance),
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), req.IBAN)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetAccount(r.Context(), mux.Vars(r)["account_id"])
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("include") == "transactions" {
		h.listAccountActivity(w, r)
		return
	}

	accounts, err := h.accountService.ListAccounts(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		response = append(response, newAccountResponse(&accounts[i]))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *AccountHandler) listAccountActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.accountService.ListAccountActivity(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response := make([]AccountActivityResponse, 0, len(activity))
	for i := range activity {
		response = append(response, AccountActivityResponse{
			AccountResponse:      newAccountResponse(&activity[i].Account),
			SentTransactions:     transactionResponses(activity[i].Sent),
			ReceivedTransactions: transactionResponses(activity[i].Received),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.accountService.Statement(r.Context(), mux.Vars(r)["account_id"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response := StatementResponse{
		Account:        newAccountResponse(&statement.Account),
		OpeningBalance: money(statement.OpeningBalance),
		Entries:        make([]StatementEntryResponse, 0, len(statement.Entries)),
	}
	for i := range statement.Entries {
		entry := &statement.Entries[i]
		response.Entries = append(response.Entries, StatementEntryResponse{
			Transaction:  newTransactionResponse(&entry.Transaction),
			Description:  entry.Description,
			SignedAmount: money(entry.SignedAmount),
			Balance:      money(entry.Balance),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
