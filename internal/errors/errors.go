package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound        ErrorCode = "account_not_found"
	DuplicateAccount       ErrorCode = "duplicate_account"
	InvalidIBAN            ErrorCode = "invalid_iban"
	InvalidAmount          ErrorCode = "invalid_amount"
	InvalidAccountID       ErrorCode = "invalid_account_id"
	InvalidTransactionType ErrorCode = "invalid_transaction_type"
	InvalidInput           ErrorCode = "invalid_input"
	InsufficientFunds      ErrorCode = "insufficient_funds"
	BalanceLimitExceeded   ErrorCode = "balance_limit_exceeded"
	SameAccountTransfer    ErrorCode = "same_account_transfer"
	RateLimited            ErrorCode = "rate_limited"
	CannotBeginTransaction ErrorCode = "cannot_begin_transaction"
	InternalError          ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an AppError with the same code, so that
// copies produced by WithDetails still match the predefined errors.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus maps the error code to the status written by the API.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound:
		return http.StatusNotFound
	case DuplicateAccount:
		return http.StatusConflict
	case InsufficientFunds, BalanceLimitExceeded:
		return http.StatusUnprocessableEntity
	case RateLimited:
		return http.StatusTooManyRequests
	case InvalidIBAN, InvalidAmount, InvalidAccountID, InvalidTransactionType,
		InvalidInput, SameAccountTransfer:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account with this IBAN already exists")
	ErrInvalidIBAN            = NewAppError(InvalidIBAN, "invalid IBAN format")
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be positive")
	ErrInvalidAccountID       = NewAppError(InvalidAccountID, "invalid account id")
	ErrInvalidTransactionType = NewAppError(InvalidTransactionType, "invalid transaction type")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds")
	ErrBalanceLimitExceeded   = NewAppError(BalanceLimitExceeded, "balance would exceed the maximum allowed")
	ErrSameAccountTransfer    = NewAppError(SameAccountTransfer, "cannot transfer to the same account")
	ErrRateLimited            = NewAppError(RateLimited, "too many requests, please try again later")
	ErrCannotBeginTransaction = NewAppError(CannotBeginTransaction, "store cannot begin a transaction")
	ErrInternal               = NewAppError(InternalError, "an unexpected error occurred")
)
