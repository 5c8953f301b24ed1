package domain

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ibanPattern = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{1,30}$`)

// ValidIBAN reports whether s has the shape of an IBAN: a two letter
// country code, two check digits and up to 30 alphanumerics. Check digits
// are not verified.
func ValidIBAN(s string) bool {
	return ibanPattern.MatchString(s)
}

type Account struct {
	ID        uuid.UUID       `json:"id"`
	IBAN      string          `json:"iban"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetAccountForUpdate locks the row until the surrounding transaction ends.
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
}
