package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StatementEntry struct {
	Transaction  Transaction     `json:"transaction"`
	Description  string          `json:"description"`
	SignedAmount decimal.Decimal `json:"signedAmount"`
	Balance      decimal.Decimal `json:"balance"`
}

type Statement struct {
	Account        Account          `json:"account"`
	OpeningBalance decimal.Decimal  `json:"openingBalance"`
	Entries        []StatementEntry `json:"entries"`
}

// BuildStatement reconstructs the balance after each transaction by walking
// newestFirst backwards from the account's current balance. Entries are
// returned oldest first.
func BuildStatement(account Account, newestFirst []Transaction) Statement {
	entries := make([]StatementEntry, len(newestFirst))
	balance := account.Balance

	for i, tx := range newestFirst {
		signed := tx.SignedAmount(account.ID)
		entries[len(newestFirst)-1-i] = StatementEntry{
			Transaction:  tx,
			Description:  describe(tx, account.ID),
			SignedAmount: signed,
			Balance:      balance,
		}
		balance = balance.Sub(signed)
	}

	return Statement{
		Account:        account,
		OpeningBalance: balance,
		Entries:        entries,
	}
}

func describe(tx Transaction, accountID uuid.UUID) string {
	if tx.Type != Transfer {
		return string(tx.Type)
	}
	if tx.FromAccountID != nil && *tx.FromAccountID == accountID {
		return "To " + tx.ToIBAN
	}
	return "From " + tx.FromIBAN
}
