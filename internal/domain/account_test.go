package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIBAN(t *testing.T) {
	valid := []string{
		"GB29NWBK60161331926819",
		"DE89370400440532013000",
		"NL91ABNA0417164300",
		"FR1420041010050500013M02606",
		"AB12C",
		"AB12" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123",
	}
	for _, iban := range valid {
		assert.True(t, ValidIBAN(iban), iban)
	}

	invalid := []string{
		"",
		"invalid-iban",
		"gb29NWBK60161331926819",
		"GB2XNWBK60161331926819",
		"GB29",
		"GB29 NWBK 6016 1331 9268 19",
		"GB29nwbk60161331926819",
		"1B29NWBK60161331926819",
		"AB12" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ01234",
		"GB29NWBK60161331926819\n",
	}
	for _, iban := range invalid {
		assert.False(t, ValidIBAN(iban), iban)
	}
}

func TestTransactionTypeValid(t *testing.T) {
	assert.True(t, Deposit.Valid())
	assert.True(t, Withdrawal.Valid())
	assert.True(t, Transfer.Valid())
	assert.False(t, TransactionType("REFUND").Valid())
	assert.False(t, TransactionType("deposit").Valid())
}
