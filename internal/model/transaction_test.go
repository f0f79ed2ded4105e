package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionFromData(t *testing.T) {
	data := map[string]any{
		"description": "coffee",
		"amount":      json.Number("3.50"),
		"vendor":      "Cafe",
		"type":        "expense",
		"createdAt":   json.Number("100"),
	}

	tx, err := TransactionFromData("x1", data)
	require.NoError(t, err)

	assert.Equal(t, "x1", tx.ID)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, TransactionExpense, tx.Type)
	assert.Equal(t, int64(100), tx.CreatedAt)
}

func TestTransactionFromData_RejectsUnknownType(t *testing.T) {
	_, err := TransactionFromData("x1", map[string]any{"type": "transfer", "amount": 1.0})
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestNewTransactionData_RoundTripsExactAmount(t *testing.T) {
	amount := decimal.RequireFromString("0.10")
	data := NewTransactionData("tip", amount, "", TransactionIncome, 5)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":0.1`)

	tx, err := TransactionFromData("id", data)
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(amount))
	assert.Equal(t, UncategorizedVendor, tx.VendorLabel())
}

func TestSortTransactions_NewestFirst(t *testing.T) {
	txs := []Transaction{{ID: "a", CreatedAt: 1}, {ID: "b", CreatedAt: 3}, {ID: "c", CreatedAt: 2}}

	SortTransactions(txs)

	assert.Equal(t, "b", txs[0].ID)
	assert.Equal(t, "c", txs[1].ID)
	assert.Equal(t, "a", txs[2].ID)
}

func TestParseTransactionType(t *testing.T) {
	typ, err := ParseTransactionType(" Income ")
	require.NoError(t, err)
	assert.Equal(t, TransactionIncome, typ)

	_, err = ParseTransactionType("refund")
	assert.Error(t, err)
}
