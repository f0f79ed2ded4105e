package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType tells income from expense.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// UncategorizedVendor labels expenses recorded without a vendor.
const UncategorizedVendor = "Uncategorized"

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// ParseTransactionType accepts "income"/"expense" in any case.
func ParseTransactionType(raw string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", raw)
	}
	return t, nil
}

// Transaction is an immutable budget record.
type Transaction struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Vendor      string
	Type        TransactionType
	// CreatedAt is Unix milliseconds.
	CreatedAt int64
}

// VendorLabel returns the vendor used for reporting.
func (t Transaction) VendorLabel() string {
	if v := strings.TrimSpace(t.Vendor); v != "" {
		return v
	}
	return UncategorizedVendor
}

// TransactionFromData maps a stored document onto a Transaction.
func TransactionFromData(id string, data map[string]any) (Transaction, error) {
	typ := TransactionType(stringField(data, "type"))
	if !typ.Valid() {
		return Transaction{}, fmt.Errorf("%w: transaction %s has type %q", ErrInvalidDocument, id, typ)
	}
	amount, err := decimalField(data, "amount")
	if err != nil {
		return Transaction{}, err
	}
	createdAt, err := int64Field(data, "createdAt")
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:          id,
		Description: stringField(data, "description"),
		Amount:      amount,
		Vendor:      stringField(data, "vendor"),
		Type:        typ,
		CreatedAt:   createdAt,
	}, nil
}

// NewTransactionData builds the document written on transaction creation.
// The amount is kept as an exact JSON number.
func NewTransactionData(description string, amount decimal.Decimal, vendor string, typ TransactionType, createdAt int64) map[string]any {
	return map[string]any{
		"description": description,
		"amount":      json.Number(amount.String()),
		"vendor":      vendor,
		"type":        string(typ),
		"createdAt":   createdAt,
	}
}

// TransactionLess orders transactions newest first.
func TransactionLess(a, b Transaction) bool {
	return a.CreatedAt > b.CreatedAt
}

func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return TransactionLess(txs[i], txs[j])
	})
}
