// Package report derives the aggregates shown next to the synced task and
// transaction lists. Everything here is pure and recomputed from scratch.
package report

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"daily-tracker/internal/model"
)

var hundred = decimal.NewFromInt(100)

type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Balance  decimal.Decimal
}

type TaskSummary struct {
	Total     int
	Completed int
	Pending   int
	// CompletionRate is a whole percentage, 0 for an empty list.
	CompletionRate int
}

type VendorSpending struct {
	Vendor     string
	Amount     decimal.Decimal
	Percentage float64
}

// View is everything a screen or report needs for one user.
type View struct {
	Settings     model.Settings
	Tasks        []model.Task
	Transactions []model.Transaction
	TaskSummary  TaskSummary
	Totals       Totals
	Spending     []VendorSpending
}

func ComputeTotals(txs []model.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case model.TransactionIncome:
			t.Income = t.Income.Add(tx.Amount)
		case model.TransactionExpense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expenses)
	return t
}

func SummarizeTasks(tasks []model.Task) TaskSummary {
	s := TaskSummary{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(100 * float64(s.Completed) / float64(s.Total)))
	}
	return s
}

// SpendingByVendor groups expenses by vendor, largest first. Equal amounts
// keep the order in which their vendor first appeared.
func SpendingByVendor(txs []model.Transaction) []VendorSpending {
	index := make(map[string]int)
	var groups []VendorSpending
	total := decimal.Zero

	for _, tx := range txs {
		if tx.Type != model.TransactionExpense {
			continue
		}
		vendor := tx.VendorLabel()
		i, ok := index[vendor]
		if !ok {
			i = len(groups)
			index[vendor] = i
			groups = append(groups, VendorSpending{Vendor: vendor})
		}
		groups[i].Amount = groups[i].Amount.Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Amount.GreaterThan(groups[j].Amount)
	})

	if total.IsPositive() {
		for i := range groups {
			groups[i].Percentage = groups[i].Amount.Mul(hundred).Div(total).InexactFloat64()
		}
	}
	return groups
}

// Build assembles the view. Inputs are expected in collection order already.
func Build(settings model.Settings, tasks []model.Task, txs []model.Transaction) View {
	return View{
		Settings:     settings,
		Tasks:        tasks,
		Transactions: txs,
		TaskSummary:  SummarizeTasks(tasks),
		Totals:       ComputeTotals(txs),
		Spending:     SpendingByVendor(txs),
	}
}
