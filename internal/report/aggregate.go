// Package report computes aggregates over the transaction ledger. All
// functions are pure: they take a snapshot slice and never touch storage.
// Rejected transactions are excluded everywhere.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Summary is the shape served by the reports endpoint.
type Summary struct {
	TotalExpense string            `json:"total_expense"`
	TotalIncome  string            `json:"total_income"`
	Net          string            `json:"net"`
	ByCategory   map[string]string `json:"by_category"`
	Pending      int               `json:"pending"`
	Count        int               `json:"count"`
}

// Summarize builds the full summary in one pass over the snapshot.
func Summarize(txs []domain.Transaction) Summary {
	expense := TotalByType(txs, domain.TypeExpense)
	income := TotalByType(txs, domain.TypeIncome)

	byCat := make(map[string]string)
	for cat, total := range CategoryTotals(txs, domain.TypeExpense) {
		byCat[cat] = total.StringFixed(2)
	}

	var pending, count int
	for _, tx := range txs {
		if tx.Status == domain.StatusRejected {
			continue
		}
		count++
		if tx.Status == domain.StatusPending {
			pending++
		}
	}

	return Summary{
		TotalExpense: expense.StringFixed(2),
		TotalIncome:  income.StringFixed(2),
		Net:          income.Sub(expense).StringFixed(2),
		ByCategory:   byCat,
		Pending:      pending,
		Count:        count,
	}
}

// TotalByType sums the amounts of all non-rejected transactions of the
// given type. Unparseable amounts count as zero.
func TotalByType(txs []domain.Transaction, typ domain.TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status == domain.StatusRejected || tx.Type != typ {
			continue
		}
		total = total.Add(domain.ParseAmount(tx.Amount))
	}
	return total
}

// ByCategory groups the non-rejected transactions of the given type by
// category, preserving snapshot order within each group.
func ByCategory(txs []domain.Transaction, typ domain.TransactionType) map[string][]domain.Transaction {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		if tx.Status == domain.StatusRejected || tx.Type != typ {
			continue
		}
		groups[tx.Category] = append(groups[tx.Category], tx)
	}
	return groups
}

// CategoryTotals sums the amounts of each ByCategory group.
func CategoryTotals(txs []domain.Transaction, typ domain.TransactionType) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for cat, group := range ByCategory(txs, typ) {
		sum := decimal.Zero
		for _, tx := range group {
			sum = sum.Add(domain.ParseAmount(tx.Amount))
		}
		totals[cat] = sum
	}
	return totals
}

// Recent returns the n most recently occurred non-rejected transactions,
// newest first. Ties break on creation time so same-day rows keep a
// stable order.
func Recent(txs []domain.Transaction, n int) []domain.Transaction {
	kept := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Status == domain.StatusRejected {
			continue
		}
		kept = append(kept, tx)
	}
	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].OccurredAt.Equal(kept[j].OccurredAt) {
			return kept[i].OccurredAt.After(kept[j].OccurredAt)
		}
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})
	if n >= 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}
