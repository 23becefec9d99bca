package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/hsbakhtar202/qbk/internal/domain"
)

type groupKey struct {
	normalized string
	category   string
}

// summarize merges all ledger rows into one summary row per
// (normalized description, category) pair. Each row's signed amount is
// split into a debit component (the amount when negative, else zero)
// and a credit component (the amount when positive, else zero), and the
// components are summed independently. Groups appear in first-seen row
// order, and each keeps the first original description encountered as
// its sample.
//
// Rows whose normalized form has no assignment (past the
// classification cap) group under the empty category.
func summarize(txs []domain.Transaction, normalized []string, assignments map[string]string) []domain.SummaryRow {
	groups := make(map[groupKey]*domain.SummaryRow)
	var order []groupKey

	for i, tx := range txs {
		key := groupKey{
			normalized: normalized[i],
			category:   assignments[normalized[i]],
		}

		row, ok := groups[key]
		if !ok {
			row = &domain.SummaryRow{
				NormalizedDescription: key.normalized,
				Category:              key.category,
				Debit:                 decimal.Zero,
				Credit:                decimal.Zero,
				SampleDescription:     tx.Description,
			}
			groups[key] = row
			order = append(order, key)
		}

		switch {
		case tx.Amount.IsNegative():
			row.Debit = row.Debit.Add(tx.Amount)
		case tx.Amount.IsPositive():
			row.Credit = row.Credit.Add(tx.Amount)
		}
	}

	summary := make([]domain.SummaryRow, 0, len(order))
	for _, key := range order {
		summary = append(summary, *groups[key])
	}
	return summary
}
