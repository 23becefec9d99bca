package domain

import (
	"github.com/shopspring/decimal"
)

// Transaction is one row of the input ledger. Rows are read once and
// never mutated; derived values (normalized description, category) live
// in the pipeline state, not here.
type Transaction struct {
	Description string          // free-text description as it appears in the ledger
	Amount      decimal.Decimal // signed: negative = money out, positive = money in
}

// SummaryRow is one row of the output artifact: the debit/credit totals
// for every ledger row sharing a (normalized description, category) pair.
type SummaryRow struct {
	NormalizedDescription string
	Category              string          // empty when the form was never classified
	Debit                 decimal.Decimal // sum of negative amounts, <= 0
	Credit                decimal.Decimal // sum of positive amounts, >= 0
	SampleDescription     string          // first original description seen in the group
}
