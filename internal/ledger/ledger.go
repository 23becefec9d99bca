// Package ledger reads the input transaction ledger and writes the
// summary artifact. Both are plain delimited text; column mapping is
// done through gocsv struct tags so extra ledger columns are ignored.
package ledger

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/hsbakhtar202/qbk/internal/domain"
)

// ledgerRow maps the two columns the pipeline cares about. Any other
// column in the input file is ignored.
type ledgerRow struct {
	Description string          `csv:"Description"`
	Amount      decimal.Decimal `csv:"Amount"`
}

// summaryRow is the output artifact schema.
type summaryRow struct {
	NormalizedDescription string          `csv:"Normalized Description"`
	Category              string          `csv:"Category"`
	Debit                 decimal.Decimal `csv:"Debit"`
	Credit                decimal.Decimal `csv:"Credit"`
	SampleDescription     string          `csv:"Sample Original Description"`
}

// ReadTransactions parses ledger rows from r.
func ReadTransactions(r io.Reader) ([]domain.Transaction, error) {
	var rows []ledgerRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("ledger.ReadTransactions: parse csv: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, domain.Transaction{
			Description: row.Description,
			Amount:      row.Amount,
		})
	}
	return txs, nil
}

// WriteSummary writes the summary rows to w, header included.
func WriteSummary(w io.Writer, rows []domain.SummaryRow) error {
	out := make([]summaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryRow{
			NormalizedDescription: row.NormalizedDescription,
			Category:              row.Category,
			Debit:                 row.Debit,
			Credit:                row.Credit,
			SampleDescription:     row.SampleDescription,
		})
	}

	if err := gocsv.Marshal(&out, w); err != nil {
		return fmt.Errorf("ledger.WriteSummary: write csv: %w", err)
	}
	return nil
}
