// Package runlog records summarization runs to BigQuery for operator
// visibility: one row per run plus the emitted summary rows. Recording
// is best-effort history, not pipeline state; the pipeline never reads
// it back, and failures to record are logged by callers rather than
// failing the run.
package runlog

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/hsbakhtar202/qbk/internal/domain"
)

const (
	runsTable      = "runs"
	summariesTable = "summaries"

	// Run statuses.
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// RunRow is one summarization run in the runs table.
type RunRow struct {
	RunID            string                 `bigquery:"run_id"`
	StartedAt        time.Time              `bigquery:"started_ts"`
	FinishedAt       bigquery.NullTimestamp `bigquery:"finished_ts"`
	LedgerURI        string                 `bigquery:"ledger_uri"`
	VocabularyURI    string                 `bigquery:"vocabulary_uri"`
	BusinessType     string                 `bigquery:"business_type"`
	TransactionCount int64                  `bigquery:"transaction_count"`
	DistinctCount    int64                  `bigquery:"distinct_count"`
	ClassifiedCount  int64                  `bigquery:"classified_count"`
	Status           string                 `bigquery:"status"`
	ErrorMessage     string                 `bigquery:"error_message"`
}

// summaryRow is one emitted summary row in the summaries table.
// Amounts are stored as their decimal string forms.
type summaryRow struct {
	RunID                 string `bigquery:"run_id"`
	NormalizedDescription string `bigquery:"normalized_description"`
	Category              string `bigquery:"category"`
	Debit                 string `bigquery:"debit"`
	Credit                string `bigquery:"credit"`
	SampleDescription     string `bigquery:"sample_original_description"`
}

// Recorder writes run history to a BigQuery dataset.
type Recorder struct {
	client  *bigquery.Client
	dataset string
}

// NewRecorder creates a Recorder for the given project and dataset.
func NewRecorder(ctx context.Context, projectID, datasetID string) (*Recorder, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRecorder: bigquery client: %w", err)
	}
	return &Recorder{client: client, dataset: datasetID}, nil
}

// Close releases the underlying client.
func (r *Recorder) Close() error {
	return r.client.Close()
}

// EnsureTables creates the dataset and both tables when they do not
// exist yet, with schemas inferred from the row structs.
func (r *Recorder) EnsureTables(ctx context.Context) error {
	ds := r.client.Dataset(r.dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return fmt.Errorf("EnsureTables: create dataset %q: %w", r.dataset, err)
		}
	}

	tables := []struct {
		name   string
		schema interface{}
	}{
		{runsTable, RunRow{}},
		{summariesTable, summaryRow{}},
	}
	for _, t := range tables {
		tbl := ds.Table(t.name)
		if _, err := tbl.Metadata(ctx); err == nil {
			continue
		}
		schema, err := bigquery.InferSchema(t.schema)
		if err != nil {
			return fmt.Errorf("EnsureTables: infer schema for %q: %w", t.name, err)
		}
		if err := tbl.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return fmt.Errorf("EnsureTables: create table %q: %w", t.name, err)
		}
	}
	return nil
}

// RecordRun inserts one run row.
func (r *Recorder) RecordRun(ctx context.Context, row *RunRow) error {
	inserter := r.client.Dataset(r.dataset).Table(runsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("RecordRun: inserting row: %w", err)
	}
	return nil
}

// RecordSummary inserts the emitted summary rows tagged with the run ID.
func (r *Recorder) RecordSummary(ctx context.Context, runID string, rows []domain.SummaryRow) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]*summaryRow, 0, len(rows))
	for _, row := range rows {
		records = append(records, &summaryRow{
			RunID:                 runID,
			NormalizedDescription: row.NormalizedDescription,
			Category:              row.Category,
			Debit:                 row.Debit.String(),
			Credit:                row.Credit.String(),
			SampleDescription:     row.SampleDescription,
		})
	}

	inserter := r.client.Dataset(r.dataset).Table(summariesTable).Inserter()
	if err := inserter.Put(ctx, records); err != nil {
		return fmt.Errorf("RecordSummary: inserting rows: %w", err)
	}
	return nil
}

// ListRuns returns recorded runs, newest first.
func (r *Recorder) ListRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  run_id,
		  started_ts,
		  finished_ts,
		  ledger_uri,
		  vocabulary_uri,
		  business_type,
		  transaction_count,
		  distinct_count,
		  classified_count,
		  status,
		  error_message
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, r.dataset, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query read: %w", err)
	}

	var rows []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
