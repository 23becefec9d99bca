// Package pipeline orchestrates a summarization run: load the category
// vocabulary and transaction ledger, normalize descriptions, classify
// each distinct normalized form once, broadcast the assignments back
// onto all rows, and aggregate debit/credit totals into the summary
// artifact.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/hsbakhtar202/qbk/internal/domain"
	"github.com/hsbakhtar202/qbk/internal/gcs"
	"github.com/hsbakhtar202/qbk/internal/logger"
	"github.com/hsbakhtar202/qbk/internal/runlog"
	"github.com/hsbakhtar202/qbk/internal/vocab"
)

// MaxDistinctClassifications caps the number of distinct normalized
// forms classified per run. It bounds total oracle invocations
// regardless of ledger size; forms past the cap stay unclassified.
const MaxDistinctClassifications = 200

// FetchFunc reads an input by local path or gs:// URI.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

// PublishFunc uploads the artifact bytes to a gs:// URI.
type PublishFunc func(ctx context.Context, uri string, data []byte) error

// Classifier assigns a category to one normalized description.
// Implementations must degrade internally (never fail) so a single bad
// classification cannot abort the run.
type Classifier interface {
	Classify(ctx context.Context, original, normalized string, v *vocab.Vocabulary) string
}

// Recorder persists run history. Implemented by runlog.Recorder.
type Recorder interface {
	RecordRun(ctx context.Context, row *runlog.RunRow) error
	RecordSummary(ctx context.Context, runID string, rows []domain.SummaryRow) error
}

// DistinctForm is one normalized description selected for
// classification, paired with the first original description that
// produced it.
type DistinctForm struct {
	Normalized string
	Original   string
}

// State is the shared state threaded through the pipeline steps.
type State struct {
	RunID     string
	StartedAt time.Time

	// Inputs.
	VocabularyPath string
	LedgerPath     string
	OutputPath     string
	PublishURI     string // optional gs:// destination for the artifact
	BusinessType   string

	// Derived along the way.
	Vocabulary   *vocab.Vocabulary
	Transactions []domain.Transaction
	Normalized   []string // parallel to Transactions
	Distinct     []DistinctForm
	Assignments  map[string]string // normalized form -> category
	Summary      []domain.SummaryRow
	Artifact     []byte // encoded summary
}

// Step is a single stage of the run.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// New creates a pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first error.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewSummaryPipeline creates the standard run: load, normalize,
// classify, aggregate, write, publish.
func NewSummaryPipeline(cl Classifier, fetch FetchFunc, publish PublishFunc) *Pipeline {
	return New(
		&LoadVocabularyStep{Fetch: fetch},
		&LoadLedgerStep{Fetch: fetch},
		&NormalizeStep{},
		&SelectDistinctStep{},
		&ClassifyStep{Classifier: cl},
		&SummarizeStep{},
		&WriteArtifactStep{},
		&PublishArtifactStep{Publish: publish},
	)
}

// Run executes the pipeline and records the outcome to the optional
// run-history recorder. Recording failures are logged, never returned:
// a run that produced its artifact is a successful run.
func Run(ctx context.Context, p *Pipeline, state *State, rec Recorder) error {
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	state.StartedAt = time.Now()

	log := logger.FromContext(ctx).With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("ledger", state.LedgerPath).
		Str("categories", state.VocabularyPath).
		Msg("starting summarization run")

	runErr := p.Execute(ctx, state)

	if rec != nil {
		row := &runlog.RunRow{
			RunID:            state.RunID,
			StartedAt:        state.StartedAt,
			FinishedAt:       bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true},
			LedgerURI:        state.LedgerPath,
			VocabularyURI:    state.VocabularyPath,
			BusinessType:     state.BusinessType,
			TransactionCount: int64(len(state.Transactions)),
			DistinctCount:    int64(len(state.Distinct)),
			ClassifiedCount:  int64(len(state.Assignments)),
			Status:           runlog.StatusSuccess,
		}
		if runErr != nil {
			row.Status = runlog.StatusFailed
			row.ErrorMessage = runErr.Error()
		}
		if err := rec.RecordRun(ctx, row); err != nil {
			log.Warn().Err(err).Msg("failed to record run history")
		} else if runErr == nil {
			if err := rec.RecordSummary(ctx, state.RunID, state.Summary); err != nil {
				log.Warn().Err(err).Msg("failed to record summary rows")
			}
		}
	}

	if runErr == nil {
		log.Info().
			Int("transactions", len(state.Transactions)).
			Int("distinct_forms", len(state.Distinct)).
			Int("summary_rows", len(state.Summary)).
			Str("output", state.OutputPath).
			Msg("summarization run complete")
	}
	return runErr
}

// ReadInput reads a local file or, for gs:// paths, a GCS object.
func ReadInput(ctx context.Context, path string) ([]byte, error) {
	if gcs.IsURI(path) {
		return gcs.Fetch(ctx, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return data, nil
}
