package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hsbakhtar202/qbk/internal/classify"
	"github.com/hsbakhtar202/qbk/internal/domain"
	"github.com/hsbakhtar202/qbk/internal/pipeline"
	"github.com/hsbakhtar202/qbk/internal/runlog"
	"github.com/hsbakhtar202/qbk/internal/vocab"
)

// memFetch serves inputs from an in-memory map keyed by path.
func memFetch(files map[string]string) pipeline.FetchFunc {
	return func(ctx context.Context, path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("no such input: %s", path)
		}
		return []byte(data), nil
	}
}

// fixedClassifier assigns the same category to everything and counts
// invocations.
type fixedClassifier struct {
	category string
	calls    int
}

func (c *fixedClassifier) Classify(ctx context.Context, original, normalized string, v *vocab.Vocabulary) string {
	c.calls++
	return c.category
}

// memRecorder captures run-history writes.
type memRecorder struct {
	runs      []*runlog.RunRow
	summaries map[string][]domain.SummaryRow
	runErr    error
}

func (r *memRecorder) RecordRun(ctx context.Context, row *runlog.RunRow) error {
	if r.runErr != nil {
		return r.runErr
	}
	r.runs = append(r.runs, row)
	return nil
}

func (r *memRecorder) RecordSummary(ctx context.Context, runID string, rows []domain.SummaryRow) error {
	if r.summaries == nil {
		r.summaries = make(map[string][]domain.SummaryRow)
	}
	r.summaries[runID] = rows
	return nil
}

// scriptedOracle answers every completion with a fixed response.
type scriptedOracle struct {
	response string
}

func (o *scriptedOracle) Complete(ctx context.Context, system, user string) (string, error) {
	return o.response, nil
}

func runPipeline(t *testing.T, files map[string]string, cl pipeline.Classifier, rec pipeline.Recorder) *pipeline.State {
	t.Helper()

	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     filepath.Join(t.TempDir(), "output_summary.csv"),
		BusinessType:   "Convenience Store",
	}

	p := pipeline.NewSummaryPipeline(cl, memFetch(files), nil)
	if err := pipeline.Run(context.Background(), p, state, rec); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	return state
}

func TestEndToEndMergesNormalizedVariants(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\nFuel,Expense\nMiscellaneous,Other\n",
		"input.csv": "Description,Amount\n" +
			"STORE*AB12CD34 01/02 PURCHASE,-12.50\n" +
			"STORE*EF56GH78 01/03 PURCHASE,-7.25\n",
	}

	oracle := &scriptedOracle{response: "This is a Food purchase."}
	cl := classify.New(oracle, "Convenience Store", zerolog.Nop())

	state := runPipeline(t, files, cl, nil)

	if len(state.Summary) != 1 {
		t.Fatalf("got %d summary rows, want 1 (variants should merge)", len(state.Summary))
	}
	row := state.Summary[0]
	if row.Category != "Food" {
		t.Errorf("Category = %q, want Food", row.Category)
	}
	if row.Debit.String() != "-19.75" {
		t.Errorf("Debit = %s, want -19.75", row.Debit)
	}
	if !row.Credit.IsZero() {
		t.Errorf("Credit = %s, want 0", row.Credit)
	}
	if row.SampleDescription != "STORE*AB12CD34 01/02 PURCHASE" {
		t.Errorf("SampleDescription = %q, want the first original", row.SampleDescription)
	}

	// The artifact was written with the expected header.
	data, err := os.ReadFile(state.OutputPath)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !strings.HasPrefix(string(data), "Normalized Description,Category,Debit,Credit,Sample Original Description") {
		t.Errorf("artifact header wrong:\n%s", data)
	}
	if !strings.Contains(string(data), "-19.75") {
		t.Errorf("artifact missing merged debit total:\n%s", data)
	}
}

func TestClassificationCapAtTwoHundredForms(t *testing.T) {
	// 250 distinct normalized forms; letters only so normalization
	// keeps them distinct.
	var ledger strings.Builder
	ledger.WriteString("Description,Amount\n")
	for i := 0; i < 250; i++ {
		ledger.WriteString(fmt.Sprintf("MERCHANT %c%c,-1.00\n", 'A'+i/26, 'A'+i%26))
	}
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
		"input.csv":      ledger.String(),
	}

	cl := &fixedClassifier{category: "Food"}
	state := runPipeline(t, files, cl, nil)

	if cl.calls != 200 {
		t.Errorf("classifier invoked %d times, want exactly 200", cl.calls)
	}

	var assigned, unassigned int
	for _, row := range state.Summary {
		if row.Category == "" {
			unassigned++
		} else {
			assigned++
		}
	}
	if assigned != 200 {
		t.Errorf("%d rows with a category, want 200", assigned)
	}
	if unassigned != 50 {
		t.Errorf("%d rows without a category, want 50", unassigned)
	}
}

func TestClassificationMemoizedPerDistinctForm(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
		"input.csv": "Description,Amount\n" +
			"STORE ALPHA,-1.00\n" +
			"STORE ALPHA,-2.00\n" +
			"STORE ALPHA,-3.00\n" +
			"STORE BETA,-4.00\n",
	}

	cl := &fixedClassifier{category: "Food"}
	runPipeline(t, files, cl, nil)

	if cl.calls != 2 {
		t.Errorf("classifier invoked %d times, want 2 (one per distinct form)", cl.calls)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
		"input.csv": "Description,Amount\n" +
			"STORE ALPHA,-1.00\n" +
			"STORE BETA,2.00\n",
	}

	rec := &memRecorder{}
	cl := &fixedClassifier{category: "Food"}
	state := runPipeline(t, files, cl, rec)

	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.runs))
	}
	run := rec.runs[0]
	if run.Status != runlog.StatusSuccess {
		t.Errorf("Status = %q, want %q", run.Status, runlog.StatusSuccess)
	}
	if run.TransactionCount != 2 || run.DistinctCount != 2 {
		t.Errorf("counts = %d/%d, want 2/2", run.TransactionCount, run.DistinctCount)
	}
	if run.RunID != state.RunID {
		t.Errorf("recorded RunID %q != state RunID %q", run.RunID, state.RunID)
	}
	if got := rec.summaries[state.RunID]; len(got) != 2 {
		t.Errorf("recorded %d summary rows, want 2", len(got))
	}
}

func TestRunRecordsFailure(t *testing.T) {
	// Ledger input missing: the run fails but is still recorded.
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
	}

	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     filepath.Join(t.TempDir(), "out.csv"),
	}
	rec := &memRecorder{}
	p := pipeline.NewSummaryPipeline(&fixedClassifier{category: "Food"}, memFetch(files), nil)

	err := pipeline.Run(context.Background(), p, state, rec)
	if err == nil {
		t.Fatal("expected run to fail on missing ledger")
	}
	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.runs))
	}
	if rec.runs[0].Status != runlog.StatusFailed {
		t.Errorf("Status = %q, want %q", rec.runs[0].Status, runlog.StatusFailed)
	}
	if rec.runs[0].ErrorMessage == "" {
		t.Error("expected error message on failed run record")
	}
	if len(rec.summaries) != 0 {
		t.Errorf("failed run must not record summary rows, got %d", len(rec.summaries))
	}
}

func TestEmptyVocabularyIsFatal(t *testing.T) {
	files := map[string]string{
		"categories.txt": "not a valid line\n",
		"input.csv":      "Description,Amount\nX,-1.00\n",
	}

	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     filepath.Join(t.TempDir(), "out.csv"),
	}
	cl := &fixedClassifier{category: "Food"}
	p := pipeline.NewSummaryPipeline(cl, memFetch(files), nil)

	if err := pipeline.Run(context.Background(), p, state, nil); err == nil {
		t.Fatal("expected failure for empty vocabulary")
	}
	if cl.calls != 0 {
		t.Errorf("classifier invoked %d times before fatal config error, want 0", cl.calls)
	}
}

func TestPublishUploadsArtifact(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
		"input.csv":      "Description,Amount\nSTORE ALPHA,-1.00\n",
	}

	var publishedURI string
	var published []byte
	publish := func(ctx context.Context, uri string, data []byte) error {
		publishedURI = uri
		published = append([]byte(nil), data...)
		return nil
	}

	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     filepath.Join(t.TempDir(), "out.csv"),
		PublishURI:     "gs://bucket/summaries/out.csv",
	}
	p := pipeline.NewSummaryPipeline(&fixedClassifier{category: "Food"}, memFetch(files), publish)

	if err := pipeline.Run(context.Background(), p, state, nil); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	if publishedURI != "gs://bucket/summaries/out.csv" {
		t.Errorf("published to %q, want the configured URI", publishedURI)
	}
	local, err := os.ReadFile(state.OutputPath)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(published) != string(local) {
		t.Error("published bytes differ from the local artifact")
	}
}

func TestPublishFailureDoesNotFailRun(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
		"input.csv":      "Description,Amount\nSTORE ALPHA,-1.00\n",
	}

	publish := func(ctx context.Context, uri string, data []byte) error {
		return fmt.Errorf("upload refused")
	}

	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     filepath.Join(t.TempDir(), "out.csv"),
		PublishURI:     "gs://bucket/summaries/out.csv",
	}
	rec := &memRecorder{}
	p := pipeline.NewSummaryPipeline(&fixedClassifier{category: "Food"}, memFetch(files), publish)

	if err := pipeline.Run(context.Background(), p, state, rec); err != nil {
		t.Fatalf("publish failure must not fail the run, got: %v", err)
	}
	if _, err := os.Stat(state.OutputPath); err != nil {
		t.Errorf("artifact should exist despite publish failure: %v", err)
	}
	if len(rec.runs) != 1 || rec.runs[0].Status != runlog.StatusSuccess {
		t.Errorf("run should be recorded as success despite publish failure, got %+v", rec.runs)
	}
}

func TestPublishSkippedWithoutURI(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
		"input.csv":      "Description,Amount\nSTORE ALPHA,-1.00\n",
	}

	calls := 0
	publish := func(ctx context.Context, uri string, data []byte) error {
		calls++
		return nil
	}

	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     filepath.Join(t.TempDir(), "out.csv"),
	}
	p := pipeline.NewSummaryPipeline(&fixedClassifier{category: "Food"}, memFetch(files), publish)

	if err := pipeline.Run(context.Background(), p, state, nil); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("publisher invoked %d times without a publish URI, want 0", calls)
	}
}

func TestNoPartialArtifactOnFailure(t *testing.T) {
	files := map[string]string{
		"categories.txt": "Food,Expense\n",
	}
	out := filepath.Join(t.TempDir(), "out.csv")
	state := &pipeline.State{
		VocabularyPath: "categories.txt",
		LedgerPath:     "input.csv",
		OutputPath:     out,
	}
	p := pipeline.NewSummaryPipeline(&fixedClassifier{category: "Food"}, memFetch(files), nil)

	if err := pipeline.Run(context.Background(), p, state, nil); err == nil {
		t.Fatal("expected run to fail")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("failed run must not write the artifact; stat err = %v", err)
	}
}
