package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/hsbakhtar202/qbk/internal/ledger"
	"github.com/hsbakhtar202/qbk/internal/logger"
	"github.com/hsbakhtar202/qbk/internal/normalize"
	"github.com/hsbakhtar202/qbk/internal/vocab"
)

// LoadVocabularyStep reads and parses the category vocabulary.
type LoadVocabularyStep struct {
	Fetch FetchFunc
}

func (s *LoadVocabularyStep) Execute(ctx context.Context, state *State) error {
	data, err := s.Fetch(ctx, state.VocabularyPath)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	v, err := vocab.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	if v.Len() == 0 {
		return fmt.Errorf("load vocabulary: no categories in %q", state.VocabularyPath)
	}
	state.Vocabulary = v
	return nil
}

// LoadLedgerStep reads and parses the transaction ledger.
type LoadLedgerStep struct {
	Fetch FetchFunc
}

func (s *LoadLedgerStep) Execute(ctx context.Context, state *State) error {
	data, err := s.Fetch(ctx, state.LedgerPath)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	txs, err := ledger.ReadTransactions(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	state.Transactions = txs
	return nil
}

// NormalizeStep derives the normalized form of every description.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	state.Normalized = make([]string, len(state.Transactions))
	for i, tx := range state.Transactions {
		state.Normalized[i] = normalize.Normalize(tx.Description)
	}
	return nil
}

// SelectDistinctStep picks the distinct normalized forms in first-seen
// order, capped at MaxDistinctClassifications. Forms past the cap are
// left unselected and end up with an empty category.
type SelectDistinctStep struct{}

func (s *SelectDistinctStep) Execute(ctx context.Context, state *State) error {
	seen := make(map[string]bool, len(state.Normalized))
	total := 0
	for i, n := range state.Normalized {
		if seen[n] {
			continue
		}
		seen[n] = true
		total++
		if len(state.Distinct) < MaxDistinctClassifications {
			state.Distinct = append(state.Distinct, DistinctForm{
				Normalized: n,
				Original:   state.Transactions[i].Description,
			})
		}
	}

	if total > MaxDistinctClassifications {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("distinct_forms", total).
			Int("cap", MaxDistinctClassifications).
			Msg("classification budget exceeded; remaining forms stay uncategorized")
	}
	return nil
}

// ClassifyStep classifies each selected form once. The assignment is
// memoized per normalized form, never recomputed per row.
type ClassifyStep struct {
	Classifier Classifier
}

func (s *ClassifyStep) Execute(ctx context.Context, state *State) error {
	state.Assignments = make(map[string]string, len(state.Distinct))
	for _, form := range state.Distinct {
		state.Assignments[form.Normalized] = s.Classifier.Classify(
			ctx, form.Original, form.Normalized, state.Vocabulary,
		)
	}
	return nil
}

// SummarizeStep broadcasts assignments back onto every row, splits
// amounts into debit/credit, and groups into summary rows.
type SummarizeStep struct{}

func (s *SummarizeStep) Execute(ctx context.Context, state *State) error {
	state.Summary = summarize(state.Transactions, state.Normalized, state.Assignments)
	return nil
}

// WriteArtifactStep encodes the summary and writes it to the output
// path. The artifact is encoded in full before anything touches disk,
// so a failed run never leaves a partial file behind.
type WriteArtifactStep struct{}

func (s *WriteArtifactStep) Execute(ctx context.Context, state *State) error {
	var buf bytes.Buffer
	if err := ledger.WriteSummary(&buf, state.Summary); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	state.Artifact = buf.Bytes()

	if err := os.WriteFile(state.OutputPath, state.Artifact, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// PublishArtifactStep uploads the artifact to the optional publish
// URI. By this point the artifact is already on disk, so publish
// problems are logged warnings rather than run failures: the exit
// status reflects the artifact, not the optional upload.
type PublishArtifactStep struct {
	Publish PublishFunc
}

func (s *PublishArtifactStep) Execute(ctx context.Context, state *State) error {
	if state.PublishURI == "" {
		return nil
	}
	log := logger.FromContext(ctx)
	if s.Publish == nil {
		log.Warn().Str("uri", state.PublishURI).Msg("no publisher configured; summary artifact not published")
		return nil
	}
	if err := s.Publish(ctx, state.PublishURI, state.Artifact); err != nil {
		log.Warn().Err(err).Str("uri", state.PublishURI).Msg("failed to publish summary artifact")
		return nil
	}
	log.Info().Str("uri", state.PublishURI).Msg("summary artifact published")
	return nil
}
