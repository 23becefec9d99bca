package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hsbakhtar202/qbk/internal/classify"
	"github.com/hsbakhtar202/qbk/internal/gcs"
	"github.com/hsbakhtar202/qbk/internal/logger"
	"github.com/hsbakhtar202/qbk/internal/pipeline"
	"github.com/hsbakhtar202/qbk/internal/runlog"
)

func main() {
	// Optional .env with GEMINI_API_KEY etc.; a missing file is fine.
	_ = godotenv.Load()

	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runSummarize(log)
	case "runs":
		runHistory(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("qbk - bank ledger categorization and summary")
	fmt.Println("\nUsage:")
	fmt.Println("  qbk <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Categorize a transaction ledger and write the summary")
	fmt.Println("  runs      List recorded runs from BigQuery")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'qbk <command> -h' for more information on a command.")
}

func runSummarize(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	ledgerPath := fs.String("ledger", "input.csv", "Transaction ledger CSV (local path or gs:// URI)")
	vocabPath := fs.String("categories", "categories.txt", "Category vocabulary file (local path or gs:// URI)")
	outPath := fs.String("out", "output_summary.csv", "Output summary CSV path")
	business := fs.String("business", classify.DefaultBusinessType, "Business type used to frame classification")
	publishURI := fs.String("publish", "", "Optional gs:// URI to publish the summary artifact to")
	bqProject := fs.String("bigquery-project", "", "Optional GCP project for run-history recording")
	bqDataset := fs.String("bigquery-dataset", "qbk", "BigQuery dataset for run-history recording")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	classifier := classify.New(classify.NewGeminiOracle(), *business, log)

	var recorder pipeline.Recorder
	if *bqProject != "" {
		rec, err := runlog.NewRecorder(ctx, *bqProject, *bqDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create run-history recorder")
		}
		defer rec.Close()
		if err := rec.EnsureTables(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare run-history tables")
		}
		recorder = rec
	}

	state := &pipeline.State{
		VocabularyPath: *vocabPath,
		LedgerPath:     *ledgerPath,
		OutputPath:     *outPath,
		PublishURI:     *publishURI,
		BusinessType:   *business,
	}

	p := pipeline.NewSummaryPipeline(classifier, pipeline.ReadInput, gcs.Publish)
	if err := pipeline.Run(ctx, p, state, recorder); err != nil {
		log.Fatal().Err(err).Msg("summarization run failed")
	}

	fmt.Printf("Processing complete. The summarized transactions are saved in %q.\n", *outPath)
}

func runHistory(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	bqProject := fs.String("bigquery-project", "", "GCP project holding the run history (required)")
	bqDataset := fs.String("bigquery-dataset", "qbk", "BigQuery dataset holding the run history")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	fs.Parse(os.Args[2:])

	if *bqProject == "" {
		log.Fatal().Msg("Error: -bigquery-project is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	rec, err := runlog.NewRecorder(ctx, *bqProject, *bqDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create run-history recorder")
	}
	defer rec.Close()

	rows, err := rec.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list runs")
	}

	if len(rows) == 0 {
		fmt.Println("No recorded runs.")
		return
	}
	for _, row := range rows {
		fmt.Printf("%s  %s  %-7s  txs=%d distinct=%d classified=%d  %s\n",
			row.RunID,
			row.StartedAt.Format("2006-01-02 15:04:05"),
			row.Status,
			row.TransactionCount,
			row.DistinctCount,
			row.ClassifiedCount,
			row.LedgerURI,
		)
	}
}
