// Command ingest runs the fraud detection pipeline over a CSV file from
// the command line, without the HTTP server. Progress, completion, and
// failure events are written to stdout as JSON lines.
//
// Usage:
//
//	go run ./cmd/ingest -file transactions.csv
//	go run ./cmd/ingest -file transactions.csv -by batch-job
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mbd888/fraudsight/internal/analysis"
	"github.com/mbd888/fraudsight/internal/config"
	"github.com/mbd888/fraudsight/internal/ingest"
	"github.com/mbd888/fraudsight/internal/insights"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/scoring"
	"github.com/mbd888/fraudsight/internal/storage"
)

func main() {
	var (
		filePath   = flag.String("file", "", "path to the CSV file to ingest (required)")
		ingestedBy = flag.String("by", "cli", "operator recorded on the ingest session")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: ingest -file <transactions.csv> [-by <operator>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, "text")
	ctx := logging.WithLogger(context.Background(), logger)

	var (
		store        storage.Store
		insightStore insights.Store
	)
	if cfg.DatabaseURL != "" {
		pg, err := storage.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = pg.Close() }()
		store = pg
		insightStore = insights.NewPostgresStore(pg.DB())
	} else {
		logger.Warn("DATABASE_URL not set, results will not be persisted")
		store = storage.NewMemory()
		insightStore = insights.NewMemoryStore()
	}

	var primary analysis.Reasoner
	if cfg.GeminiAPIKey != "" {
		reasoner, err := analysis.NewGeminiReasoner(ctx, cfg.GeminiAPIKey, cfg.ReasonerModel)
		if err != nil {
			logger.Warn("gemini unavailable, using heuristic explanations", "error", err)
		} else {
			primary = reasoner
		}
	}
	dispatcher := analysis.NewDispatcher(primary, cfg.ReasonerMaxChars)
	engine := scoring.NewEngine(scoring.NewRulePredictor(cfg.FraudAmountThreshold))

	pipeline := ingest.New(store, engine, dispatcher, nil, ingest.Options{
		ProgressInterval: cfg.ProgressInterval,
		MaxReportErrors:  cfg.MaxReportErrors,
	})

	f, err := os.Open(*filePath)
	if err != nil {
		logger.Error("failed to open file", "file", *filePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		logger.Error("failed to stat file", "file", *filePath, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	sink := ingest.SinkFunc(func(_ context.Context, event interface{}) error {
		return enc.Encode(event)
	})

	meta := ingest.Meta{
		Source:     filepath.Base(*filePath),
		IngestedBy: *ingestedBy,
		FileSize:   info.Size(),
	}

	sess, err := pipeline.Run(ctx, f, meta, sink)
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	// A completed run ends with the daily digest, same as an API upload.
	gen := insights.NewGenerator(store.Transactions(), store.Profiles(), insightStore)
	if _, err := gen.Generate(ctx, time.Now().UTC()); err != nil {
		logger.Warn("daily insight generation failed", "error", err)
	}

	logger.Info("ingestion complete",
		"session_id", sess.ID,
		"processed", sess.ProcessedRows,
		"frauds", sess.FraudDetected,
		"errors", sess.ErrorCount,
	)
}
