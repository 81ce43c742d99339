// Package ingest runs the row-by-row fraud detection pipeline over a CSV
// source: validate, deduplicate, extract features, score, explain, and
// commit, while streaming paced progress events to the consumer.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mbd888/fraudsight/internal/analysis"
	"github.com/mbd888/fraudsight/internal/features"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/scoring"
	"github.com/mbd888/fraudsight/internal/session"
	"github.com/mbd888/fraudsight/internal/storage"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// Options tunes the pipeline's emission pacing and error reporting.
type Options struct {
	// ProgressInterval emits a progress event every N processed rows.
	ProgressInterval int
	// ProgressDelay is the pacing pause after each progress emission.
	ProgressDelay time.Duration
	// MaxReportErrors caps the row errors retained for the final report.
	MaxReportErrors int
}

// DefaultOptions match the dashboard's expected pacing.
func DefaultOptions() Options {
	return Options{
		ProgressInterval: 10,
		ProgressDelay:    50 * time.Millisecond,
		MaxReportErrors:  10,
	}
}

// Alerter receives fraud notifications as rows commit. Optional.
type Alerter interface {
	FraudDetected(t *transaction.Transaction)
}

// Meta describes the ingestion source.
type Meta struct {
	Source     string // file name or stream label
	IngestedBy string
	FileSize   int64
}

// Pipeline is the ingestion orchestrator.
type Pipeline struct {
	store      storage.Store
	extractor  *features.Extractor
	engine     *scoring.Engine
	dispatcher *analysis.Dispatcher
	profiles   *profiles.Service
	alerts     Alerter
	opts       Options
}

// New creates a pipeline. alerts may be nil.
func New(store storage.Store, engine *scoring.Engine, dispatcher *analysis.Dispatcher, alerts Alerter, opts Options) *Pipeline {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultOptions().ProgressInterval
	}
	return &Pipeline{
		store:      store,
		extractor:  features.NewExtractor(store.Transactions()),
		engine:     engine,
		dispatcher: dispatcher,
		profiles:   profiles.NewService(store.Profiles(), store.Transactions()),
		alerts:     alerts,
		opts:       opts,
	}
}

// Run processes the CSV in src and streams events to sink. The returned
// session reflects the terminal state; the error is non-nil when the run
// failed or was abandoned.
func (p *Pipeline) Run(ctx context.Context, src io.Reader, meta Meta, sink Sink) (*session.Session, error) {
	sess := session.New(meta.Source, meta.IngestedBy, meta.FileSize)
	ctx = logging.WithSessionID(ctx, sess.ID)
	log := logging.L(ctx)

	if err := p.store.Sessions().Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return p.fail(ctx, sess, sink, fmt.Sprintf("unreadable CSV: %v", err))
	}
	if len(records) == 0 {
		return p.fail(ctx, sess, sink, "empty file")
	}

	header := records[0]
	if missing := transaction.MissingColumns(header); len(missing) > 0 {
		return p.fail(ctx, sess, sink, "missing required columns: "+strings.Join(missing, ", "))
	}

	rows := records[1:]
	sess.TotalRows = len(rows)
	log.Info("ingestion started", "source", meta.Source, "rows", sess.TotalRows)

	runStart := time.Now()
	for i, record := range rows {
		if ctx.Err() != nil {
			return p.abandon(ctx, sess, "processing cancelled by consumer")
		}

		p.processRow(ctx, sess, header, record, i+2) // 1-based, after header

		// Emission cadence follows rows consumed; the processed counter
		// reports only committed rows.
		consumed := i + 1
		last := consumed == len(rows)
		if consumed%p.opts.ProgressInterval == 0 || last {
			if err := p.store.Sessions().Update(ctx, sess); err != nil {
				log.Warn("session checkpoint failed", "error", err)
			}
			event := &ProgressEvent{
				Progress:           float64(consumed) / float64(sess.TotalRows) * 100,
				Processed:          sess.ProcessedRows,
				Frauds:             sess.FraudDetected,
				Analyses:           sess.ExplanationsGenerated,
				CurrentTransaction: rowID(header, record),
				ErrorsCount:        sess.ErrorCount,
			}
			if err := sink.Emit(ctx, event); err != nil {
				return p.abandon(ctx, sess, "processing cancelled by consumer")
			}
			if p.opts.ProgressDelay > 0 && !last {
				select {
				case <-ctx.Done():
					return p.abandon(ctx, sess, "processing cancelled by consumer")
				case <-time.After(p.opts.ProgressDelay):
				}
			}
		}
	}

	now := time.Now().UTC()
	if err := sess.Complete(now); err != nil {
		return sess, err
	}
	if err := p.store.Sessions().Update(ctx, sess); err != nil {
		log.Error("final session update failed", "error", err)
	}
	ingestDuration.Observe(time.Since(runStart).Seconds())
	log.Info("ingestion completed",
		"committed", sess.ProcessedRows, "frauds", sess.FraudDetected,
		"duplicates", sess.DuplicatesSkipped, "errors", sess.ErrorCount)

	final := &CompletedEvent{
		Completed: true,
		Total:     sess.ProcessedRows,
		Frauds:    sess.FraudDetected,
		Analyses:  sess.ExplanationsGenerated,
		Errors:    sess.Errors,
	}
	if final.Errors == nil {
		final.Errors = []string{}
	}
	if err := sink.Emit(ctx, final); err != nil {
		log.Warn("consumer gone before completion event", "error", err)
	}
	return sess, nil
}

// processRow runs one row through the full pipeline. Row-level problems are
// recorded on the session; only the counters change on failure. Every row
// ends in exactly one bucket: committed, duplicate, or error, so
// processed + duplicatesSkipped + errorCount always sums to the rows read.
func (p *Pipeline) processRow(ctx context.Context, sess *session.Session, header, record []string, line int) {
	log := logging.L(ctx)

	txn, err := transaction.ParseRow(rowMap(header, record), sess.IngestedBy, time.Now().UTC())
	if err != nil {
		rowsProcessed.WithLabelValues("invalid").Inc()
		p.recordError(sess, fmt.Sprintf("line %d: %v", line, err))
		log.Warn("row rejected", "line", line, "error", err, "row", strings.Join(record, ","))
		return
	}

	exists, err := p.store.Transactions().Exists(ctx, txn.ID)
	if err != nil {
		rowsProcessed.WithLabelValues("error").Inc()
		p.recordError(sess, fmt.Sprintf("line %d: duplicate check failed: %v", line, err))
		return
	}
	if exists {
		rowsProcessed.WithLabelValues("duplicate").Inc()
		sess.DuplicatesSkipped++
		log.Debug("duplicate skipped", "transaction_id", txn.ID)
		return
	}

	vector := p.extractor.Extract(ctx, txn, txn.IngestedAt)
	verdict := p.engine.Score(ctx, vector)

	scoredAt := time.Now().UTC()
	txn.IsFraud = verdict.IsFraud
	txn.RiskScore = verdict.RiskScore
	txn.Confidence = verdict.Confidence
	txn.FeatureImportance = verdict.FeatureImportance
	txn.ScoringError = verdict.Error
	txn.ScoredAt = &scoredAt

	if txn.IsFraud {
		expl := p.dispatcher.ExplainTransaction(ctx, txn)
		explainedAt := expl.AnalyzedAt
		txn.Priority = expl.Priority
		txn.RiskFactors = expl.RiskFactors
		txn.Explanation = expl.Explanation
		txn.Recommendations = expl.Recommendations
		txn.ExplainedAt = &explainedAt
	}

	clients, banks, err := p.profiles.Stage(ctx, txn)
	if err != nil {
		// The transaction still commits; the profiles are repairable by a
		// later recompute.
		log.Error("profile staging failed, committing transaction alone",
			"transaction_id", txn.ID, "error", err)
		profileStagingFailures.Inc()
		clients, banks = nil, nil
	}

	if err := p.store.CommitRow(ctx, txn, clients, banks); err != nil {
		if err == transaction.ErrDuplicate {
			rowsProcessed.WithLabelValues("duplicate").Inc()
			sess.DuplicatesSkipped++
			return
		}
		rowsProcessed.WithLabelValues("error").Inc()
		p.recordError(sess, fmt.Sprintf("line %d: commit failed: %v", line, err))
		log.Error("row commit failed", "transaction_id", txn.ID, "error", err)
		return
	}

	rowsProcessed.WithLabelValues("committed").Inc()
	sess.ProcessedRows++
	if txn.IsFraud {
		sess.FraudDetected++
		sess.ExplanationsGenerated++
		if p.alerts != nil {
			p.alerts.FraudDetected(txn)
		}
	}
}

func (p *Pipeline) recordError(sess *session.Session, msg string) {
	sess.ErrorCount++
	if p.opts.MaxReportErrors <= 0 || len(sess.Errors) < p.opts.MaxReportErrors {
		sess.Errors = append(sess.Errors, msg)
	}
}

// fail terminates the run before row processing started.
func (p *Pipeline) fail(ctx context.Context, sess *session.Session, sink Sink, reason string) (*session.Session, error) {
	logging.L(ctx).Error("ingestion failed", "reason", reason)
	_ = sess.Fail(reason, time.Now().UTC())
	if err := p.store.Sessions().Update(ctx, sess); err != nil {
		logging.L(ctx).Error("session failure update failed", "error", err)
	}
	_ = sink.Emit(ctx, &FailedEvent{Error: reason, Completed: true})
	return sess, fmt.Errorf("ingestion failed: %s", reason)
}

// abandon terminates the run when the consumer disappeared; no terminal
// event is emitted because nobody is listening.
func (p *Pipeline) abandon(ctx context.Context, sess *session.Session, reason string) (*session.Session, error) {
	logging.L(ctx).Warn("ingestion abandoned", "reason", reason, "processed", sess.ProcessedRows)
	_ = sess.Fail(reason, time.Now().UTC())
	// The surrounding request context may already be dead.
	if err := p.store.Sessions().Update(context.WithoutCancel(ctx), sess); err != nil {
		logging.L(ctx).Error("session failure update failed", "error", err)
	}
	return sess, fmt.Errorf("ingestion abandoned: %s", reason)
}

func rowMap(header, record []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(record) {
			m[strings.TrimSpace(col)] = record[i]
		}
	}
	return m
}

func rowID(header, record []string) string {
	for i, col := range header {
		if strings.TrimSpace(col) == transaction.ColID && i < len(record) {
			return strings.TrimSpace(record[i])
		}
	}
	return ""
}
