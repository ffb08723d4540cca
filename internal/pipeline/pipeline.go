// Package pipeline drives the resolver over a whole table and merges each
// outcome back into its row.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/qidlink/internal/llm"
	"github.com/ppiankov/qidlink/internal/metrics"
	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/worker"
)

// Options configures a Driver
type Options struct {
	Workers  int          // 1 resolves strictly in order
	Reviewer llm.Reviewer // optional review hints for unresolved rows
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	RunID    string
}

// Driver orchestrates a batch run
type Driver struct {
	resolver worker.RowResolver
	reviewer llm.Reviewer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	workers  int
	runID    string
}

// NewDriver creates a driver around a row resolver
func NewDriver(resolver worker.RowResolver, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RunID != "" {
		logger = logger.With(zap.String("run_id", opts.RunID))
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Driver{
		resolver: resolver,
		reviewer: opts.Reviewer,
		metrics:  opts.Metrics,
		logger:   logger,
		workers:  workers,
		runID:    opts.RunID,
	}
}

// Summary counts outcomes for a run
type Summary struct {
	Total        int
	Accepted     int
	Unresolved   int
	Skipped      int
	NotProcessed int // rows left untouched by cancellation
	Reviewed     int
}

// BatchResult is the merged output of a run, one row per input record in input order
type BatchResult struct {
	RunID    string
	Rows     []model.Record
	Outcomes []model.Outcome
	Summary  Summary
	Elapsed  time.Duration
}

// OutputColumns lists the columns this driver appends to the input header
func (d *Driver) OutputColumns() []string {
	cols := append([]string(nil), model.ResultFields...)
	if d.reviewer != nil {
		cols = append(cols, model.FieldReview)
	}
	return cols
}

// Run resolves every record and merges the outcomes. On cancellation it
// returns the partial result together with the context error; rows that
// were not resolved pass through verbatim.
func (d *Driver) Run(ctx context.Context, records []model.Record) (*BatchResult, error) {
	start := time.Now()
	d.logger.Info("batch started",
		zap.Int("rows", len(records)),
		zap.Int("workers", d.workers))

	processor := worker.NewBatchProcessor(d.resolver, d.workers, d.observe)
	results := processor.ProcessRecords(ctx, records)

	byIndex := make(map[int]*worker.RowResult, len(results))
	for _, res := range results {
		if res.GetError() == nil {
			byIndex[res.Index] = res
		}
	}

	batch := &BatchResult{
		RunID:    d.runID,
		Rows:     make([]model.Record, len(records)),
		Outcomes: make([]model.Outcome, len(records)),
		Summary:  Summary{Total: len(records)},
	}

	for i, rec := range records {
		res, ok := byIndex[rec.Index]
		if !ok {
			batch.Rows[i] = rec
			batch.Outcomes[i] = model.Skipped("")
			batch.Summary.NotProcessed++
			continue
		}

		batch.Outcomes[i] = res.Outcome
		batch.Rows[i] = Merge(rec, res.Outcome)

		switch res.Outcome.Kind {
		case model.OutcomeAccepted:
			batch.Summary.Accepted++
		case model.OutcomeUnresolved:
			batch.Summary.Unresolved++
			if d.review(ctx, rec, res.Outcome, &batch.Rows[i]) {
				batch.Summary.Reviewed++
			}
		default:
			batch.Summary.Skipped++
		}
	}

	batch.Elapsed = time.Since(start)
	d.logger.Info("batch finished",
		zap.Int("accepted", batch.Summary.Accepted),
		zap.Int("unresolved", batch.Summary.Unresolved),
		zap.Int("skipped", batch.Summary.Skipped),
		zap.Int("not_processed", batch.Summary.NotProcessed),
		zap.Duration("elapsed", batch.Elapsed))

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

// observe logs and counts one finished row; called concurrently by workers
func (d *Driver) observe(res *worker.RowResult) {
	if res.GetError() != nil {
		return
	}
	d.metrics.ObserveRow(res.Outcome, res.Elapsed)

	out := res.Outcome
	fields := []zap.Field{
		zap.Int("row", res.Index),
		zap.String("outcome", out.Kind.String()),
	}
	switch out.Kind {
	case model.OutcomeAccepted:
		d.logger.Info("row resolved", append(fields,
			zap.String("query", out.Query),
			zap.String("qid", out.Best.ID),
			zap.Float64("confidence", out.Best.Confidence),
			zap.Int("accepted", len(out.Candidates)),
			zap.Duration("elapsed", res.Elapsed))...)
	case model.OutcomeUnresolved:
		best := 0.0
		if len(out.Candidates) > 0 {
			best = out.Candidates[0].Confidence
		}
		d.logger.Info("row unresolved", append(fields,
			zap.String("query", out.Query),
			zap.String("reason", out.Reason),
			zap.Float64("best_confidence", best),
			zap.Duration("elapsed", res.Elapsed))...)
	default:
		d.logger.Debug("row skipped", append(fields, zap.String("reason", out.Reason))...)
	}
}

// review asks the reviewer for a hint on an unresolved row with candidates.
// The hint never changes the identifier or the confidence.
func (d *Driver) review(ctx context.Context, rec model.Record, out model.Outcome, row *model.Record) bool {
	if d.reviewer == nil || len(out.Candidates) == 0 || ctx.Err() != nil {
		return false
	}

	var hints []string
	for _, field := range []string{model.FieldGeoPath, model.FieldTimePath, model.FieldCategory} {
		if v := strings.TrimSpace(rec.Get(field)); v != "" {
			hints = append(hints, v)
		}
	}

	resp, err := d.reviewer.Review(ctx, llm.ReviewRequest{
		Query:      out.Query,
		Context:    hints,
		Candidates: out.Candidates,
	})
	if err != nil {
		d.logger.Warn("review hint failed",
			zap.Int("row", rec.Index),
			zap.String("provider", d.reviewer.Name()),
			zap.Error(err))
		return false
	}

	row.Fields[model.FieldReview] = resp.Hint
	return true
}
