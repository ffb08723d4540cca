package worker

import (
	"context"
	"time"

	"github.com/ppiankov/qidlink/internal/model"
)

// RowResolver defines the interface for resolving a single record
type RowResolver interface {
	Resolve(ctx context.Context, rec model.Record) model.Outcome
}

// RowJob represents the resolution of one record
type RowJob struct {
	Record   model.Record
	Resolver RowResolver
	OnResult func(*RowResult)
}

// Execute executes the row job
func (j *RowJob) Execute(ctx context.Context) Result {
	start := time.Now()
	outcome := j.Resolver.Resolve(ctx, j.Record)

	result := &RowResult{
		Index:   j.Record.Index,
		Record:  j.Record,
		Outcome: outcome,
		Elapsed: time.Since(start),
	}
	// An outcome produced while the batch was being cancelled is not trusted.
	if err := ctx.Err(); err != nil {
		result.Error = err
	}

	if j.OnResult != nil {
		j.OnResult(result)
	}
	return result
}

// RowResult represents the result of a row job
type RowResult struct {
	Index   int
	Record  model.Record
	Outcome model.Outcome
	Elapsed time.Duration
	Error   error
}

// Position returns the record index
func (r *RowResult) Position() int {
	return r.Index
}

// GetError returns the error from the row result
func (r *RowResult) GetError() error {
	return r.Error
}

// BatchProcessor resolves many records, sequentially or on a bounded pool
type BatchProcessor struct {
	resolver    RowResolver
	concurrency int
	onResult    func(*RowResult)
}

// NewBatchProcessor creates a new batch processor. onResult, if set, is
// called once per finished row and must be safe for concurrent use.
func NewBatchProcessor(resolver RowResolver, concurrency int, onResult func(*RowResult)) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		resolver:    resolver,
		concurrency: concurrency,
		onResult:    onResult,
	}
}

// ProcessRecords resolves records and returns results ordered by record
// index. After cancellation no new record is started; rows that never ran
// are absent from the result.
func (b *BatchProcessor) ProcessRecords(ctx context.Context, records []model.Record) []*RowResult {
	if len(records) == 0 {
		return []*RowResult{}
	}

	if b.concurrency == 1 {
		return b.processSequential(ctx, records)
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, rec := range records {
		job := &RowJob{
			Record:   rec,
			Resolver: b.resolver,
			OnResult: b.onResult,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	rowResults := make([]*RowResult, len(results))
	for i, result := range results {
		rowResults[i] = result.(*RowResult)
	}

	return rowResults
}

func (b *BatchProcessor) processSequential(ctx context.Context, records []model.Record) []*RowResult {
	results := make([]*RowResult, 0, len(records))
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		job := &RowJob{
			Record:   rec,
			Resolver: b.resolver,
			OnResult: b.onResult,
		}
		results = append(results, job.Execute(ctx).(*RowResult))
	}
	return results
}
