// Package resolve decides, for one taxonomy record, which knowledge-base
// entity it refers to, or that none can be chosen with enough confidence.
package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/rank"
	"github.com/ppiankov/qidlink/internal/score"
)

// DefaultThreshold is the minimum accepted confidence
const DefaultThreshold = 0.80

// DefaultFallbackSize is the length of the diagnostic list for unresolved rows
const DefaultFallbackSize = 3

// CandidateSource returns ordered search hits for a free-text query.
// An error and an empty result are treated the same way.
type CandidateSource interface {
	Search(ctx context.Context, query string) ([]model.Candidate, error)
}

// Options configures a Resolver
type Options struct {
	Threshold    float64
	FallbackSize int
	Logger       *zap.Logger
}

// Resolver resolves one record at a time. It holds no per-record state and
// is safe for concurrent use when its collaborators are.
type Resolver struct {
	source       CandidateSource
	scorer       *score.Scorer
	threshold    float64
	fallbackSize int
	logger       *zap.Logger
}

// New creates a resolver
func New(source CandidateSource, scorer *score.Scorer, opts Options) *Resolver {
	if opts.FallbackSize <= 0 {
		opts.FallbackSize = DefaultFallbackSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		source:       source,
		scorer:       scorer,
		threshold:    opts.Threshold,
		fallbackSize: opts.FallbackSize,
		logger:       opts.Logger,
	}
}

// Threshold returns the acceptance threshold in use
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve produces the outcome for a record. It never returns an error:
// lookup failures degrade to an unresolved outcome.
func (r *Resolver) Resolve(ctx context.Context, rec model.Record) model.Outcome {
	if rec.State() == model.StateResolved {
		return model.Skipped(model.ReasonAlreadyResolved)
	}

	query := score.NewQuery(rec)
	if query.Label == "" {
		return model.Skipped(model.ReasonNoLabel)
	}

	candidates, err := r.source.Search(ctx, query.Label)
	if err != nil {
		r.logger.Debug("candidate search failed, treating as no candidates",
			zap.Int("row", rec.Index),
			zap.String("query", query.Label),
			zap.Error(err))
		candidates = nil
	}
	if len(candidates) == 0 {
		return model.Unresolved(query.Label, model.ReasonNoCandidates, nil)
	}

	scored := make([]model.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, r.scorer.Score(ctx, c, query))
	}

	accepted, all := rank.Rank(scored, r.threshold)
	if len(accepted) > 0 {
		r.logger.Debug("candidate accepted",
			zap.Int("row", rec.Index),
			zap.String("query", query.Label),
			zap.String("qid", accepted[0].ID),
			zap.Float64("confidence", accepted[0].Confidence),
			zap.Int("accepted", len(accepted)))
		return model.Accepted(query.Label, accepted)
	}

	r.logger.Debug("no candidate met threshold",
		zap.Int("row", rec.Index),
		zap.String("query", query.Label),
		zap.Float64("threshold", r.threshold),
		zap.Float64("best_confidence", all[0].Confidence))
	return model.Unresolved(query.Label, model.ReasonBelowThreshold, rank.Top(all, r.fallbackSize))
}
