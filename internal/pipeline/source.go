package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/resolve"
	"github.com/ppiankov/qidlink/internal/worker"
)

// PacedSource spaces candidate searches with a shared pacer. Only rows that
// reach the search step consume pacing; skipped rows never search.
type PacedSource struct {
	next  resolve.CandidateSource
	pacer *worker.Pacer
}

// NewPacedSource wraps next. A nil pacer disables pacing.
func NewPacedSource(next resolve.CandidateSource, pacer *worker.Pacer) *PacedSource {
	return &PacedSource{next: next, pacer: pacer}
}

// Search waits for the pacer, then delegates
func (p *PacedSource) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}
	return p.next.Search(ctx, query)
}
