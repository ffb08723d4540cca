package model

// OutcomeKind tells the batch driver how to treat a resolved row
type OutcomeKind int

const (
	OutcomeSkipped    OutcomeKind = iota // row passes through verbatim
	OutcomeAccepted                      // a candidate met the threshold
	OutcomeUnresolved                    // nothing met the threshold
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeUnresolved:
		return "unresolved"
	default:
		return "skipped"
	}
}

// Skip reasons
const (
	ReasonAlreadyResolved = "already_resolved"
	ReasonNoLabel         = "no_label"
	ReasonNoCandidates    = "no_candidates"
	ReasonBelowThreshold  = "below_threshold"
)

// Outcome is the result of resolving one record.
//
// Accepted: Best is Candidates[0] and Candidates holds every candidate at or
// above the threshold. Unresolved: Best is nil and Candidates holds the
// non-authoritative diagnostic prefix of the ranking.
type Outcome struct {
	Kind       OutcomeKind       `json:"kind"`
	Reason     string            `json:"reason,omitempty"`
	Query      string            `json:"query,omitempty"`
	Best       *ScoredCandidate  `json:"best,omitempty"`
	Candidates []ScoredCandidate `json:"candidates,omitempty"`
}

// Skipped builds a pass-through outcome
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// Accepted builds an outcome for a non-empty accepted list
func Accepted(query string, accepted []ScoredCandidate) Outcome {
	best := accepted[0]
	return Outcome{
		Kind:       OutcomeAccepted,
		Query:      query,
		Best:       &best,
		Candidates: accepted,
	}
}

// Unresolved builds an outcome carrying a diagnostic list
func Unresolved(query, reason string, top []ScoredCandidate) Outcome {
	if top == nil {
		top = []ScoredCandidate{}
	}
	return Outcome{
		Kind:       OutcomeUnresolved,
		Reason:     reason,
		Query:      query,
		Candidates: top,
	}
}
