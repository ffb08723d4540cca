package model

// Candidate is a knowledge-base entity proposed by the search endpoint
type Candidate struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// EntityDetail holds the parts of an entity record the scorer looks at
type EntityDetail struct {
	ID        string              `json:"id"`
	Sitelinks map[string]string   `json:"sitelinks,omitempty"` // site code -> page title
	Aliases   map[string][]string `json:"aliases,omitempty"`   // language -> alias values
}

// HasSitelink reports whether the entity links to a page on the given site
func (d *EntityDetail) HasSitelink(site string) bool {
	if d == nil || d.Sitelinks == nil {
		return false
	}
	_, ok := d.Sitelinks[site]
	return ok
}

// AliasesFor returns the aliases recorded for a language
func (d *EntityDetail) AliasesFor(lang string) []string {
	if d == nil || d.Aliases == nil {
		return nil
	}
	return d.Aliases[lang]
}

// ScoredCandidate is a candidate with its derived confidence.
// Confidence is recomputed on every run and never persisted as input.
type ScoredCandidate struct {
	ID          string   `json:"qid"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Signals     []Signal `json:"signals,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Signal is one transparent contribution to a candidate's confidence
type Signal struct {
	Type        SignalType             `json:"type"`
	Points      int                    `json:"points"` // hundredths of confidence
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a scoring contribution
type SignalType string

const (
	SignalLabelMatch         SignalType = "label_match"         // exact/substring/token tier
	SignalDescriptionContext SignalType = "description_context" // context tokens found in description
	SignalCanonicalLink      SignalType = "canonical_link"      // default-language sitelink present
	SignalClamp              SignalType = "clamp"               // sum capped at 1.0
)
