package pipeline

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ppiankov/qidlink/internal/model"
)

// acceptedCandidate is the authoritative candidate shape
type acceptedCandidate struct {
	QID         string  `json:"qid"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// diagnosticCandidate uses distinct keys so the list cannot be mistaken for an accepted one
type diagnosticCandidate struct {
	QID     string  `json:"qid"`
	Label   string  `json:"label"`
	Desc    string  `json:"desc"`
	RawConf float64 `json:"raw_conf"`
}

// Merge applies an outcome to a copy of its record
func Merge(rec model.Record, out model.Outcome) model.Record {
	switch out.Kind {
	case model.OutcomeAccepted:
		merged := rec.Clone()
		best := out.Best
		if best == nil && len(out.Candidates) > 0 {
			best = &out.Candidates[0]
		}
		if best == nil {
			return merged
		}

		accepted := make([]acceptedCandidate, 0, len(out.Candidates))
		for _, c := range out.Candidates {
			accepted = append(accepted, acceptedCandidate{
				QID:         c.ID,
				Label:       c.Label,
				Description: c.Description,
				Confidence:  c.Confidence,
			})
		}
		aliases := best.Aliases
		if aliases == nil {
			aliases = []string{}
		}

		merged.Fields[model.FieldWikiQID] = best.ID
		merged.Fields[model.FieldConfidence] = FormatConfidence(best.Confidence)
		merged.Fields[model.FieldCandidates] = encode(accepted)
		merged.Fields[model.FieldDescription] = best.Description
		merged.Fields[model.FieldAliases] = encode(aliases)
		return merged

	case model.OutcomeUnresolved:
		merged := rec.Clone()
		diagnostic := make([]diagnosticCandidate, 0, len(out.Candidates))
		for _, c := range out.Candidates {
			diagnostic = append(diagnostic, diagnosticCandidate{
				QID:     c.ID,
				Label:   c.Label,
				Desc:    c.Description,
				RawConf: c.Confidence,
			})
		}

		merged.Fields[model.FieldWikiQID] = ""
		merged.Fields[model.FieldConfidence] = ""
		merged.Fields[model.FieldCandidates] = encode(diagnostic)
		merged.Fields[model.FieldDescription] = ""
		merged.Fields[model.FieldAliases] = ""
		return merged

	default:
		return rec
	}
}

// FormatConfidence renders a confidence with the shortest exact representation
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

// encode marshals v as compact JSON without HTML escaping
func encode(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
