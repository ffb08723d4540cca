package model

import "strings"

// Column names read from and written to taxonomy files
const (
	FieldWord      = "word"
	FieldWikiLabel = "wiki_label"
	FieldGeoPath   = "geo_path"
	FieldTimePath  = "time_path"
	FieldCategory  = "category"
	FieldWikiQID   = "wiki_qid"

	FieldConfidence  = "wiki_qid_confidence"
	FieldCandidates  = "wiki_qid_candidates"
	FieldDescription = "wiki_description"
	FieldAliases     = "wikidata_aliases"
	FieldReview      = "wiki_qid_review"
)

// PendingMarker is the wiki_qid value that asks for resolution
const PendingMarker = "TBD"

// ResultFields lists the columns appended to every output row, in order
var ResultFields = []string{
	FieldWikiQID,
	FieldConfidence,
	FieldCandidates,
	FieldDescription,
	FieldAliases,
}

// ResolutionState is the parsed form of the wiki_qid column
type ResolutionState int

const (
	StateUnset    ResolutionState = iota // empty wiki_qid
	StatePending                         // explicit request for resolution
	StateResolved                        // holds an identifier already
)

func (s ResolutionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	default:
		return "unset"
	}
}

// ParseResolutionState maps a raw wiki_qid value to its state.
// The pending marker is the only place the sentinel string is interpreted.
// The value is not trimmed: any other non-empty value, whitespace included,
// is an existing resolution and is left alone.
func ParseResolutionState(raw string) ResolutionState {
	switch raw {
	case "":
		return StateUnset
	case PendingMarker:
		return StatePending
	default:
		return StateResolved
	}
}

// Record is one taxonomy row. Fields holds every column of the input, so
// columns this tool does not understand pass through untouched.
type Record struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"fields"`
}

// NewRecord creates a record with a copy of the given fields
func NewRecord(index int, fields map[string]string) Record {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Record{Index: index, Fields: copied}
}

// Get returns a field value, or "" if the column is missing
func (r Record) Get(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// State returns the resolution state of the record
func (r Record) State() ResolutionState {
	return ParseResolutionState(r.Get(FieldWikiQID))
}

// QueryLabel returns wiki_label when set, otherwise word
func (r Record) QueryLabel() string {
	if label := strings.TrimSpace(r.Get(FieldWikiLabel)); label != "" {
		return label
	}
	return strings.TrimSpace(r.Get(FieldWord))
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	return NewRecord(r.Index, r.Fields)
}
