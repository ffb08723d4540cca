package model

import "testing"

func TestParseResolutionState(t *testing.T) {
	tests := []struct {
		raw  string
		want ResolutionState
	}{
		{"", StateUnset},
		{"   ", StateResolved},
		{"TBD", StatePending},
		{" TBD ", StateResolved},
		{"Q42", StateResolved},
		{"tbd", StateResolved},
	}

	for _, tt := range tests {
		if got := ParseResolutionState(tt.raw); got != tt.want {
			t.Errorf("ParseResolutionState(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestRecord_QueryLabel(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"wiki_label wins", map[string]string{"word": "berlin", "wiki_label": "Berlin"}, "Berlin"},
		{"empty wiki_label falls back", map[string]string{"word": "berlin", "wiki_label": ""}, "berlin"},
		{"missing wiki_label falls back", map[string]string{"word": "berlin"}, "berlin"},
		{"nothing to query", map[string]string{"word": ""}, ""},
		{"nil fields", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(0, tt.fields)
			if got := r.QueryLabel(); got != tt.want {
				t.Errorf("QueryLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := NewRecord(3, map[string]string{"word": "Berlin"})
	c := r.Clone()
	c.Fields["word"] = "Paris"

	if r.Get("word") != "Berlin" {
		t.Errorf("clone mutated original: %q", r.Get("word"))
	}
	if c.Index != 3 {
		t.Errorf("expected index 3, got %d", c.Index)
	}
}

func TestEntityDetail_HasSitelink(t *testing.T) {
	var nilDetail *EntityDetail
	if nilDetail.HasSitelink("enwiki") {
		t.Error("nil detail should not have sitelinks")
	}

	d := &EntityDetail{ID: "Q64", Sitelinks: map[string]string{"enwiki": "Berlin"}}
	if !d.HasSitelink("enwiki") {
		t.Error("expected enwiki sitelink")
	}
	if d.HasSitelink("dewiki") {
		t.Error("unexpected dewiki sitelink")
	}
}

func TestAccepted_BestIsFirst(t *testing.T) {
	out := Accepted("Berlin", []ScoredCandidate{
		{ID: "Q64", Confidence: 0.9},
		{ID: "Q821244", Confidence: 0.85},
	})
	if out.Kind != OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", out.Kind)
	}
	if out.Best == nil || out.Best.ID != "Q64" {
		t.Errorf("expected best Q64, got %+v", out.Best)
	}
}

func TestUnresolved_NeverNil(t *testing.T) {
	out := Unresolved("Berlin", ReasonNoCandidates, nil)
	if out.Candidates == nil {
		t.Error("expected empty, non-nil candidate list")
	}
	if out.Best != nil {
		t.Error("unresolved outcome must not carry a best candidate")
	}
}
