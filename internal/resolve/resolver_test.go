package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/score"
)

type fakeSource struct {
	mu      sync.Mutex
	results map[string][]model.Candidate
	err     error
	queries []string
}

func (f *fakeSource) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type fakeDetails struct {
	mu       sync.Mutex
	enwiki   map[string]bool
	requests []string
}

func (f *fakeDetails) Entity(ctx context.Context, id string) (*model.EntityDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, id)
	d := &model.EntityDetail{ID: id, Sitelinks: map[string]string{}}
	if f.enwiki[id] {
		d.Sitelinks["enwiki"] = id
	}
	return d, nil
}

func newResolver(src *fakeSource, details *fakeDetails, threshold float64) *Resolver {
	scorer := score.NewScorer(details, "enwiki", "en", nil)
	return New(src, scorer, Options{Threshold: threshold})
}

func record(fields map[string]string) model.Record {
	return model.NewRecord(0, fields)
}

func TestResolve_ScenarioA_ExactMatchBelowThreshold(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Berlin": {{ID: "Q64", Label: "Berlin", Description: "capital of a country"}},
	}}
	details := &fakeDetails{enwiki: map[string]bool{"Q64": true}}

	out := newResolver(src, details, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Berlin", "wiki_qid": "TBD", "geo_path": "Germany"}))

	require.Equal(t, model.OutcomeUnresolved, out.Kind)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "Q64", out.Candidates[0].ID)
	assert.Equal(t, 0.65, out.Candidates[0].Confidence)
	assert.Nil(t, out.Best)
}

func TestResolve_ScenarioB_OneContextTokenStillUnresolved(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Berlin": {{ID: "Q64", Label: "Berlin", Description: "capital of Germany"}},
	}}
	details := &fakeDetails{enwiki: map[string]bool{"Q64": true}}

	out := newResolver(src, details, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Berlin", "geo_path": "Germany"}))

	require.Equal(t, model.OutcomeUnresolved, out.Kind)
	assert.Equal(t, 0.70, out.Candidates[0].Confidence)
}

func TestResolve_ScenarioC_TwoContextTokensStillUnresolved(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Berlin": {{ID: "Q64", Label: "Berlin", Description: "capital of Germany in Europe"}},
	}}
	details := &fakeDetails{enwiki: map[string]bool{"Q64": true}}

	out := newResolver(src, details, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Berlin", "geo_path": "Europe Germany"}))

	require.Equal(t, model.OutcomeUnresolved, out.Kind)
	assert.Equal(t, 0.75, out.Candidates[0].Confidence)
}

func TestResolve_ScenarioD_AlreadyResolvedIsSkipped(t *testing.T) {
	src := &fakeSource{}
	details := &fakeDetails{}
	rec := record(map[string]string{"word": "Douglas Adams", "wiki_qid": "Q42"})
	r := newResolver(src, details, DefaultThreshold)

	first := r.Resolve(context.Background(), rec)
	second := r.Resolve(context.Background(), rec)

	assert.Equal(t, model.OutcomeSkipped, first.Kind)
	assert.Equal(t, model.ReasonAlreadyResolved, first.Reason)
	assert.Equal(t, first, second)
	assert.Empty(t, src.queries)
	assert.Equal(t, "Q42", rec.Get("wiki_qid"))
}

func TestResolve_WhitespaceQIDIsAnExistingResolution(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Berlin": {{ID: "Q64", Label: "Berlin"}},
	}}

	out := newResolver(src, &fakeDetails{}, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Berlin", "wiki_qid": "  "}))

	assert.Equal(t, model.OutcomeSkipped, out.Kind)
	assert.Equal(t, model.ReasonAlreadyResolved, out.Reason)
	assert.Empty(t, src.queries)
}

func TestResolve_ScenarioE_NoLabelMakesNoCalls(t *testing.T) {
	src := &fakeSource{}
	details := &fakeDetails{}

	out := newResolver(src, details, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "", "wiki_qid": ""}))

	assert.Equal(t, model.OutcomeSkipped, out.Kind)
	assert.Equal(t, model.ReasonNoLabel, out.Reason)
	assert.Empty(t, src.queries)
	assert.Empty(t, details.requests)
}

func TestResolve_ScenarioF_NoCandidates(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{}}
	details := &fakeDetails{}

	out := newResolver(src, details, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Xyzzy"}))

	require.Equal(t, model.OutcomeUnresolved, out.Kind)
	assert.Equal(t, model.ReasonNoCandidates, out.Reason)
	assert.NotNil(t, out.Candidates)
	assert.Empty(t, out.Candidates)
	assert.Empty(t, details.requests)
}

func TestResolve_SearchFailureIsSoft(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	details := &fakeDetails{}

	out := newResolver(src, details, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Berlin"}))

	assert.Equal(t, model.OutcomeUnresolved, out.Kind)
	assert.Empty(t, out.Candidates)
	assert.Empty(t, details.requests)
}

func TestResolve_WikiLabelTakesPrecedence(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{}}

	newResolver(src, &fakeDetails{}, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "berlin", "wiki_label": "Berlin (city)"}))

	assert.Equal(t, []string{"Berlin (city)"}, src.queries)
}

func TestResolve_AcceptedKeepsEveryCandidateAboveThreshold(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Paris": {
			{ID: "Q167646", Label: "Paris", Description: "Trojan prince"},
			{ID: "Q90", Label: "Paris", Description: "capital city of France, in Europe"},
			{ID: "Q830149", Label: "Paris", Description: "city in Texas, United States"},
		},
	}}
	details := &fakeDetails{enwiki: map[string]bool{"Q167646": true, "Q90": true, "Q830149": true}}

	out := newResolver(src, details, 0.70).Resolve(context.Background(),
		record(map[string]string{"word": "Paris", "geo_path": "Europe France", "category": "city"}))

	require.Equal(t, model.OutcomeAccepted, out.Kind)
	require.NotNil(t, out.Best)
	assert.Equal(t, "Q90", out.Best.ID)
	assert.Equal(t, 0.80, out.Best.Confidence)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, "Q830149", out.Candidates[1].ID)
	assert.Equal(t, 0.70, out.Candidates[1].Confidence)
	assert.Len(t, details.requests, 3, "one detail lookup per candidate")
}

func TestResolve_ThresholdBoundaryAccepted(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Berlin": {{ID: "Q64", Label: "Berlin", Description: "capital of Germany, Europe, Earth"}},
	}}
	details := &fakeDetails{enwiki: map[string]bool{"Q64": true}}

	out := newResolver(src, details, 0.80).Resolve(context.Background(),
		record(map[string]string{"word": "Berlin", "geo_path": "Earth Europe Germany"}))

	require.Equal(t, model.OutcomeAccepted, out.Kind)
	assert.Equal(t, 0.80, out.Best.Confidence)
}

func TestResolve_UnresolvedKeepsTopThreeInRankOrder(t *testing.T) {
	src := &fakeSource{results: map[string][]model.Candidate{
		"Springfield": {
			{ID: "Q1", Label: "Springfield Armory"},
			{ID: "Q2", Label: "Springfield"},
			{ID: "Q3", Label: "Springfield Township"},
			{ID: "Q4", Label: "Springfield"},
			{ID: "Q5", Label: "Shelbyville"},
		},
	}}

	out := newResolver(src, &fakeDetails{}, DefaultThreshold).Resolve(context.Background(),
		record(map[string]string{"word": "Springfield"}))

	require.Equal(t, model.OutcomeUnresolved, out.Kind)
	require.Len(t, out.Candidates, 3)
	assert.Equal(t, "Q2", out.Candidates[0].ID)
	assert.Equal(t, "Q4", out.Candidates[1].ID)
	assert.Equal(t, "Q1", out.Candidates[2].ID)
}

func TestNew_Defaults(t *testing.T) {
	r := New(&fakeSource{}, score.NewScorer(nil, "enwiki", "en", nil), Options{Threshold: 0.5})

	assert.Equal(t, 0.5, r.Threshold())
	assert.Equal(t, DefaultFallbackSize, r.fallbackSize)
	assert.NotNil(t, r.logger)
}
