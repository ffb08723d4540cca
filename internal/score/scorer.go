package score

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/qidlink/internal/model"
)

// Contributions are kept in hundredths of confidence so that sums land
// exactly on the two-decimal grid and compare cleanly against a threshold.
const (
	PointsExactLabel     = 45
	PointsSubstringLabel = 30
	PointsTokenOverlap   = 15
	PointsPerContextHit  = 5
	PointsCanonicalLink  = 20
	MaxPoints            = 100
)

// DetailSource looks up structured entity metadata by identifier
type DetailSource interface {
	Entity(ctx context.Context, id string) (*model.EntityDetail, error)
}

// Query is the record-side input to scoring
type Query struct {
	Label         string   // wiki_label if set, else word
	ContextTokens []string // folded tokens of geo_path, time_path and category
}

// NewQuery derives the scoring query from a record.
// Context tokens keep duplicates; each occurrence counts toward the description bonus.
func NewQuery(r model.Record) Query {
	hints := r.Get(model.FieldGeoPath) + " " + r.Get(model.FieldTimePath) + " " + r.Get(model.FieldCategory)
	return Query{
		Label:         r.QueryLabel(),
		ContextTokens: strings.Fields(fold(hints)),
	}
}

// Scorer computes a bounded confidence for a (candidate, query) pair
type Scorer struct {
	details     DetailSource
	sitelinkKey string
	aliasLang   string
	logger      *zap.Logger
}

// NewScorer creates a scorer. A nil detail source disables the canonical link signal.
func NewScorer(details DetailSource, sitelinkKey, aliasLang string, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		details:     details,
		sitelinkKey: sitelinkKey,
		aliasLang:   aliasLang,
		logger:      logger,
	}
}

// Score scores one candidate. It makes exactly one detail lookup and never fails:
// a failed lookup only omits the canonical link bonus.
func (s *Scorer) Score(ctx context.Context, c model.Candidate, q Query) model.ScoredCandidate {
	labelPoints, labelSignal := s.labelMatch(c.Label, q.Label)
	descPoints, descSignal := s.descriptionContext(c.Description, q.ContextTokens)
	linkPoints, linkSignal, detail := s.canonicalLink(ctx, c.ID)

	signals := []model.Signal{labelSignal, descSignal, linkSignal}

	total := labelPoints + descPoints + linkPoints
	if total > MaxPoints {
		signals = append(signals, model.Signal{
			Type:        model.SignalClamp,
			Points:      MaxPoints - total,
			Description: fmt.Sprintf("Capped %d points at %d", total, MaxPoints),
			Data: map[string]interface{}{
				"raw_points": total,
				"formula":    "min(sum, 100)",
			},
		})
		total = MaxPoints
	}

	confidence := Confidence(total)

	s.logger.Debug("scored candidate",
		zap.String("qid", c.ID),
		zap.String("label", c.Label),
		zap.String("query", q.Label),
		zap.Int("label_points", labelPoints),
		zap.Int("description_points", descPoints),
		zap.Int("canonical_points", linkPoints),
		zap.Float64("confidence", confidence))

	return model.ScoredCandidate{
		ID:          c.ID,
		Label:       c.Label,
		Description: c.Description,
		Confidence:  confidence,
		Signals:     signals,
		Aliases:     detail.AliasesFor(s.aliasLang),
	}
}

// Confidence converts points to a confidence in [0,1]
func Confidence(points int) float64 {
	if points <= 0 {
		return 0
	}
	if points >= MaxPoints {
		return 1
	}
	return float64(points) / MaxPoints
}

// labelMatch applies the highest applicable label tier. An empty candidate
// label is a substring of any query and earns the substring tier.
func (s *Scorer) labelMatch(candidateLabel, queryLabel string) (int, model.Signal) {
	label := fold(candidateLabel)
	term := fold(queryLabel)

	tier := "none"
	points := 0
	switch {
	case label == term:
		tier, points = "exact", PointsExactLabel
	case strings.Contains(label, term) || strings.Contains(term, label):
		tier, points = "substring", PointsSubstringLabel
	case sharesToken(label, term):
		tier, points = "token_overlap", PointsTokenOverlap
	}

	return points, model.Signal{
		Type:        model.SignalLabelMatch,
		Points:      points,
		Description: fmt.Sprintf("Label match tier: %s", tier),
		Data: map[string]interface{}{
			"tier":    tier,
			"label":   label,
			"query":   term,
			"formula": "exact=45, substring=30, shared token=15",
		},
	}
}

// descriptionContext adds points for each context token found in the description
func (s *Scorer) descriptionContext(description string, tokens []string) (int, model.Signal) {
	desc := fold(description)

	var matched []string
	if desc != "" {
		for _, token := range tokens {
			if token != "" && strings.Contains(desc, token) {
				matched = append(matched, token)
			}
		}
	}

	points := len(matched) * PointsPerContextHit

	return points, model.Signal{
		Type:        model.SignalDescriptionContext,
		Points:      points,
		Description: fmt.Sprintf("%d of %d context tokens found in description", len(matched), len(tokens)),
		Data: map[string]interface{}{
			"matched": matched,
			"tokens":  len(tokens),
			"formula": "5 * matched_tokens (uncapped)",
		},
	}
}

// canonicalLink looks up the entity and checks for the default sitelink
func (s *Scorer) canonicalLink(ctx context.Context, id string) (int, model.Signal, *model.EntityDetail) {
	signal := model.Signal{
		Type:        model.SignalCanonicalLink,
		Description: fmt.Sprintf("No %s sitelink", s.sitelinkKey),
		Data: map[string]interface{}{
			"site":    s.sitelinkKey,
			"formula": "20 if sitelink present",
		},
	}

	if s.details == nil || id == "" {
		signal.Data["lookup"] = "skipped"
		return 0, signal, nil
	}

	detail, err := s.details.Entity(ctx, id)
	if err != nil {
		s.logger.Debug("entity lookup failed, omitting canonical link bonus",
			zap.String("qid", id), zap.Error(err))
		signal.Data["lookup"] = "failed"
		return 0, signal, nil
	}
	signal.Data["lookup"] = "ok"

	if !detail.HasSitelink(s.sitelinkKey) {
		return 0, signal, detail
	}

	signal.Points = PointsCanonicalLink
	signal.Description = fmt.Sprintf("Has %s sitelink", s.sitelinkKey)
	return PointsCanonicalLink, signal, detail
}

// fold normalizes text for case-insensitive comparison
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func sharesToken(a, b string) bool {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		tokens[t] = struct{}{}
	}
	for _, t := range strings.Fields(b) {
		if _, ok := tokens[t]; ok {
			return true
		}
	}
	return false
}
