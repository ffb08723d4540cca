package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/qidlink/internal/logging"
	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/rank"
	"github.com/ppiankov/qidlink/internal/report"
	"github.com/ppiankov/qidlink/internal/resolve"
	"github.com/ppiankov/qidlink/internal/score"
)

var (
	explainGeo       string
	explainTime      string
	explainCategory  string
	explainThreshold float64
)

// explainCmd represents the explain command
var explainCmd = &cobra.Command{
	Use:   "explain <label>",
	Short: "Score one label and show the per-signal breakdown",
	Long: `Explain searches Wikidata for a single label, scores every candidate the
same way resolve does and prints how each signal contributed.

Nothing is written; use it to understand why a row was or was not accepted.

Example:
  qidlink explain Berlin --geo "Europe Germany"
  qidlink explain "Laksa" --geo "Asia Malaysia" --category Food --threshold 0.7`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().StringVar(&explainGeo, "geo", "", "geo_path context, space separated")
	explainCmd.Flags().StringVar(&explainTime, "time", "", "time_path context, space separated")
	explainCmd.Flags().StringVar(&explainCategory, "category", "", "category context")
	explainCmd.Flags().Float64Var(&explainThreshold, "threshold", resolve.DefaultThreshold, "acceptance threshold to mark candidates against")
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Resolve.Threshold = explainThreshold
	}
	// explain never writes, so the robots check and the memo add nothing
	cfg.HTTP.RespectRobots = false
	cfg.Cache.Enabled = false

	logger, err := logging.New(logging.Options{Verbose: cfg.Output.Verbose, JSON: cfg.Output.LogJSON})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildResolver(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	rec := model.NewRecord(0, map[string]string{
		model.FieldWord:     args[0],
		model.FieldGeoPath:  explainGeo,
		model.FieldTimePath: explainTime,
		model.FieldCategory: explainCategory,
	})

	out := cmd.OutOrStdout()
	return explainRecord(ctx, out, deps.client, deps.scorer, rec, deps.resolver.Threshold(), report.ShouldColorize(out))
}

// explainRecord scores every candidate for one record and renders the table.
// Unlike resolve, a failed search is reported instead of degraded.
func explainRecord(ctx context.Context, w io.Writer, source resolve.CandidateSource, scorer *score.Scorer,
	rec model.Record, threshold float64, colorize bool) error {
	query := score.NewQuery(rec)
	if query.Label == "" {
		return errors.New("label must not be empty")
	}

	candidates, err := source.Search(ctx, query.Label)
	if err != nil {
		return fmt.Errorf("search %q: %w", query.Label, err)
	}

	scored := make([]model.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scorer.Score(ctx, c, query))
	}
	_, ranked := rank.Rank(scored, threshold)

	return report.RenderExplain(w, query.Label, ranked, threshold, colorize)
}
