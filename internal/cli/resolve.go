package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/qidlink/internal/cache"
	"github.com/ppiankov/qidlink/internal/llm"
	"github.com/ppiankov/qidlink/internal/logging"
	"github.com/ppiankov/qidlink/internal/metrics"
	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/pipeline"
	"github.com/ppiankov/qidlink/internal/records"
	"github.com/ppiankov/qidlink/internal/report"
	"github.com/ppiankov/qidlink/internal/resolve"
	"github.com/ppiankov/qidlink/internal/score"
	"github.com/ppiankov/qidlink/internal/util"
	"github.com/ppiankov/qidlink/internal/wikidata"
	"github.com/ppiankov/qidlink/internal/worker"
)

var (
	inputPath string
	noCache   bool
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Attach Wikidata identifiers to a taxonomy table",
	Long: `Resolve reads a CSV (or TSV) taxonomy table and, for every row whose
wiki_qid is empty or TBD, searches Wikidata, scores the candidates and writes
the best one when its confidence reaches the threshold.

Rows that already have an identifier pass through unchanged. Unresolved rows
keep their top candidates as a diagnostic list.

Example:
  qidlink resolve --in taxonomy.csv
  qidlink resolve --in taxonomy.csv --workers 4 --pacing 250ms
  qidlink resolve --in taxonomy.tsv --out-csv linked.csv --out-json linked.json --llm`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	defaults := model.DefaultConfig()
	flags := resolveCmd.Flags()

	flags.StringVar(&inputPath, "in", "", "input taxonomy table (.csv or .tsv)")
	flags.String("out-csv", defaults.Output.CSVPath, "output CSV path")
	flags.String("out-json", defaults.Output.JSONPath, "output JSON path (empty to skip)")
	flags.Float64("threshold", defaults.Resolve.Threshold, "minimum confidence to accept a candidate")
	flags.Int("workers", defaults.Concurrency.Workers, "number of rows resolved concurrently")
	flags.Duration("pacing", defaults.Concurrency.Pacing, "minimum spacing between row lookups")
	flags.BoolVar(&noCache, "no-cache", false, "disable the entity detail memo")
	flags.Bool("respect-robots", false, "check robots.txt of the API hosts before starting")
	flags.String("metrics-file", "", "write Prometheus textfile metrics to this path")
	flags.Bool("llm", false, "add an LLM review hint to unresolved rows")
	flags.String("llm-provider", defaults.LLM.Provider, "LLM provider (openai, ollama)")
	flags.String("llm-model", defaults.LLM.Model, "LLM model name")
	flags.Bool("log-json", false, "emit JSON logs")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	_ = resolveCmd.MarkFlagRequired("in")

	bindFlags(flags, map[string]string{
		"out-csv":        "output.csv_path",
		"out-json":       "output.json_path",
		"threshold":      "resolve.threshold",
		"workers":        "concurrency.workers",
		"pacing":         "concurrency.pacing",
		"respect-robots": "http.respect_robots",
		"metrics-file":   "output.metrics_file",
		"llm":            "llm.enabled",
		"llm-provider":   "llm.provider",
		"llm-model":      "llm.model",
		"log-json":       "output.log_json",
		"http-proxy":     "http.http_proxy",
		"https-proxy":    "http.https_proxy",
	})
}

func runResolve(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Verbose: cfg.Output.Verbose, JSON: cfg.Output.LogJSON})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock := flock.New(cfg.Output.CSVPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another run is writing %s (lock %s held)", cfg.Output.CSVPath, lock.Path())
	}
	defer func() {
		if uErr := lock.Unlock(); uErr != nil {
			logger.Warn("failed to release output lock", zap.Error(uErr))
		}
		_ = os.Remove(lock.Path())
	}()

	table, err := records.ReadCSV(inputPath)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	printBanner(cmd.ErrOrStderr(), runID, cfg, len(table.Records))

	m := metrics.New()
	deps, err := buildResolver(ctx, cfg, m, logger)
	if err != nil {
		return err
	}

	driver := pipeline.NewDriver(deps.resolver, pipeline.Options{
		Workers:  cfg.Concurrency.Workers,
		Reviewer: deps.reviewer,
		Metrics:  m,
		Logger:   logger,
		RunID:    runID,
	})

	batch, runErr := driver.Run(ctx, table.Records)
	if batch == nil {
		return runErr
	}

	// Partial results are written too; rows never reached pass through.
	header := records.OutputHeader(table.Header, driver.OutputColumns()...)
	if err := records.WriteCSV(cfg.Output.CSVPath, header, batch.Rows); err != nil {
		return err
	}
	if cfg.Output.JSONPath != "" {
		if err := records.WriteJSON(cfg.Output.JSONPath, header, batch.Rows); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if err := report.RenderSummary(out, batch, report.ShouldColorize(out)); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	if cfg.Output.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted with %d rows not processed: %w", batch.Summary.NotProcessed, runErr)
	}
	return nil
}

// resolverDeps is the wired collaborator graph for one run
type resolverDeps struct {
	client   *wikidata.Client
	scorer   *score.Scorer
	resolver *resolve.Resolver
	reviewer llm.Reviewer
}

// buildResolver wires client, memo, scorer and pacer from configuration
func buildResolver(ctx context.Context, cfg *model.Config, m *metrics.Metrics, logger *zap.Logger) (*resolverDeps, error) {
	pacing := cfg.Concurrency.Pacing
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	if cfg.HTTP.RespectRobots {
		proxy := util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
		checker := util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, proxy)
		endpoints := []string{cfg.Wikidata.SearchURL, fmt.Sprintf(cfg.Wikidata.EntityURL, "Q1")}
		delay, err := checker.CheckEndpoints(ctx, endpoints...)
		if err != nil {
			return nil, err
		}
		applyCrawlDelay(limiter, delay, endpoints...)
		if delay > pacing {
			logger.Info("raising pacing to robots.txt crawl delay",
				zap.Duration("pacing", pacing),
				zap.Duration("crawl_delay", delay))
			pacing = delay
		}
	}

	client, err := wikidata.New(cfg.Wikidata, cfg.HTTP,
		wikidata.WithLimiter(limiter),
		wikidata.WithMetrics(m),
		wikidata.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create wikidata client: %w", err)
	}

	var details score.DetailSource = client
	if cfg.Cache.Enabled {
		memo := cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL)
		details = cache.NewMemoDetails(client, memo, m.DetailLookup)
	}

	scorer := score.NewScorer(details, cfg.Wikidata.SitelinkKey, cfg.Wikidata.Language, logger)
	source := pipeline.NewPacedSource(client, worker.NewPacer(pacing))
	resolver := resolve.New(source, scorer, resolve.Options{
		Threshold:    cfg.Resolve.Threshold,
		FallbackSize: cfg.Resolve.FallbackSize,
		Logger:       logger,
	})

	deps := &resolverDeps{
		client:   client,
		scorer:   scorer,
		resolver: resolver,
	}

	if cfg.LLM.Enabled {
		reviewer, err := llm.NewReviewer(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			return nil, fmt.Errorf("create LLM reviewer: %w", err)
		}
		deps.reviewer = reviewer
	}

	return deps, nil
}

// applyCrawlDelay caps each endpoint host at one request per crawl delay,
// so detail lookups between searches honour it too
func applyCrawlDelay(limiter *worker.Limiter, delay time.Duration, endpoints ...string) {
	if delay <= 0 {
		return
	}
	for _, endpoint := range endpoints {
		limiter.SetHostRate(endpoint, 1/delay.Seconds(), 1)
	}
}

// validateConfig rejects settings no run can succeed with
func validateConfig(cfg *model.Config) error {
	var problems []string
	if cfg.Resolve.Threshold < 0 || cfg.Resolve.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("threshold %v outside [0,1]", cfg.Resolve.Threshold))
	}
	if cfg.Concurrency.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be at least 1, got %d", cfg.Concurrency.Workers))
	}
	if cfg.Concurrency.Pacing < 0 {
		problems = append(problems, "pacing must not be negative")
	}
	if strings.TrimSpace(cfg.Output.CSVPath) == "" {
		problems = append(problems, "output CSV path required")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func printBanner(w io.Writer, runID string, cfg *model.Config, rows int) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  qidlink resolve\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Run:        %s\n", runID)
	fmt.Fprintf(w, "  Input:      %s (%d rows)\n", inputPath, rows)
	fmt.Fprintf(w, "  Output:     %s\n", cfg.Output.CSVPath)
	fmt.Fprintf(w, "  Threshold:  %.2f\n", cfg.Resolve.Threshold)
	fmt.Fprintf(w, "  Workers:    %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(w, "  Pacing:     %v\n", cfg.Concurrency.Pacing)
	if cfg.LLM.Enabled {
		fmt.Fprintf(w, "  Review:     %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(w, "\n")
}

// bindFlags binds cobra flags to viper keys so flags override config
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}
