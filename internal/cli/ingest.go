package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlegaldata/oldp-ingestor/internal/cache"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/pipeline"
	"github.com/openlegaldata/oldp-ingestor/internal/provider"
	"github.com/openlegaldata/oldp-ingestor/internal/results"
	"github.com/openlegaldata/oldp-ingestor/internal/sink"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
	"github.com/openlegaldata/oldp-ingestor/internal/util"
	"github.com/openlegaldata/oldp-ingestor/internal/worker"
)

// ingestFlags are the per-run flags of the laws and cases commands
type ingestFlags struct {
	provider     string
	path         string
	searchTerm   string
	court        string
	dateFrom     string
	dateTo       string
	limit        int
	requestDelay float64
}

var (
	lawsFlags  ingestFlags
	casesFlags ingestFlags
)

var lawsCmd = &cobra.Command{
	Use:   "laws",
	Short: "Ingest law books and laws",
	Long: `Fetch law books from a provider and, for every book the sink accepts,
its laws. Books already present at the sink are skipped with their laws.

Example:
  oldp-ingestor laws --provider ris --search-term BGB --limit 1
  oldp-ingestor --sink json-file --output-dir ./out laws --provider dummy --path fixture.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, "laws", lawsFlags)
	},
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Ingest court decisions",
	Long: `Fetch court decisions from a provider and deliver them to the sink.
Run "oldp-ingestor providers" for the available sources.

Example:
  oldp-ingestor cases --provider rii --court bgh --limit 50
  oldp-ingestor cases --provider juris-bb --date-from 2026-01-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, "cases", casesFlags)
	},
}

func addIngestFlags(cmd *cobra.Command, f *ingestFlags, kind string) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "data source provider")
	cmd.Flags().StringVar(&f.path, "path", "", "JSON fixture file (required for the dummy provider)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "max number of "+kind+" to ingest (0 = all)")
	cmd.Flags().StringVar(&f.dateFrom, "date-from", "", "only fetch records on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dateTo, "date-to", "", "only fetch records on or before this date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&f.requestDelay, "request-delay", 0.2, "delay in seconds before every request")
	_ = cmd.MarkFlagRequired("provider")
}

func init() {
	addIngestFlags(lawsCmd, &lawsFlags, "law books")
	lawsCmd.Flags().StringVar(&lawsFlags.searchTerm, "search-term", "", "filter legislation by keyword")

	addIngestFlags(casesCmd, &casesFlags, "cases")
	casesCmd.Flags().StringVar(&casesFlags.court, "court", "", "court filter, e.g. BGH (meaning depends on the provider)")

	rootCmd.AddCommand(lawsCmd)
	rootCmd.AddCommand(casesCmd)
}

// params renders the set flags as batch-style key=value parameters
func (f ingestFlags) params(cmd *cobra.Command) map[string]string {
	p := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			p[key] = value
		}
	}
	set("path", f.path)
	set("search-term", f.searchTerm)
	set("court", f.court)
	set("date-from", f.dateFrom)
	set("date-to", f.dateTo)
	if f.limit > 0 {
		p["limit"] = strconv.Itoa(f.limit)
	}
	if cmd.Flags().Changed("request-delay") {
		p["request-delay"] = strconv.FormatFloat(f.requestDelay, 'f', -1, 64)
	}
	return p
}

func runIngest(cmd *cobra.Command, command string, f ingestFlags) error {
	r := newRunner(loadConfig())
	res, err := r.Run(cmd.Context(), worker.JobSpec{Command: command, Provider: f.provider, Params: f.params(cmd)})
	if err != nil {
		return err
	}
	if code := res.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// runner executes one (command, provider) run end to end
type runner struct {
	cfg        *model.Config
	registry   *provider.Registry
	sinkType   string
	outputDir  string
	resultsDir string
	clock      func() time.Time
}

func newRunner(cfg *model.Config) *runner {
	return &runner{
		cfg:        cfg,
		registry:   provider.NewRegistry(),
		sinkType:   sinkType,
		outputDir:  outputDir,
		resultsDir: cfg.Results.Dir,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *runner) newSink() (sink.Sink, error) {
	switch r.sinkType {
	case "", "api":
		return sink.NewAPISink(r.cfg.API)
	case "json-file":
		if r.outputDir == "" {
			return nil, fmt.Errorf("--output-dir is required when using --sink json-file")
		}
		return sink.NewJSONFileSink(r.outputDir)
	default:
		return nil, fmt.Errorf("unknown sink %q (expected api or json-file)", r.sinkType)
	}
}

// Run builds the provider and sink for spec and delivers every record.
// Configuration problems are returned as an *ExitError before anything is
// fetched; failures of the run itself end up in the returned result.
func (r *runner) Run(ctx context.Context, spec worker.JobSpec) (model.RunResult, error) {
	log := slog.Default().With("command", spec.Command, "provider", spec.Provider)

	opts, err := r.options(spec.Params)
	if err != nil {
		return model.RunResult{}, configError(err)
	}
	snk, err := r.newSink()
	if err != nil {
		return model.RunResult{}, configError(err)
	}

	var (
		totals pipeline.Totals
		runErr error
		popts  = pipeline.Options{Limit: opts.Limit, Logger: log}
	)
	started := r.clock()

	switch spec.Command {
	case "laws":
		p, err := r.registry.LawProvider(spec.Provider, opts)
		if err != nil {
			return model.RunResult{}, configError(err)
		}
		defer closeProvider(ctx, log, p)
		totals, runErr = pipeline.RunLaws(ctx, p, snk, popts)
	case "cases":
		p, err := r.registry.CaseProvider(spec.Provider, opts)
		if err != nil {
			return model.RunResult{}, configError(err)
		}
		defer closeProvider(ctx, log, p)
		totals, runErr = pipeline.RunCases(ctx, p, snk, popts)
	default:
		return model.RunResult{}, configError(fmt.Errorf("unknown command %q", spec.Command))
	}

	res := totals.Result(spec.Command, spec.Provider, started, r.clock())
	if runErr != nil {
		log.ErrorContext(ctx, "run failed", "err", runErr)
		res = model.NewRunResult(spec.Command, spec.Provider, res.StartedAt, res.FinishedAt, 0, 0, 1, model.StatusError)
	}

	if r.resultsDir != "" {
		if err := results.Write(r.resultsDir, res); err != nil {
			log.ErrorContext(ctx, "failed to write result file", "dir", r.resultsDir, "err", err)
		}
	}
	return res, nil
}

func closeProvider(ctx context.Context, log *slog.Logger, p any) {
	if err := provider.Close(p); err != nil {
		log.WarnContext(ctx, "failed to close provider", "err", err)
	}
}

// options converts batch parameters into provider options
func (r *runner) options(params map[string]string) (provider.Options, error) {
	tc, err := transportConfig(r.cfg)
	if err != nil {
		return provider.Options{}, err
	}

	opts := provider.Options{
		Delay:     r.cfg.HTTP.RequestDelay,
		Username:  r.cfg.EURLex.User,
		Password:  r.cfg.EURLex.Password,
		Transport: tc,
		Browser: transport.BrowserConfig{
			ExecPath:  r.cfg.Browser.ExecPath,
			UserAgent: r.cfg.HTTP.UserAgent,
		},
	}

	for key, value := range params {
		switch key {
		case "court":
			opts.Court = value
		case "date-from":
			opts.DateFrom = value
		case "date-to":
			opts.DateTo = value
		case "search-term":
			opts.SearchTerm = value
		case "path":
			opts.Path = value
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return provider.Options{}, fmt.Errorf("invalid limit %q", value)
			}
			opts.Limit = n
		case "request-delay":
			sec, err := strconv.ParseFloat(value, 64)
			if err != nil || sec < 0 {
				return provider.Options{}, fmt.Errorf("invalid request delay %q", value)
			}
			opts.Delay = time.Duration(sec * float64(time.Second))
		default:
			return provider.Options{}, fmt.Errorf("unknown parameter %q", key)
		}
	}
	return opts, nil
}

// transportConfig builds the HTTP client template from the settings
func transportConfig(cfg *model.Config) (transport.Config, error) {
	tc := transport.Config{
		Timeout:    cfg.HTTP.Timeout,
		UserAgent:  cfg.HTTP.UserAgent,
		MaxRetries: cfg.HTTP.MaxRetries,
	}

	if cfg.HTTP.HTTPProxy != "" || cfg.HTTP.HTTPSProxy != "" {
		proxy, err := util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy)
		if err != nil {
			return transport.Config{}, fmt.Errorf("configure proxy: %w", err)
		}
		tc.Proxy = proxy
	}

	if cfg.Cache.Enabled {
		tc.CacheTTL = cfg.Cache.TTL
		if cfg.Cache.Dir != "" {
			tc.Cache = cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
		} else {
			tc.Cache = cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
		}
	}

	if cfg.HTTP.RespectRobots {
		tc.Robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
		tc.Limiter = worker.NewLimiter(0, 1)
	}
	return tc, nil
}
