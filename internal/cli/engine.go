package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/transferstats/transferstats/internal/config"
	"github.com/transferstats/transferstats/internal/core"
	"github.com/transferstats/transferstats/internal/logging"
	"github.com/transferstats/transferstats/internal/mediapath"
	"github.com/transferstats/transferstats/internal/model"
)

// Engine holds what one command invocation needs.
type Engine struct {
	Config *config.Config
	Parser *mediapath.Parser
	Diag   *core.Diagnostics

	ctx  context.Context
	out  io.Writer
	json bool
}

// overrides converts explicitly set flags into config keys.
func (f *globalFlags) overrides(cmd *cobra.Command) map[string]any {
	changed := cmd.Flags().Changed
	o := make(map[string]any)
	if changed("db") {
		o["stores"] = f.stores
	}
	if changed("days") {
		o["days"] = f.days
	}
	if changed("top") {
		o["top"] = f.top
	}
	if changed("workers") {
		o["workers"] = f.workers
	}
	if changed("timeout") {
		o["query_timeout"] = f.timeout
	}
	if changed("direction") {
		o["direction"] = f.direction
	}
	if changed("fill") {
		o["fill_gaps"] = f.fill
	}
	switch {
	case f.verbose:
		o["logging.level"] = "debug"
	case f.quiet:
		o["logging.level"] = "error"
	}
	return o
}

// newEngine loads the configuration, sets up logging and starts a run.
func newEngine(cmd *cobra.Command, flags *globalFlags) (*Engine, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: flags.configPath,
		Overrides:  flags.overrides(cmd),
	})
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	ctx := logging.WithRun(cmd.Context())
	logging.Ctx(ctx).Debug().
		Str("command", cmd.Name()).
		Strs("stores", cfg.Stores).
		Int("days", cfg.Days).
		Msg("starting run")

	return &Engine{
		Config: cfg,
		Parser: mediapath.NewParser(cfg.ParserOptions()),
		Diag:   core.NewDiagnostics(ctx),
		ctx:    ctx,
		out:    cmd.OutOrStdout(),
		json:   flags.jsonOutput,
	}, nil
}

func (e *Engine) source() (*core.RecordSource, error) {
	src, err := core.NewRecordSource(e.Config.Stores, e.Config.SourceOptions(e.Diag))
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}
	return src, nil
}

func (e *Engine) since() *time.Time {
	return e.Config.Since(time.Now())
}

// RunSummary prints per-direction totals.
func RunSummary(cmd *cobra.Command, flags *globalFlags) error {
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}
	src, err := e.source()
	if err != nil {
		return err
	}

	summaries := core.NewAggregator(src).SummarizeAll(e.ctx, e.Config.Directions(), e.since())

	if e.json {
		views := make([]summaryView, len(summaries))
		for i, s := range summaries {
			views[i] = newSummaryView(s, e.Config.Top)
		}
		return writeJSON(e.out, struct {
			RunID       string             `json:"run_id"`
			Summaries   []summaryView      `json:"summaries"`
			Diagnostics []model.Diagnostic `json:"diagnostics"`
		}{logging.RunIDFromContext(e.ctx), views, e.Diag.Entries()})
	}

	for _, s := range summaries {
		printSummary(e.out, s, e.Config.Top)
	}
	printDiagnostics(e.out, e.Diag.Entries())
	return nil
}

// RunTrends prints the daily time series.
func RunTrends(cmd *cobra.Command, flags *globalFlags) error {
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}
	src, err := e.source()
	if err != nil {
		return err
	}

	b := core.NewTimeSeriesBuilder(src)
	b.Fill = e.Config.FillGaps
	rows := b.Build(e.ctx, e.Config.Directions(), e.since())

	if e.json {
		return writeJSON(e.out, struct {
			RunID       string               `json:"run_id"`
			Rows        []core.TimeSeriesRow `json:"rows"`
			Diagnostics []model.Diagnostic   `json:"diagnostics"`
		}{logging.RunIDFromContext(e.ctx), rows, e.Diag.Entries()})
	}

	printTrends(e.out, rows)
	printDiagnostics(e.out, e.Diag.Entries())
	return nil
}

// RunPopular prints the top artists and albums.
func RunPopular(cmd *cobra.Command, flags *globalFlags) error {
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}
	src, err := e.source()
	if err != nil {
		return err
	}

	report := core.NewPopularityAggregator(src, e.Parser).Popularity(e.ctx, e.since())

	if e.json {
		return writeJSON(e.out, struct {
			RunID       string             `json:"run_id"`
			Popularity  *popularityView    `json:"popularity"`
			Diagnostics []model.Diagnostic `json:"diagnostics"`
		}{logging.RunIDFromContext(e.ctx), newPopularityView(&report, e.Config.Top), e.Diag.Entries()})
	}

	printPopularity(e.out, &report, e.Config.Top)
	printDiagnostics(e.out, e.Diag.Entries())
	return nil
}

// RunConfidence samples download paths and reports the parse rate.
// Non-positive sample and negative examples fall back to the config.
func RunConfidence(cmd *cobra.Command, flags *globalFlags, sample, examples int) error {
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}
	src, err := e.source()
	if err != nil {
		return err
	}
	if sample <= 0 {
		sample = e.Config.Confidence.SampleSize
	}
	if examples < 0 {
		examples = e.Config.Confidence.MaxExamples
	}

	report := core.NewPopularityAggregator(src, e.Parser).Confidence(e.ctx, sample, examples)

	if e.json {
		return writeJSON(e.out, struct {
			RunID       string             `json:"run_id"`
			Confidence  mediapath.Report   `json:"confidence"`
			Diagnostics []model.Diagnostic `json:"diagnostics"`
		}{logging.RunIDFromContext(e.ctx), report, e.Diag.Entries()})
	}

	printConfidence(e.out, report)
	printDiagnostics(e.out, e.Diag.Entries())
	return nil
}

// RunExplain shows the parser trace for one path.
func RunExplain(cmd *cobra.Command, flags *globalFlags, path string) error {
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}

	trace := e.Parser.Explain(path)
	if e.json {
		return writeJSON(e.out, trace)
	}
	printTrace(e.out, trace)
	return nil
}

func parseOutcomeFilter(s string) (core.OutcomeFilter, error) {
	switch s {
	case "succeeded", "success":
		return core.OnlySucceeded, nil
	case "completed":
		return core.OnlyCompleted, nil
	case "any", "all":
		return core.AnyOutcome, nil
	}
	return 0, fmt.Errorf("unknown outcome %q: want succeeded, completed or any", s)
}

// RunRecords streams matching records as JSON lines. With a single
// direction selected only that direction is streamed.
func RunRecords(cmd *cobra.Command, flags *globalFlags, outcome string, limit int) error {
	filter, err := parseOutcomeFilter(outcome)
	if err != nil {
		return err
	}
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}
	src, err := e.source()
	if err != nil {
		return err
	}

	q := core.Query{Outcomes: filter, Since: e.since()}
	if dirs := e.Config.Directions(); len(dirs) == 1 {
		q.Direction = dirs[0]
	}

	enc := json.NewEncoder(e.out)
	n := 0
	for rec := range src.All(e.ctx, "records", q) {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
	}

	logging.Ctx(e.ctx).Debug().Int("records", n).Msg("records written")
	return nil
}

// RunOverview runs every report and prints them together.
func RunOverview(cmd *cobra.Command, flags *globalFlags) error {
	e, err := newEngine(cmd, flags)
	if err != nil {
		return err
	}
	src, err := e.source()
	if err != nil {
		return err
	}

	overview := core.NewDashboard(src, e.Parser, core.DashboardOptions{
		Directions:  e.Config.Directions(),
		Since:       e.since(),
		SampleSize:  e.Config.Confidence.SampleSize,
		MaxExamples: e.Config.Confidence.MaxExamples,
		FillGaps:    e.Config.FillGaps,
	}).GetOverview(e.ctx)

	if e.json {
		views := make([]summaryView, len(overview.Summaries))
		for i, s := range overview.Summaries {
			views[i] = newSummaryView(s, e.Config.Top)
		}
		return writeJSON(e.out, struct {
			RunID       string               `json:"run_id"`
			GeneratedAt time.Time            `json:"generated_at"`
			Stores      []string             `json:"stores"`
			Since       *time.Time           `json:"since,omitempty"`
			Summaries   []summaryView        `json:"summaries"`
			TimeSeries  []core.TimeSeriesRow `json:"time_series"`
			Popularity  *popularityView      `json:"popularity,omitempty"`
			Confidence  *mediapath.Report    `json:"confidence,omitempty"`
			Diagnostics []model.Diagnostic   `json:"diagnostics"`
		}{
			RunID:       overview.RunID,
			GeneratedAt: overview.GeneratedAt,
			Stores:      overview.Stores,
			Since:       overview.Since,
			Summaries:   views,
			TimeSeries:  overview.TimeSeries,
			Popularity:  newPopularityView(overview.Popularity, e.Config.Top),
			Confidence:  overview.Confidence,
			Diagnostics: overview.Diagnostics,
		})
	}

	printOverview(e.out, overview, e.Config.Top)
	return nil
}
