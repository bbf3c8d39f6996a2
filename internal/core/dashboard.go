package core

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/transferstats/transferstats/internal/logging"
	"github.com/transferstats/transferstats/internal/mediapath"
	"github.com/transferstats/transferstats/internal/model"
)

// DashboardOptions selects what an overview covers.
type DashboardOptions struct {
	Directions  []model.Direction
	Since       *time.Time
	SampleSize  int
	MaxExamples int
	FillGaps    bool
}

// Dashboard runs every analysis over one RecordSource.
type Dashboard struct {
	src    *RecordSource
	parser *mediapath.Parser
	opts   DashboardOptions
}

// NewDashboard creates a dashboard.
func NewDashboard(src *RecordSource, parser *mediapath.Parser, opts DashboardOptions) *Dashboard {
	if len(opts.Directions) == 0 {
		opts.Directions = model.Directions
	}
	return &Dashboard{src: src, parser: parser, opts: opts}
}

// Overview is the combined result of one analysis run.
type Overview struct {
	RunID       string             `json:"run_id,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Stores      []string           `json:"stores"`
	Since       *time.Time         `json:"since,omitempty"`
	Summaries   []DirectionSummary `json:"summaries"`
	TimeSeries  []TimeSeriesRow    `json:"time_series"`
	Popularity  *PopularityReport  `json:"popularity,omitempty"`
	Confidence  *mediapath.Report  `json:"confidence,omitempty"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

// GetOverview runs the aggregator, time series and, when downloads are
// included, the popularity analysis.
func (d *Dashboard) GetOverview(ctx context.Context) *Overview {
	o := &Overview{
		RunID:       logging.RunIDFromContext(ctx),
		GeneratedAt: time.Now().UTC(),
		Stores:      d.src.Stores(),
		Since:       d.opts.Since,
	}

	o.Summaries = NewAggregator(d.src).SummarizeAll(ctx, d.opts.Directions, d.opts.Since)

	ts := NewTimeSeriesBuilder(d.src)
	ts.Fill = d.opts.FillGaps
	o.TimeSeries = ts.Build(ctx, d.opts.Directions, d.opts.Since)

	if slices.Contains(d.opts.Directions, model.DirectionDownload) {
		pop := NewPopularityAggregator(d.src, d.parser)
		report := pop.Popularity(ctx, d.opts.Since)
		o.Popularity = &report
		conf := pop.Confidence(ctx, d.opts.SampleSize, d.opts.MaxExamples)
		o.Confidence = &conf
	}

	o.Diagnostics = d.src.Diagnostics().Entries()
	return o
}

// FormatSize formats bytes to human-readable format.
func FormatSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// FormatRate formats a bytes-per-second speed.
func FormatRate(bps float64) string {
	return FormatSize(int64(bps)) + "/s"
}

// FormatDuration formats seconds as seconds, minutes or hours.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.2f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.2f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.2f hours", seconds/3600)
	}
}
