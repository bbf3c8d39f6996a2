package core

import (
	"context"
	"strings"
	"time"

	"github.com/transferstats/transferstats/internal/model"
)

// Extension sentinels.
const (
	ExtUnknown = ".unknown"
	ExtNone    = ".noext"
)

// ExtensionOf returns the lower-cased extension of the last path component
// of filename, including the dot. Backslashes count as separators.
func ExtensionOf(filename string) string {
	if filename == "" {
		return ExtUnknown
	}
	base := strings.ReplaceAll(filename, "\\", "/")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	i := strings.LastIndex(base, ".")
	if i <= 0 || strings.Trim(base[:i], ".") == "" {
		return ExtNone
	}
	ext := base[i:]
	if ext == "." {
		return ExtNone
	}
	return strings.ToLower(ext)
}

// DirectionSummary is the per-direction result of an analysis run.
type DirectionSummary struct {
	Direction      model.Direction  `json:"direction"`
	TotalTransfers int64            `json:"total_transfers"`
	TotalBytes     int64            `json:"total_bytes"`
	DeclaredBytes  int64            `json:"declared_bytes"`
	UniqueUsers    int              `json:"unique_users"`
	Users          *Tallies[string] `json:"users"`
	Extensions     *Tallies[string] `json:"extensions"`

	SpeedSamples int     `json:"speed_samples"`
	AvgSpeed     float64 `json:"avg_speed"`
	MinSpeed     float64 `json:"min_speed"`
	MaxSpeed     float64 `json:"max_speed"`

	DurationSamples   int     `json:"duration_samples"`
	AvgDuration       float64 `json:"avg_duration_seconds"`
	ExcludedDurations int64   `json:"excluded_durations"`

	Attempts      AttemptCounts `json:"attempts"`
	OtherTerminal int64         `json:"other_terminal"`
	ErrorRate     float64       `json:"error_rate"`

	FlacFiles int64 `json:"flac_files"`
	Mp3Files  int64 `json:"mp3_files"`

	NoData bool `json:"no_data"`
}

// TopUsers returns the n users with the most bytes.
func (s *DirectionSummary) TopUsers(n int) []Ranked[string] {
	return s.Users.Top(n, RankByBytes)
}

// TopExtensions returns the n extensions with the most bytes.
func (s *DirectionSummary) TopExtensions(n int) []Ranked[string] {
	return s.Extensions.Top(n, RankByBytes)
}

// SummaryAccumulator builds a DirectionSummary from successful records and
// attempt counts. Partial accumulators merge in a fixed order.
type SummaryAccumulator struct {
	direction model.Direction
	total     int64
	bytes     int64
	declared  int64
	users     Tallies[string]
	exts      Tallies[string]

	speedSum   float64
	speedN     int
	speedMin   float64
	speedMax   float64
	durSum     float64
	durN       int
	durSkipped int64

	flac     int64
	mp3      int64
	attempts AttemptCounts
}

// NewSummaryAccumulator creates an empty accumulator for dir.
func NewSummaryAccumulator(dir model.Direction) *SummaryAccumulator {
	return &SummaryAccumulator{direction: dir}
}

// Observe adds one successful record.
func (a *SummaryAccumulator) Observe(rec model.TransferRecord) {
	a.total++
	a.bytes += rec.BytesTransferred
	a.declared += rec.SizeBytes
	a.users.Add(rec.Username, rec.BytesTransferred)

	ext := ExtensionOf(rec.Filename)
	a.exts.Add(ext, rec.BytesTransferred)
	switch ext {
	case ".flac":
		a.flac++
	case ".mp3":
		a.mp3++
	}

	if rec.AverageSpeed > 0 {
		a.addSpeed(rec.AverageSpeed, rec.AverageSpeed, rec.AverageSpeed, 1)
	}
	if d, ok := rec.Duration(); ok {
		a.durSum += d.Seconds()
		a.durN++
	} else {
		a.durSkipped++
	}
}

func (a *SummaryAccumulator) addSpeed(sum, lo, hi float64, n int) {
	if n == 0 {
		return
	}
	if a.speedN == 0 || lo < a.speedMin {
		a.speedMin = lo
	}
	if a.speedN == 0 || hi > a.speedMax {
		a.speedMax = hi
	}
	a.speedSum += sum
	a.speedN += n
}

// AddAttempts adds terminal attempt counts.
func (a *SummaryAccumulator) AddAttempts(c AttemptCounts) {
	a.attempts.Add(c)
}

// Merge folds o into a.
func (a *SummaryAccumulator) Merge(o *SummaryAccumulator) {
	a.total += o.total
	a.bytes += o.bytes
	a.declared += o.declared
	a.users.Merge(&o.users)
	a.exts.Merge(&o.exts)
	a.addSpeed(o.speedSum, o.speedMin, o.speedMax, o.speedN)
	a.durSum += o.durSum
	a.durN += o.durN
	a.durSkipped += o.durSkipped
	a.flac += o.flac
	a.mp3 += o.mp3
	a.attempts.Add(o.attempts)
}

// Summary computes the derived statistics.
func (a *SummaryAccumulator) Summary() DirectionSummary {
	users := &Tallies[string]{}
	users.Merge(&a.users)
	exts := &Tallies[string]{}
	exts.Merge(&a.exts)

	s := DirectionSummary{
		Direction:         a.direction,
		TotalTransfers:    a.total,
		TotalBytes:        a.bytes,
		DeclaredBytes:     a.declared,
		UniqueUsers:       users.Len(),
		Users:             users,
		Extensions:        exts,
		SpeedSamples:      a.speedN,
		MinSpeed:          a.speedMin,
		MaxSpeed:          a.speedMax,
		DurationSamples:   a.durN,
		ExcludedDurations: a.durSkipped,
		Attempts:          a.attempts,
		OtherTerminal:     a.attempts.Other(),
		ErrorRate:         Rate(a.attempts.Errored, a.attempts.Completed),
		FlacFiles:         a.flac,
		Mp3Files:          a.mp3,
		NoData:            a.total == 0,
	}
	if a.speedN > 0 {
		s.AvgSpeed = a.speedSum / float64(a.speedN)
	}
	if a.durN > 0 {
		s.AvgDuration = a.durSum / float64(a.durN)
	}
	return s
}

// Rate returns part/whole*100, or 0 when whole is 0.
func Rate(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// Aggregator computes per-direction summaries over a RecordSource.
type Aggregator struct {
	src *RecordSource
}

// NewAggregator creates an aggregator.
func NewAggregator(src *RecordSource) *Aggregator {
	return &Aggregator{src: src}
}

const componentAggregator = "aggregator"

// Summarize computes the summary for dir over records requested on or after
// since (nil for no cutoff). A store that fails contributes nothing.
func (g *Aggregator) Summarize(ctx context.Context, dir model.Direction, since *time.Time) DirectionSummary {
	diag := g.src.Diagnostics()
	results := ForEachStore(ctx, g.src, func(ctx context.Context, store string) (*SummaryAccumulator, error) {
		acc := NewSummaryAccumulator(dir)
		for rec, err := range g.src.Records(ctx, store, Query{Direction: dir, Outcomes: OnlySucceeded, Since: since}) {
			if err != nil {
				return nil, err
			}
			acc.Observe(rec)
		}
		attempts, err := g.src.Attempts(ctx, store, dir, since)
		if err != nil {
			return nil, err
		}
		acc.AddAttempts(attempts)
		return acc, nil
	})

	total := NewSummaryAccumulator(dir)
	for _, r := range results {
		if r.Err != nil {
			diag.StoreError(r.Store, componentAggregator, r.Err)
			continue
		}
		diag.MalformedTimestamps(r.Store, componentAggregator,
			dir.Lower()+" transfers without a usable duration", int(r.Value.durSkipped))
		total.Merge(r.Value)
	}

	s := total.Summary()
	if s.NoData {
		diag.NoUsableData(componentAggregator, "no successful "+dir.Lower()+" transfers found")
	}
	return s
}

// SummarizeAll computes one summary per direction in dirs.
func (g *Aggregator) SummarizeAll(ctx context.Context, dirs []model.Direction, since *time.Time) []DirectionSummary {
	out := make([]DirectionSummary, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, g.Summarize(ctx, d, since))
	}
	return out
}
