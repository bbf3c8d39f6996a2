package core

import (
	"context"
	"iter"
	"sort"
	"time"

	"github.com/transferstats/transferstats/internal/model"
)

const dayLayout = "2006-01-02"

// DayKey returns the UTC calendar date of t as "2006-01-02".
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// DayStats is the per-direction part of a TimeSeriesRow.
type DayStats struct {
	Count     int64   `json:"count"`
	Bytes     int64   `json:"bytes"`
	Errors    int64   `json:"errors"`
	Attempts  int64   `json:"attempts"`
	AvgSpeed  float64 `json:"avg_speed"`
	ErrorRate float64 `json:"error_rate"`
}

// TimeSeriesRow is one calendar day across both directions.
type TimeSeriesRow struct {
	Date          string   `json:"date"`
	Upload        DayStats `json:"upload"`
	Download      DayStats `json:"download"`
	DistinctUsers int      `json:"distinct_users"`
}

type dayDirection struct {
	count    int64
	bytes    int64
	speedSum float64
	speedN   int
	attempts AttemptCounts
}

func (d *dayDirection) merge(o *dayDirection) {
	d.count += o.count
	d.bytes += o.bytes
	d.speedSum += o.speedSum
	d.speedN += o.speedN
	d.attempts.Add(o.attempts)
}

func (d *dayDirection) stats() DayStats {
	s := DayStats{
		Count:     d.count,
		Bytes:     d.bytes,
		Errors:    d.attempts.Errored,
		Attempts:  d.attempts.Completed,
		ErrorRate: Rate(d.attempts.Errored, d.attempts.Completed),
	}
	if d.speedN > 0 {
		s.AvgSpeed = d.speedSum / float64(d.speedN)
	}
	return s
}

// DailyBucket accumulates one calendar day. The user set only feeds the
// distinct-user count.
type DailyBucket struct {
	Date     string
	upload   dayDirection
	download dayDirection
	users    map[string]struct{}
}

func newDailyBucket(date string) *DailyBucket {
	return &DailyBucket{Date: date, users: make(map[string]struct{})}
}

func (b *DailyBucket) direction(dir model.Direction) *dayDirection {
	if dir == model.DirectionDownload {
		return &b.download
	}
	return &b.upload
}

func (b *DailyBucket) row() TimeSeriesRow {
	return TimeSeriesRow{
		Date:          b.Date,
		Upload:        b.upload.stats(),
		Download:      b.download.stats(),
		DistinctUsers: len(b.users),
	}
}

// TimeSeriesAccumulator buckets records by UTC day of RequestedAt.
type TimeSeriesAccumulator struct {
	buckets map[string]*DailyBucket
	undated int
}

// NewTimeSeriesAccumulator creates an empty accumulator.
func NewTimeSeriesAccumulator() *TimeSeriesAccumulator {
	return &TimeSeriesAccumulator{buckets: make(map[string]*DailyBucket)}
}

func (a *TimeSeriesAccumulator) bucket(date string) *DailyBucket {
	b, ok := a.buckets[date]
	if !ok {
		b = newDailyBucket(date)
		a.buckets[date] = b
	}
	return b
}

// Observe adds one successful record. Records without RequestedAt are
// counted as undated and otherwise ignored.
func (a *TimeSeriesAccumulator) Observe(rec model.TransferRecord) {
	if rec.RequestedAt == nil {
		a.undated++
		return
	}
	b := a.bucket(DayKey(*rec.RequestedAt))
	d := b.direction(rec.Direction)
	d.count++
	d.bytes += rec.BytesTransferred
	if rec.AverageSpeed > 0 {
		d.speedSum += rec.AverageSpeed
		d.speedN++
	}
	b.users[rec.Username] = struct{}{}
}

// AddAttempts adds per-day attempt counts for dir.
func (a *TimeSeriesAccumulator) AddAttempts(dir model.Direction, daily DailyAttemptCounts) {
	for date, c := range daily.Days {
		a.bucket(date).direction(dir).attempts.Add(c)
	}
	a.undated += daily.Undated
}

// Merge folds o into a.
func (a *TimeSeriesAccumulator) Merge(o *TimeSeriesAccumulator) {
	for date, ob := range o.buckets {
		b := a.bucket(date)
		b.upload.merge(&ob.upload)
		b.download.merge(&ob.download)
		for u := range ob.users {
			b.users[u] = struct{}{}
		}
	}
	a.undated += o.undated
}

// Undated returns how many records and attempts lacked a usable RequestedAt.
func (a *TimeSeriesAccumulator) Undated() int {
	return a.undated
}

// Rows returns one row per day in ascending date order. With fill, days
// between the first and last date that have no data get zero rows.
func (a *TimeSeriesAccumulator) Rows(fill bool) []TimeSeriesRow {
	dates := make([]string, 0, len(a.buckets))
	for d := range a.buckets {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([]TimeSeriesRow, 0, len(dates))
	for i, d := range dates {
		if fill && i > 0 {
			rows = append(rows, gapRows(dates[i-1], d)...)
		}
		rows = append(rows, a.buckets[d].row())
	}
	return rows
}

// gapRows returns zero rows for the days strictly between from and to.
func gapRows(from, to string) []TimeSeriesRow {
	start, err1 := time.Parse(dayLayout, from)
	end, err2 := time.Parse(dayLayout, to)
	if err1 != nil || err2 != nil {
		return nil
	}
	var rows []TimeSeriesRow
	for t := start.AddDate(0, 0, 1); t.Before(end); t = t.AddDate(0, 0, 1) {
		rows = append(rows, TimeSeriesRow{Date: t.Format(dayLayout)})
	}
	return rows
}

// TimeSeriesBuilder produces daily rows over a RecordSource.
type TimeSeriesBuilder struct {
	src *RecordSource

	// Fill inserts zero rows for days without data.
	Fill bool
}

// NewTimeSeriesBuilder creates a builder.
func NewTimeSeriesBuilder(src *RecordSource) *TimeSeriesBuilder {
	return &TimeSeriesBuilder{src: src}
}

const componentTimeSeries = "timeseries"

// Build computes the rows for dirs. A store that fails contributes nothing.
func (b *TimeSeriesBuilder) Build(ctx context.Context, dirs []model.Direction, since *time.Time) []TimeSeriesRow {
	diag := b.src.Diagnostics()
	results := ForEachStore(ctx, b.src, func(ctx context.Context, store string) (*TimeSeriesAccumulator, error) {
		acc := NewTimeSeriesAccumulator()
		for _, dir := range dirs {
			for rec, err := range b.src.Records(ctx, store, Query{Direction: dir, Outcomes: OnlySucceeded, Since: since}) {
				if err != nil {
					return nil, err
				}
				acc.Observe(rec)
			}
			daily, err := b.src.DailyAttempts(ctx, store, dir, since)
			if err != nil {
				return nil, err
			}
			acc.AddAttempts(dir, daily)
		}
		return acc, nil
	})

	total := NewTimeSeriesAccumulator()
	for _, r := range results {
		if r.Err != nil {
			diag.StoreError(r.Store, componentTimeSeries, r.Err)
			continue
		}
		diag.MalformedTimestamps(r.Store, componentTimeSeries,
			"transfers without a usable RequestedAt excluded from trends", r.Value.Undated())
		total.Merge(r.Value)
	}

	rows := total.Rows(b.Fill)
	if len(rows) == 0 {
		diag.NoUsableData(componentTimeSeries, "no dated transfers found")
	}
	return rows
}

// Rows returns a lazy sequence that recomputes the rows on every iteration.
func (b *TimeSeriesBuilder) Rows(ctx context.Context, dirs []model.Direction, since *time.Time) iter.Seq[TimeSeriesRow] {
	return func(yield func(TimeSeriesRow) bool) {
		for _, r := range b.Build(ctx, dirs, since) {
			if !yield(r) {
				return
			}
		}
	}
}
