package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/transferstats/transferstats/internal/model"
)

var (
	// ErrNoStores is returned when no store path was given.
	ErrNoStores = errors.New("no transfer-log stores given")
	// ErrNoUsableStores is returned when none of the given paths exist.
	ErrNoUsableStores = errors.New("none of the given transfer-log stores exist")
)

// Defaults for SourceOptions.
const (
	DefaultWorkers      = 4
	DefaultQueryTimeout = 30 * time.Second
)

// OutcomeFilter narrows a record query by outcome.
type OutcomeFilter int

const (
	// OnlySucceeded keeps successful attempts.
	OnlySucceeded OutcomeFilter = iota
	// OnlyCompleted keeps every terminal attempt.
	OnlyCompleted
	// AnyOutcome applies no status filter.
	AnyOutcome
)

// Query selects transfer records. An empty Direction selects both.
type Query struct {
	Direction model.Direction
	Outcomes  OutcomeFilter
	Since     *time.Time
}

// Cutoff converts a look-back window into the start of the UTC day days
// before now. A non-positive window means no cutoff.
func Cutoff(now time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := now.UTC().AddDate(0, 0, -days)
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &t
}

// SourceOptions configures store access.
type SourceOptions struct {
	Passphrase   string
	Workers      int
	QueryTimeout time.Duration
	Diagnostics  *Diagnostics
}

// RecordSource reads transfer records from a fixed set of stores.
// Each call re-queries the stores, so every consumer gets its own pass.
type RecordSource struct {
	stores []string
	opts   SourceOptions
	diag   *Diagnostics
}

// NewRecordSource validates paths. Missing paths are reported once as
// StoreUnavailable; the run only fails if no path exists at all.
func NewRecordSource(paths []string, opts SourceOptions) (*RecordSource, error) {
	if len(paths) == 0 {
		return nil, ErrNoStores
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	diag := opts.Diagnostics
	if diag == nil {
		diag = NewDiagnostics(context.Background())
	}

	s := &RecordSource{opts: opts, diag: diag}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true

		info, err := os.Stat(clean)
		if err == nil && info.IsDir() {
			err = errors.New("is a directory")
		}
		if err != nil {
			diag.StoreError(clean, "source", fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, clean, err))
			continue
		}
		s.stores = append(s.stores, clean)
	}
	if len(s.stores) == 0 {
		return nil, ErrNoUsableStores
	}
	return s, nil
}

// Stores returns the usable store paths in input order.
func (s *RecordSource) Stores() []string {
	return append([]string(nil), s.stores...)
}

// Diagnostics returns the collector shared by every consumer of the source.
func (s *RecordSource) Diagnostics() *Diagnostics {
	return s.diag
}

func (s *RecordSource) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.QueryTimeout)
}

const recordColumns = `COALESCE("Direction", ''), COALESCE("Username", ''), COALESCE("Filename", ''),
	CAST(COALESCE("Size", 0) AS INTEGER), CAST(COALESCE("BytesTransferred", 0) AS INTEGER),
	CAST(COALESCE("AverageSpeed", 0) AS REAL),
	"RequestedAt", "StartedAt", "EndedAt"`

// where builds the WHERE clause shared by every query.
func where(a Adapter, dir model.Direction, outcomes OutcomeFilter, since *time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	switch outcomes {
	case OnlySucceeded:
		conds = append(conds, a.Succeeded())
	case OnlyCompleted:
		conds = append(conds, a.Completed())
	}
	if dir != "" {
		conds = append(conds, `"Direction" = ?`)
		args = append(args, string(dir))
	}
	if since != nil {
		conds = append(conds, `"RequestedAt" >= ?`)
		args = append(args, since.Format("2006-01-02"))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Records lazily yields the records of one store matching q, ordered by
// rowid. An error is yielded at most once and ends the sequence.
func (s *RecordSource) Records(ctx context.Context, store string, q Query) iter.Seq2[model.TransferRecord, error] {
	return func(yield func(model.TransferRecord, error) bool) {
		ctx, cancel := s.storeContext(ctx)
		defer cancel()

		st, err := OpenLogStore(ctx, store, s.opts.Passphrase)
		if err != nil {
			yield(model.TransferRecord{}, err)
			return
		}
		defer st.Close()

		a := st.Adapter()
		clause, args := where(a, q.Direction, q.Outcomes, q.Since)
		query := "SELECT " + recordColumns + ", " + a.column() +
			" FROM " + TransfersTable + clause + " ORDER BY rowid"

		rows, err := st.DB().QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.TransferRecord{}, fmt.Errorf("failed to query %s: %w", store, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows, a, store)
			if err != nil {
				yield(model.TransferRecord{}, fmt.Errorf("failed to read %s: %w", store, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.TransferRecord{}, fmt.Errorf("failed to read %s: %w", store, err))
		}
	}
}

func scanRecord(rows *sql.Rows, a Adapter, store string) (model.TransferRecord, error) {
	var (
		rec                       model.TransferRecord
		dir                       string
		requested, started, ended sql.NullString
		status                    sql.NullString
	)
	err := rows.Scan(&dir, &rec.Username, &rec.Filename,
		&rec.SizeBytes, &rec.BytesTransferred, &rec.AverageSpeed,
		&requested, &started, &ended, &status)
	if err != nil {
		return rec, err
	}

	rec.Store = store
	if d, ok := model.ParseDirection(dir); ok {
		rec.Direction = d
	} else {
		rec.Direction = model.Direction(dir)
	}
	if strings.TrimSpace(rec.Username) == "" {
		rec.Username = model.UnknownUser
	}
	if rec.SizeBytes < 0 {
		rec.SizeBytes = 0
	}
	if rec.BytesTransferred < 0 {
		rec.BytesTransferred = 0
	}
	if rec.AverageSpeed < 0 {
		rec.AverageSpeed = 0
	}
	rec.RequestedAt = parseTimestamp(requested)
	rec.StartedAt = parseTimestamp(started)
	rec.EndedAt = parseTimestamp(ended)
	rec.Status = status.String
	rec.Outcome = a.Classify(rec.Status)
	return rec, nil
}

// All yields the records of every store in input order. A failing store is
// reported to the diagnostics under component and the rest of it skipped.
func (s *RecordSource) All(ctx context.Context, component string, q Query) iter.Seq[model.TransferRecord] {
	return func(yield func(model.TransferRecord) bool) {
		for _, store := range s.stores {
			for rec, err := range s.Records(ctx, store, q) {
				if err != nil {
					s.diag.StoreError(store, component, err)
					break
				}
				if !yield(rec) {
					return
				}
			}
		}
	}
}

// AttemptCounts holds terminal attempt counts. Succeeded and Errored are
// subsets of Completed.
type AttemptCounts struct {
	Completed int64 `json:"completed"`
	Succeeded int64 `json:"succeeded"`
	Errored   int64 `json:"errored"`
}

// Other is the number of terminal attempts that neither succeeded nor errored.
func (c AttemptCounts) Other() int64 {
	return c.Completed - c.Succeeded - c.Errored
}

// Add accumulates o into c.
func (c *AttemptCounts) Add(o AttemptCounts) {
	c.Completed += o.Completed
	c.Succeeded += o.Succeeded
	c.Errored += o.Errored
}

// Attempts counts the terminal attempts of one store in a single query.
func (s *RecordSource) Attempts(ctx context.Context, store string, dir model.Direction, since *time.Time) (AttemptCounts, error) {
	var c AttemptCounts
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	err := withStore(ctx, store, s.opts.Passphrase, func(st *LogStore) error {
		a := st.Adapter()
		clause, args := where(a, dir, OnlyCompleted, since)
		query := "SELECT COUNT(*)," +
			" COALESCE(SUM(CASE WHEN " + a.Succeeded() + " THEN 1 ELSE 0 END), 0)," +
			" COALESCE(SUM(CASE WHEN " + a.Errored() + " THEN 1 ELSE 0 END), 0)" +
			" FROM " + TransfersTable + clause
		if err := st.DB().QueryRowContext(ctx, query, args...).Scan(&c.Completed, &c.Succeeded, &c.Errored); err != nil {
			return fmt.Errorf("failed to count attempts in %s: %w", store, err)
		}
		return nil
	})
	return c, err
}

// DailyAttemptCounts holds terminal attempt counts per UTC day.
type DailyAttemptCounts struct {
	Days map[string]AttemptCounts
	// Undated counts attempts whose RequestedAt could not be parsed.
	Undated int
}

// DailyAttempts counts the terminal attempts of one store per UTC day of
// RequestedAt. Days are keyed "2006-01-02".
func (s *RecordSource) DailyAttempts(ctx context.Context, store string, dir model.Direction, since *time.Time) (DailyAttemptCounts, error) {
	out := DailyAttemptCounts{Days: make(map[string]AttemptCounts)}
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	err := withStore(ctx, store, s.opts.Passphrase, func(st *LogStore) error {
		a := st.Adapter()
		clause, args := where(a, dir, OnlyCompleted, since)
		query := `SELECT "RequestedAt", ` + a.column() + " FROM " + TransfersTable + clause + " ORDER BY rowid"

		rows, err := st.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", store, err)
		}
		defer rows.Close()

		for rows.Next() {
			var requested, status sql.NullString
			if err := rows.Scan(&requested, &status); err != nil {
				return fmt.Errorf("failed to read %s: %w", store, err)
			}
			if !a.IsCompleted(status.String) {
				continue
			}
			t := parseTimestamp(requested)
			if t == nil {
				out.Undated++
				continue
			}
			day := DayKey(*t)
			c := out.Days[day]
			c.Completed++
			switch a.Classify(status.String) {
			case model.OutcomeSucceeded:
				c.Succeeded++
			case model.OutcomeErrored:
				c.Errored++
			}
			out.Days[day] = c
		}
		return rows.Err()
	})
	return out, err
}

// SampleFilenames returns up to limit filenames of successful downloads in
// rowid order. Missing filenames are returned as "".
func (s *RecordSource) SampleFilenames(ctx context.Context, store string, limit int) ([]string, error) {
	var names []string
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	err := withStore(ctx, store, s.opts.Passphrase, func(st *LogStore) error {
		a := st.Adapter()
		clause, args := where(a, model.DirectionDownload, OnlySucceeded, nil)
		query := `SELECT COALESCE("Filename", '') FROM ` + TransfersTable + clause + ` ORDER BY rowid LIMIT ?`
		args = append(args, limit)

		rows, err := st.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to sample %s: %w", store, err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("failed to read %s: %w", store, err)
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	return names, err
}

// StoreResult is the outcome of one per-store task.
type StoreResult[T any] struct {
	Store string
	Value T
	Err   error
}

// ForEachStore runs fn once per store on a bounded worker pool. Results are
// indexed by store position, so merging them in order is deterministic.
// fn errors are returned per store and never cancel the other stores.
func ForEachStore[T any](ctx context.Context, s *RecordSource, fn func(ctx context.Context, store string) (T, error)) []StoreResult[T] {
	results := make([]StoreResult[T], len(s.stores))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, store := range s.stores {
		g.Go(func() error {
			v, err := fn(gctx, store)
			results[i] = StoreResult[T]{Store: store, Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
