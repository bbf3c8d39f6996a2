package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/transferstats/transferstats/internal/model"
)

// TransfersTable is the table slskd records transfer attempts in.
const TransfersTable = "Transfers"

// ErrNoTransfersTable is returned when a store has no Transfers columns.
var ErrNoTransfersTable = errors.New("no Transfers table")

// Format is a known layout of the Transfers table.
type Format int

const (
	// FormatA encodes completion state as a free-form status string.
	FormatA Format = iota
	// FormatB carries a numeric state plus an exact description column.
	FormatB
)

func (f Format) String() string {
	if f == FormatB {
		return "B"
	}
	return "A"
}

// Adapter exposes the outcome predicates of one store layout.
// Predicates are SQL fragments built from fixed markers only.
type Adapter struct {
	Format Format
	Column string
}

// DefaultAdapter is used whenever detection fails.
var DefaultAdapter = Adapter{Format: FormatA, Column: "State"}

// descriptionColumns and statusColumns are checked in order.
var (
	descriptionColumns = []string{"StateDescription", "StatusDescription"}
	statusColumns      = []string{"State", "Status"}
)

// DetectFormat inspects the Transfers columns of db. On failure it returns
// DefaultAdapter together with the error, so callers can always proceed.
func DetectFormat(ctx context.Context, db *sql.DB) (Adapter, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+TransfersTable+")")
	if err != nil {
		return DefaultAdapter, fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   sql.NullString
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return DefaultAdapter, fmt.Errorf("failed to read schema: %w", err)
		}
		columns[strings.ToLower(name)] = name
	}
	if err := rows.Err(); err != nil {
		return DefaultAdapter, fmt.Errorf("failed to read schema: %w", err)
	}
	if len(columns) == 0 {
		return DefaultAdapter, ErrNoTransfersTable
	}

	for _, c := range descriptionColumns {
		if name, ok := columns[strings.ToLower(c)]; ok {
			return Adapter{Format: FormatB, Column: name}, nil
		}
	}
	for _, c := range statusColumns {
		if name, ok := columns[strings.ToLower(c)]; ok {
			return Adapter{Format: FormatA, Column: name}, nil
		}
	}
	return DefaultAdapter, nil
}

func (a Adapter) column() string {
	return `"` + a.Column + `"`
}

// Completed matches any terminal attempt, succeeded, errored or otherwise.
// Format A status text may carry decoration before the outcome phrase, so
// it also matches anything Succeeded or Errored match.
func (a Adapter) Completed() string {
	prefix := a.column() + " LIKE '" + model.StatusCompleted + "%'"
	if a.Format == FormatB {
		return prefix
	}
	return "(" + prefix + " OR " + a.Succeeded() + " OR " + a.Errored() + ")"
}

// Succeeded matches successful attempts.
func (a Adapter) Succeeded() string {
	if a.Format == FormatB {
		return a.column() + " = '" + model.StatusSucceeded + "'"
	}
	return a.column() + " LIKE '%" + model.StatusSucceeded + "%'"
}

// Errored matches failed attempts.
func (a Adapter) Errored() string {
	if a.Format == FormatB {
		return a.column() + " = '" + model.StatusErrored + "'"
	}
	return a.column() + " LIKE '%" + model.StatusErrored + "%'"
}

// IsCompleted mirrors Completed for a status value read from the store.
func (a Adapter) IsCompleted(status string) bool {
	if hasPrefixFold(status, model.StatusCompleted) {
		return true
	}
	return a.Format == FormatA && a.Classify(status) != model.OutcomeOther
}

// Classify maps a status value to an outcome using the same rules as the
// SQL predicates. SQLite LIKE is case-insensitive for ASCII, so format A
// matching is too.
func (a Adapter) Classify(status string) model.Outcome {
	if a.Format == FormatB {
		switch status {
		case model.StatusSucceeded:
			return model.OutcomeSucceeded
		case model.StatusErrored:
			return model.OutcomeErrored
		}
		return model.OutcomeOther
	}

	lower := strings.ToLower(status)
	switch {
	case strings.Contains(lower, strings.ToLower(model.StatusSucceeded)):
		return model.OutcomeSucceeded
	case strings.Contains(lower, strings.ToLower(model.StatusErrored)):
		return model.OutcomeErrored
	}
	return model.OutcomeOther
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
