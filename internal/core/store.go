// Package core provides read-only access and analysis over slskd transfer-log stores.
//
// INVARIANTS:
// - Stores are opened read-only and never written
// - Every connection is scoped to one operation and closed on all exit paths
// - Encrypted stores are unlocked with a SQLCipher key (never hardcoded)
// - A wrong key or unreadable file fails the store, not the run
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/transferstats/transferstats/internal/logging"
)

// ErrStoreUnavailable marks a store that could not be opened or verified.
var ErrStoreUnavailable = errors.New("store unavailable")

// LogStore wraps a read-only connection to one transfer-log store.
type LogStore struct {
	db        *sql.DB
	path      string
	encrypted bool
	adapter   Adapter
}

// OpenLogStore opens a transfer-log store read-only and detects its layout.
// If passphrase is empty the store is opened as plain SQLite.
func OpenLogStore(ctx context.Context, path, passphrase string) (*LogStore, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s: is a directory", ErrStoreUnavailable, path)
	}

	db, err := sql.Open("sqlite3", storeDSN(path, passphrase))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)

	// Reading the schema fails if the key is wrong or the file is not a database.
	var tables int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: invalid passphrase or corrupted store: %v", ErrStoreUnavailable, path, err)
	}

	adapter, _ := DetectFormat(ctx, db)

	return &LogStore{
		db:        db,
		path:      path,
		encrypted: passphrase != "",
		adapter:   adapter,
	}, nil
}

// storeDSN builds a read-only SQLite URI for path.
func storeDSN(path, passphrase string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(path)
	dsn := "file:" + escaped + "?mode=ro"
	if passphrase != "" {
		dsn += "&_pragma_key=" + url.QueryEscape(passphrase)
	}
	return dsn
}

// DB returns the underlying database connection.
func (s *LogStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *LogStore) Close() error {
	return s.db.Close()
}

// Path returns the store file path.
func (s *LogStore) Path() string {
	return s.path
}

// IsEncrypted reports whether the store was opened with a key.
func (s *LogStore) IsEncrypted() bool {
	return s.encrypted
}

// Adapter returns the layout detected when the store was opened.
func (s *LogStore) Adapter() Adapter {
	return s.adapter
}

// withStore opens path, runs fn and closes the store on every path.
func withStore(ctx context.Context, path, passphrase string, fn func(*LogStore) error) error {
	st, err := OpenLogStore(ctx, path, passphrase)
	if err != nil {
		return err
	}
	defer st.Close()

	logging.Ctx(ctx).Debug().
		Str("store", st.Path()).
		Bool("encrypted", st.IsEncrypted()).
		Str("format", st.Adapter().Format.String()).
		Msg("store opened")
	return fn(st)
}

// timestampLayouts are the textual forms slskd and its tooling write.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.9999999",
	"2006-01-02T15:04:05.9999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.9999999Z07:00",
	"2006-01-02T15:04:05.9999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a stored timestamp into UTC. Values without a zone
// are taken as UTC. Unparsable or empty values return nil.
func parseTimestamp(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	s := strings.TrimSpace(v.String)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
