package core

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// transferRow is one fixture row. Empty timestamps are stored as NULL.
type transferRow struct {
	Direction string
	Username  string
	Filename  string
	Size      int64
	Bytes     int64
	Speed     float64
	Requested string
	Started   string
	Ended     string
	Status    string
}

const schemaFormatA = `CREATE TABLE Transfers (
	Id TEXT NOT NULL PRIMARY KEY,
	Username TEXT,
	Direction TEXT NOT NULL,
	Filename TEXT,
	Size INTEGER NOT NULL,
	StartOffset INTEGER NOT NULL DEFAULT 0,
	State TEXT NOT NULL,
	RequestedAt TEXT NOT NULL,
	EnqueuedAt TEXT,
	StartedAt TEXT,
	EndedAt TEXT,
	BytesTransferred INTEGER NOT NULL,
	AverageSpeed REAL NOT NULL,
	Exception TEXT
)`

const schemaFormatB = `CREATE TABLE Transfers (
	Id TEXT NOT NULL PRIMARY KEY,
	Username TEXT,
	Direction TEXT NOT NULL,
	Filename TEXT,
	Size INTEGER NOT NULL,
	StartOffset INTEGER NOT NULL DEFAULT 0,
	State INTEGER NOT NULL,
	StateDescription TEXT NOT NULL,
	RequestedAt TEXT,
	EnqueuedAt TEXT,
	StartedAt TEXT,
	EndedAt TEXT,
	BytesTransferred INTEGER NOT NULL,
	AverageSpeed REAL NOT NULL,
	Exception TEXT
)`

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// createStore writes a transfer-log store in the given layout and returns its path.
func createStore(t *testing.T, dir, name string, format Format, rows []transferRow) string {
	t.Helper()
	path := filepath.Join(dir, name)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer db.Close()

	schema := schemaFormatA
	if format == FormatB {
		schema = schemaFormatB
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	for i, r := range rows {
		id := filepath.Base(path) + "-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		requested := r.Requested
		if format == FormatA && requested == "" {
			requested = "2024-01-01 00:00:00"
		}
		var err error
		if format == FormatB {
			_, err = db.Exec(`INSERT INTO Transfers
				(Id, Username, Direction, Filename, Size, State, StateDescription, RequestedAt, StartedAt, EndedAt, BytesTransferred, AverageSpeed)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, nullable(r.Username), r.Direction, r.Filename, r.Size, 48, r.Status,
				nullable(r.Requested), nullable(r.Started), nullable(r.Ended), r.Bytes, r.Speed)
		} else {
			_, err = db.Exec(`INSERT INTO Transfers
				(Id, Username, Direction, Filename, Size, State, RequestedAt, StartedAt, EndedAt, BytesTransferred, AverageSpeed)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, nullable(r.Username), r.Direction, r.Filename, r.Size, r.Status,
				requested, nullable(r.Started), nullable(r.Ended), r.Bytes, r.Speed)
		}
		if err != nil {
			t.Fatalf("failed to insert row %d: %v", i, err)
		}
	}
	return path
}

func newTestSource(t *testing.T, paths ...string) *RecordSource {
	t.Helper()
	src, err := NewRecordSource(paths, SourceOptions{
		Workers:     2,
		Diagnostics: NewDiagnostics(context.Background()),
	})
	if err != nil {
		t.Fatalf("failed to create record source: %v", err)
	}
	return src
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "transferstats-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func succeeded(dir, user, file string, bytes int64) transferRow {
	return transferRow{
		Direction: dir,
		Username:  user,
		Filename:  file,
		Size:      bytes,
		Bytes:     bytes,
		Requested: "2024-03-01 10:00:00",
		Started:   "2024-03-01 10:00:01",
		Ended:     "2024-03-01 10:00:11",
		Status:    "Completed, Succeeded",
	}
}
