package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/transferstats/transferstats/internal/model"
)

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ExtUnknown},
		{"Music/Artist/Album/01 Track.FLAC", ".flac"},
		{`C:\Users\bob\song.Mp3`, ".mp3"},
		{"folder.with.dots/README", ExtNone},
		{"archive.tar.gz", ".gz"},
		{".hidden", ExtNone},
		{"dir/..hidden", ExtNone},
		{"trailing.", ExtNone},
		{"noext", ExtNone},
	}
	for _, tt := range tests {
		if got := ExtensionOf(tt.in); got != tt.want {
			t.Errorf("ExtensionOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAggregator_MergesBothFormats(t *testing.T) {
	dir := tempDir(t)
	a := createStore(t, dir, "old.db", FormatA, []transferRow{
		succeeded("Upload", "alice", "Music/A/B/01.flac", 100),
	})
	b := createStore(t, dir, "new.db", FormatB, []transferRow{
		succeeded("Upload", "alice", "Music/A/B/02.flac", 200),
	})

	src := newTestSource(t, a, b)
	s := NewAggregator(src).Summarize(context.Background(), model.DirectionUpload, nil)

	alice, ok := s.Users.Get("alice")
	if !ok {
		t.Fatal("expected a tally for alice")
	}
	if alice.Count != 2 || alice.Bytes != 300 {
		t.Errorf("expected alice {2 300}, got %+v", alice)
	}
	if s.TotalTransfers != 2 || s.TotalBytes != 300 || s.UniqueUsers != 1 {
		t.Errorf("unexpected totals %+v", s)
	}
	if s.FlacFiles != 2 {
		t.Errorf("expected 2 flac files, got %d", s.FlacFiles)
	}
}

func TestAggregator_MissingStore(t *testing.T) {
	dir := tempDir(t)
	good := createStore(t, dir, "good.db", FormatB, []transferRow{
		succeeded("Upload", "bob", "x.mp3", 50),
	})

	src := newTestSource(t, filepath.Join(dir, "missing.db"), good)
	s := NewAggregator(src).Summarize(context.Background(), model.DirectionUpload, nil)

	if s.TotalBytes != 50 {
		t.Errorf("expected 50 bytes, got %d", s.TotalBytes)
	}
	if n := src.Diagnostics().Count(model.DiagStoreUnavailable); n != 1 {
		t.Errorf("expected 1 StoreUnavailable diagnostic, got %d", n)
	}
}

func TestAggregator_ZeroSpeedExcluded(t *testing.T) {
	dir := tempDir(t)
	path := createStore(t, dir, "s.db", FormatA, []transferRow{
		succeeded("Upload", "carol", "x.mp3", 10),
	})

	s := NewAggregator(newTestSource(t, path)).Summarize(context.Background(), model.DirectionUpload, nil)
	if s.SpeedSamples != 0 || s.AvgSpeed != 0 {
		t.Errorf("zero speed must not be sampled, got %d samples avg %v", s.SpeedSamples, s.AvgSpeed)
	}

	fast := succeeded("Upload", "carol", "y.mp3", 10)
	fast.Speed = 3000
	slow := succeeded("Upload", "carol", "z.mp3", 10)
	slow.Speed = 1000
	path = createStore(t, dir, "t.db", FormatA, []transferRow{fast, slow, succeeded("Upload", "carol", "w.mp3", 10)})

	s = NewAggregator(newTestSource(t, path)).Summarize(context.Background(), model.DirectionUpload, nil)
	if s.SpeedSamples != 2 || s.AvgSpeed != 2000 {
		t.Errorf("expected 2 samples averaging 2000, got %d / %v", s.SpeedSamples, s.AvgSpeed)
	}
	if s.MinSpeed != 1000 || s.MaxSpeed != 3000 {
		t.Errorf("expected min 1000 max 3000, got %v / %v", s.MinSpeed, s.MaxSpeed)
	}
}

func TestAggregator_Attempts(t *testing.T) {
	dir := tempDir(t)
	rows := []transferRow{
		succeeded("Upload", "a", "1.mp3", 10),
		succeeded("Upload", "b", "2.mp3", 10),
		{Direction: "Upload", Username: "c", Filename: "3.mp3", Status: "Completed, Errored"},
		{Direction: "Upload", Username: "d", Filename: "4.mp3", Status: "Completed, Cancelled"},
		{Direction: "Upload", Username: "e", Filename: "5.mp3", Status: "InProgress"},
		{Direction: "Download", Username: "f", Filename: "6.mp3", Status: "Completed, Errored"},
	}
	path := createStore(t, dir, "a.db", FormatA, rows)

	s := NewAggregator(newTestSource(t, path)).Summarize(context.Background(), model.DirectionUpload, nil)

	if s.Attempts.Completed != 4 || s.Attempts.Succeeded != 2 || s.Attempts.Errored != 1 {
		t.Errorf("unexpected attempts %+v", s.Attempts)
	}
	if s.OtherTerminal != 1 {
		t.Errorf("expected 1 other terminal attempt, got %d", s.OtherTerminal)
	}
	if s.ErrorRate != 25 {
		t.Errorf("expected 25%% error rate, got %v", s.ErrorRate)
	}
	if s.Attempts.Succeeded+s.Attempts.Errored+s.OtherTerminal != s.Attempts.Completed {
		t.Error("succeeded, errored and other must partition completed")
	}
}

func TestAggregator_DecoratedStatusIsCompleted(t *testing.T) {
	dir := tempDir(t)
	ok := succeeded("Upload", "a", "1.mp3", 10)
	ok.Status = "Transfer Completed, Succeeded"
	failed := transferRow{Direction: "Upload", Username: "b", Filename: "2.mp3", Status: "Transfer Completed, Errored"}
	path := createStore(t, dir, "a.db", FormatA, []transferRow{ok, failed})

	s := NewAggregator(newTestSource(t, path)).Summarize(context.Background(), model.DirectionUpload, nil)

	if s.TotalTransfers != 1 {
		t.Fatalf("expected 1 successful transfer, got %d", s.TotalTransfers)
	}
	if s.Attempts.Completed != 2 || s.Attempts.Succeeded != 1 || s.Attempts.Errored != 1 {
		t.Errorf("completed must cover decorated outcomes, got %+v", s.Attempts)
	}
	if s.Attempts.Completed < s.TotalTransfers {
		t.Errorf("completed (%d) below successful transfers (%d)", s.Attempts.Completed, s.TotalTransfers)
	}
	if s.ErrorRate != 50 {
		t.Errorf("expected 50%% error rate, got %v", s.ErrorRate)
	}
}

func TestAggregator_TalliesPartitionTotals(t *testing.T) {
	dir := tempDir(t)
	path := createStore(t, dir, "a.db", FormatB, []transferRow{
		succeeded("Download", "alice", "Music/A/B/01.flac", 300),
		succeeded("Download", "bob", "Music/A/B/02.mp3", 120),
		succeeded("Download", "bob", "notes", 7),
		succeeded("Download", "carol", "", 40),
		succeeded("Download", "alice", "Music/A/C/03.FLAC", 500),
	})

	s := NewAggregator(newTestSource(t, path)).Summarize(context.Background(), model.DirectionDownload, nil)

	if s.TotalTransfers != 5 || s.TotalBytes != 967 {
		t.Fatalf("empty filenames must still count, got %d transfers / %d bytes", s.TotalTransfers, s.TotalBytes)
	}
	users, exts := s.Users.Sum(), s.Extensions.Sum()
	if users.Bytes != s.TotalBytes || exts.Bytes != s.TotalBytes {
		t.Errorf("bytes do not partition: users %d, extensions %d, total %d", users.Bytes, exts.Bytes, s.TotalBytes)
	}
	if users.Count != s.TotalTransfers || exts.Count != s.TotalTransfers {
		t.Errorf("counts do not partition: users %d, extensions %d, total %d", users.Count, exts.Count, s.TotalTransfers)
	}
	unknown, ok := s.Extensions.Get(ExtUnknown)
	if !ok || unknown.Count != 1 || unknown.Bytes != 40 {
		t.Errorf("expected %s {1 40}, got %+v", ExtUnknown, unknown)
	}
	if flac, _ := s.Extensions.Get(".flac"); flac.Bytes != 800 {
		t.Errorf("expected 800 .flac bytes, got %d", flac.Bytes)
	}
	if s.UniqueUsers != 3 {
		t.Errorf("expected 3 users, got %d", s.UniqueUsers)
	}
}

func TestAggregator_FormatBRequiresExactMatch(t *testing.T) {
	dir := tempDir(t)
	decorated := succeeded("Download", "a", "1.mp3", 10)
	decorated.Status = "Completed, Succeeded, Remotely"

	pathB := createStore(t, dir, "b.db", FormatB, []transferRow{decorated})
	s := NewAggregator(newTestSource(t, pathB)).Summarize(context.Background(), model.DirectionDownload, nil)
	if s.TotalTransfers != 0 || s.Attempts.Completed != 1 || s.OtherTerminal != 1 {
		t.Errorf("format B must match exactly, got %+v", s)
	}

	pathA := createStore(t, dir, "a.db", FormatA, []transferRow{decorated})
	s = NewAggregator(newTestSource(t, pathA)).Summarize(context.Background(), model.DirectionDownload, nil)
	if s.TotalTransfers != 1 {
		t.Errorf("format A allows decoration, got %d transfers", s.TotalTransfers)
	}
}

func TestAggregator_NoData(t *testing.T) {
	dir := tempDir(t)
	path := createStore(t, dir, "empty.db", FormatA, nil)

	src := newTestSource(t, path)
	s := NewAggregator(src).Summarize(context.Background(), model.DirectionUpload, nil)

	if !s.NoData || s.ErrorRate != 0 || s.AvgDuration != 0 {
		t.Errorf("expected an empty summary, got %+v", s)
	}
	if n := src.Diagnostics().Count(model.DiagNoUsableData); n != 1 {
		t.Errorf("expected 1 NoUsableData diagnostic, got %d", n)
	}
}

func TestAggregator_Durations(t *testing.T) {
	dir := tempDir(t)
	ok := succeeded("Upload", "a", "1.mp3", 10)
	backwards := succeeded("Upload", "a", "2.mp3", 10)
	backwards.Ended = "2024-03-01 09:00:00"
	missing := succeeded("Upload", "a", "3.mp3", 10)
	missing.Started = ""

	path := createStore(t, dir, "d.db", FormatA, []transferRow{ok, backwards, missing})
	src := newTestSource(t, path)
	s := NewAggregator(src).Summarize(context.Background(), model.DirectionUpload, nil)

	if s.DurationSamples != 1 || s.AvgDuration != 10 {
		t.Errorf("expected one 10s sample, got %d / %v", s.DurationSamples, s.AvgDuration)
	}
	if s.ExcludedDurations != 2 {
		t.Errorf("expected 2 excluded durations, got %d", s.ExcludedDurations)
	}
	if n := src.Diagnostics().Count(model.DiagMalformedTimestamp); n != 1 {
		t.Errorf("expected 1 MalformedTimestamp diagnostic, got %d", n)
	}
}

func TestAggregator_Since(t *testing.T) {
	dir := tempDir(t)
	old := succeeded("Upload", "a", "1.mp3", 10)
	old.Requested = "2024-01-01 10:00:00"
	recent := succeeded("Upload", "b", "2.mp3", 20)
	recent.Requested = "2024-03-10 23:59:00"

	path := createStore(t, dir, "s.db", FormatA, []transferRow{old, recent})
	now := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	since := Cutoff(now, 5)

	s := NewAggregator(newTestSource(t, path)).Summarize(context.Background(), model.DirectionUpload, since)
	if s.TotalTransfers != 1 || s.TotalBytes != 20 {
		t.Errorf("expected only the recent transfer, got %+v", s)
	}
}

func TestAggregator_Deterministic(t *testing.T) {
	dir := tempDir(t)
	var paths []string
	for i, user := range []string{"zed", "amy", "kim", "bo"} {
		paths = append(paths, createStore(t, dir, user+".db", Format(i%2), []transferRow{
			succeeded("Upload", user, user+".ogg", 100),
		}))
	}

	first := NewAggregator(newTestSource(t, paths...)).Summarize(context.Background(), model.DirectionUpload, nil)
	second := NewAggregator(newTestSource(t, paths...)).Summarize(context.Background(), model.DirectionUpload, nil)

	a, b := first.TopUsers(10), second.TopUsers(10)
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("expected 4 users, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("rank %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if a[0].Key != "zed" {
		t.Errorf("equal bytes should keep store order, got %s first", a[0].Key)
	}
}

func TestRecordSource_NoStores(t *testing.T) {
	if _, err := NewRecordSource(nil, SourceOptions{}); !errors.Is(err, ErrNoStores) {
		t.Errorf("expected ErrNoStores, got %v", err)
	}

	dir := tempDir(t)
	_, err := NewRecordSource([]string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, SourceOptions{})
	if !errors.Is(err, ErrNoUsableStores) {
		t.Errorf("expected ErrNoUsableStores, got %v", err)
	}
}

func TestRecordSource_CorruptStoreSkipped(t *testing.T) {
	dir := tempDir(t)
	good := createStore(t, dir, "good.db", FormatA, []transferRow{
		succeeded("Upload", "a", "1.mp3", 10),
	})
	noTable := filepath.Join(dir, "other.db")
	db := openFixture(t, noTable)
	if _, err := db.Exec(`CREATE TABLE Other (x TEXT)`); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	db.Close()

	src := newTestSource(t, noTable, good)
	s := NewAggregator(src).Summarize(context.Background(), model.DirectionUpload, nil)
	if s.TotalTransfers != 1 {
		t.Errorf("expected the good store to be counted, got %d", s.TotalTransfers)
	}
	if n := src.Diagnostics().Count(model.DiagQueryFailure); n != 1 {
		t.Errorf("expected 1 QueryFailure diagnostic, got %d", n)
	}
}

func TestRecordSource_Records(t *testing.T) {
	dir := tempDir(t)
	path := createStore(t, dir, "r.db", FormatB, []transferRow{
		succeeded("Upload", "", "1.mp3", 10),
		{Direction: "Upload", Username: "b", Filename: "2.mp3", Status: "Completed, Errored"},
		succeeded("Download", "c", "3.mp3", 30),
	})
	src := newTestSource(t, path)

	var got []model.TransferRecord
	for rec := range src.All(context.Background(), "test", Query{Outcomes: AnyOutcome}) {
		got = append(got, rec)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Username != model.UnknownUser {
		t.Errorf("empty username should become %q, got %q", model.UnknownUser, got[0].Username)
	}
	if got[1].Outcome != model.OutcomeErrored {
		t.Errorf("expected errored outcome, got %s", got[1].Outcome)
	}
	if got[2].Direction != model.DirectionDownload || got[2].RequestedAt == nil {
		t.Errorf("unexpected record %+v", got[2])
	}

	// Stopping early must not leak the connection or panic.
	for range src.All(context.Background(), "test", Query{Outcomes: AnyOutcome}) {
		break
	}
}
