package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/transferstats/transferstats/internal/core"
	"github.com/transferstats/transferstats/internal/mediapath"
	"github.com/transferstats/transferstats/internal/model"
)

const rule = "───────────────────────────────────────"

// summaryView is the JSON shape of a DirectionSummary with its user and
// extension tables cut to the requested length.
type summaryView struct {
	Direction         model.Direction       `json:"direction"`
	TotalTransfers    int64                 `json:"total_transfers"`
	TotalBytes        int64                 `json:"total_bytes"`
	DeclaredBytes     int64                 `json:"declared_bytes"`
	UniqueUsers       int                   `json:"unique_users"`
	AvgSpeed          float64               `json:"avg_speed"`
	MinSpeed          float64               `json:"min_speed"`
	MaxSpeed          float64               `json:"max_speed"`
	AvgDuration       float64               `json:"avg_duration_seconds"`
	ExcludedDurations int64                 `json:"excluded_durations"`
	Attempts          core.AttemptCounts    `json:"attempts"`
	OtherTerminal     int64                 `json:"other_terminal"`
	ErrorRate         float64               `json:"error_rate"`
	FlacFiles         int64                 `json:"flac_files"`
	Mp3Files          int64                 `json:"mp3_files"`
	TopUsers          []core.Ranked[string] `json:"top_users"`
	TopExtensions     []core.Ranked[string] `json:"top_extensions"`
	NoData            bool                  `json:"no_data"`
}

func newSummaryView(s core.DirectionSummary, top int) summaryView {
	return summaryView{
		Direction:         s.Direction,
		TotalTransfers:    s.TotalTransfers,
		TotalBytes:        s.TotalBytes,
		DeclaredBytes:     s.DeclaredBytes,
		UniqueUsers:       s.UniqueUsers,
		AvgSpeed:          s.AvgSpeed,
		MinSpeed:          s.MinSpeed,
		MaxSpeed:          s.MaxSpeed,
		AvgDuration:       s.AvgDuration,
		ExcludedDurations: s.ExcludedDurations,
		Attempts:          s.Attempts,
		OtherTerminal:     s.OtherTerminal,
		ErrorRate:         s.ErrorRate,
		FlacFiles:         s.FlacFiles,
		Mp3Files:          s.Mp3Files,
		TopUsers:          s.TopUsers(top),
		TopExtensions:     s.TopExtensions(top),
		NoData:            s.NoData,
	}
}

type popularityView struct {
	Parsed     int64                        `json:"parsed"`
	Unparsed   int64                        `json:"unparsed"`
	TopArtists []core.Ranked[string]        `json:"top_artists"`
	TopAlbums  []core.Ranked[core.AlbumKey] `json:"top_albums"`
}

func newPopularityView(r *core.PopularityReport, top int) *popularityView {
	if r == nil {
		return nil
	}
	return &popularityView{
		Parsed:     r.Parsed,
		Unparsed:   r.Unparsed,
		TopArtists: r.TopArtists(top),
		TopAlbums:  r.TopAlbums(top),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, s core.DirectionSummary, top int) {
	name := string(s.Direction)
	if s.NoData {
		fmt.Fprintf(w, "No %s data found for the specified period.\n", s.Direction.Lower())
		return
	}

	fmt.Fprintf(w, "\n=== %s STATISTICS ===\n\n", strings.ToUpper(name))
	fmt.Fprintf(w, "Total %ss: %d\n", name, s.TotalTransfers)
	fmt.Fprintf(w, "Total Data %sed: %s\n", name, core.FormatSize(s.TotalBytes))
	fmt.Fprintf(w, "Unique Users: %d\n", s.UniqueUsers)
	if s.SpeedSamples > 0 {
		fmt.Fprintf(w, "Average %s Speed: %s (min %s, max %s)\n", name,
			core.FormatRate(s.AvgSpeed), core.FormatRate(s.MinSpeed), core.FormatRate(s.MaxSpeed))
	} else {
		fmt.Fprintf(w, "Average %s Speed: n/a\n", name)
	}
	if s.DurationSamples > 0 {
		fmt.Fprintf(w, "Average %s Duration: %s\n", name, core.FormatDuration(s.AvgDuration))
	} else {
		fmt.Fprintf(w, "Average %s Duration: n/a\n", name)
	}
	fmt.Fprintf(w, "Error Rate: %.2f%% (%d of %d)\n", s.ErrorRate, s.Attempts.Errored, s.Attempts.Completed)
	if s.OtherTerminal > 0 {
		fmt.Fprintf(w, "Other Terminal: %d\n", s.OtherTerminal)
	}
	fmt.Fprintf(w, "FLAC files: %d, MP3 files: %d\n", s.FlacFiles, s.Mp3Files)

	fmt.Fprintf(w, "\n--- Top Users by Data %sed ---\n", name)
	printRanked(w, s.TopUsers(top), func(k string) string { return k })

	fmt.Fprintln(w, "\n--- Top File Types ---")
	printRanked(w, s.TopExtensions(top), func(k string) string { return k })
}

func printRanked[K comparable](w io.Writer, rows []core.Ranked[K], label func(K) string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for i, r := range rows {
		fmt.Fprintf(w, "%d. %s: %d files, %s\n", i+1, label(r.Key), r.Count, core.FormatSize(r.Bytes))
	}
}

func printTrends(w io.Writer, rows []core.TimeSeriesRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No dated transfers found for the specified period.")
		return
	}
	fmt.Fprintf(w, "%-10s  %7s %10s %6s  %7s %10s %6s  %5s\n",
		"Date", "Up", "Up Size", "Err%", "Down", "Down Size", "Err%", "Users")
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s  %7d %10s %6.1f  %7d %10s %6.1f  %5d\n",
			r.Date,
			r.Upload.Count, core.FormatSize(r.Upload.Bytes), r.Upload.ErrorRate,
			r.Download.Count, core.FormatSize(r.Download.Bytes), r.Download.ErrorRate,
			r.DistinctUsers)
	}
}

func printPopularity(w io.Writer, r *core.PopularityReport, top int) {
	total := r.Parsed + r.Unparsed
	fmt.Fprintf(w, "\n=== POPULAR DOWNLOADS ===\n\n")
	fmt.Fprintf(w, "Parsed: %d of %d successful downloads (%.2f%%)\n", r.Parsed, total, core.Rate(r.Parsed, total))
	fmt.Fprintf(w, "Parsed Size: %s\n", core.FormatSize(r.Artists.Sum().Bytes))

	fmt.Fprintln(w, "\n--- Top Artists ---")
	printRanked(w, r.TopArtists(top), func(k string) string { return k })

	fmt.Fprintln(w, "\n--- Top Albums ---")
	printRanked(w, r.TopAlbums(top), func(k core.AlbumKey) string { return k.Artist + " - " + k.Album })
}

func printConfidence(w io.Writer, r mediapath.Report) {
	fmt.Fprintf(w, "Parsed %d of %d sampled paths (%.2f%%)\n", r.Matched, r.Sampled, r.Percentage)
	if len(r.Examples) == 0 {
		return
	}
	fmt.Fprintln(w, "\nExamples:")
	for _, ex := range r.Examples {
		fmt.Fprintf(w, "  %s\n    -> %s / %s\n", ex.Path, ex.Artist, ex.Album)
	}
}

func printTrace(w io.Writer, tr *mediapath.Trace) {
	fmt.Fprintf(w, "Path:       %s\n", tr.Path)
	fmt.Fprintf(w, "Segments:   %s\n", strings.Join(tr.Segments, " | "))
	if tr.Strategy != "" {
		fmt.Fprintf(w, "Strategy:   %s\n", tr.Strategy)
	}
	if tr.Marker != "" {
		fmt.Fprintf(w, "Marker:     %s\n", tr.Marker)
	}
	for _, d := range tr.Dropped {
		fmt.Fprintf(w, "Dropped:    %s (%s)\n", d.Segment, d.Reason)
	}
	if tr.SplitFolder {
		fmt.Fprintln(w, "Split:      combined \"Artist - Album\" folder")
	}
	if !tr.Matched {
		fmt.Fprintf(w, "Result:     no match (%s)\n", tr.Reason)
		return
	}
	fmt.Fprintf(w, "Artist:     %s\n", tr.Artist)
	if tr.RawAlbum != tr.Album {
		fmt.Fprintf(w, "Raw album:  %s\n", tr.RawAlbum)
	}
	fmt.Fprintf(w, "Album:      %s\n", tr.Album)
}

func printDiagnostics(w io.Writer, diags []model.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(w, "\nDiagnostics")
	fmt.Fprintln(w, rule)
	for _, d := range diags {
		where := d.Component
		if d.Store != "" {
			where = d.Store + " (" + d.Component + ")"
		}
		line := fmt.Sprintf("  [%s] %s: %s", d.Kind, where, d.Message)
		if d.Error != "" {
			line += ": " + d.Error
		}
		fmt.Fprintln(w, line)
	}
}

func printOverview(w io.Writer, o *core.Overview, top int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                   Transfer Log Overview                      ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stores: %s\n", strings.Join(o.Stores, ", "))
	if o.Since != nil {
		fmt.Fprintf(w, "Since:  %s\n", o.Since.Format("2006-01-02"))
	}

	for _, s := range o.Summaries {
		printSummary(w, s, top)
	}

	fmt.Fprintln(w, "\n=== DAILY ACTIVITY ===")
	fmt.Fprintln(w)
	printTrends(w, o.TimeSeries)

	if o.Popularity != nil {
		printPopularity(w, o.Popularity, top)
	}
	if o.Confidence != nil {
		fmt.Fprintln(w, "\n--- Parser Confidence ---")
		printConfidence(w, *o.Confidence)
	}

	printDiagnostics(w, o.Diagnostics)
	fmt.Fprintf(w, "\nGenerated: %s\n", o.GeneratedAt.Format("2006-01-02 15:04:05"))
}
