package mediapath

import (
	"testing"
)

func TestParser_Parse(t *testing.T) {
	p := NewParser(DefaultOptions())

	tests := []struct {
		name     string
		path     string
		artist   string
		album    string
		strategy string
	}{
		{"marker root", "Music/Radiohead/OK Computer/01 Airbag.flac", "Radiohead", "OK Computer", "marker"},
		{"marker case insensitive", "/srv/MUSIC/Portishead/Dummy/03 Sour Times.mp3", "Portishead", "Dummy", "marker"},
		{"consecutive markers", "Music/Jazz/Miles Davis/Kind of Blue/01 So What.flac", "Miles Davis", "Kind of Blue", "marker"},
		{"combined folder", "Radiohead - OK Computer/02 Paranoid Android.mp3", "Radiohead", "OK Computer", "filtered"},
		{"windows share", `C:\Users\bob\Downloads\Artist\Album\CD1\01 - Track.flac`, "Artist", "Album", "filtered"},
		{"noise prefixes", "@@user/share/Artist/Album/01.flac", "Artist", "Album", "filtered"},
		{"no file", "Boards of Canada/Geogaddi", "Boards of Canada", "Geogaddi", "filtered"},
		{"marker inside hierarchy", "Music/Radiohead/Albums/OK Computer/01 Airbag.flac", "Radiohead", "OK Computer", "marker"},
		{"noise word as artist prefix", "Homeboy Sandman/Hallways/01 Relevant.mp3", "Homeboy Sandman", "Hallways", "filtered"},
		{"noise word with suffix", "Volume2/Incoming/Can/Tago Mago/01 Mushroom.flac", "Can", "Tago Mago", "filtered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := p.Parse(tt.path)
			if !ok {
				t.Fatalf("expected a match for %q", tt.path)
			}
			if m.Artist != tt.artist {
				t.Errorf("expected artist %q, got %q", tt.artist, m.Artist)
			}
			if m.Album != tt.album {
				t.Errorf("expected album %q, got %q", tt.album, m.Album)
			}
			if m.Strategy != tt.strategy {
				t.Errorf("expected strategy %q, got %q", tt.strategy, m.Strategy)
			}
		})
	}
}

func TestParser_CombinedFolderKeepsRawAlbum(t *testing.T) {
	p := NewParser(DefaultOptions())

	m, ok := p.Parse("Radiohead - OK Computer/02 Paranoid Android.mp3")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.RawAlbum != "Radiohead - OK Computer" {
		t.Errorf("expected raw album 'Radiohead - OK Computer', got %q", m.RawAlbum)
	}
}

func TestParser_NoMatch(t *testing.T) {
	p := NewParser(DefaultOptions())

	paths := []string{
		"",
		"   ",
		"song.mp3",
		"Music/01 Track.flac",
		"@@user/share/01.flac",
	}
	for _, path := range paths {
		if m, ok := p.Parse(path); ok {
			t.Errorf("expected no match for %q, got %+v", path, m)
		}
	}
}

func TestParser_Deterministic(t *testing.T) {
	p := NewParser(DefaultOptions())
	path := `D:\slskd\downloads\Aphex Twin\Selected Ambient Works 85-92\07 Green Calx.flac`

	first, ok1 := p.Parse(path)
	second, ok2 := p.Parse(path)
	if ok1 != ok2 || first != second {
		t.Errorf("parse not deterministic: %+v/%v vs %+v/%v", first, ok1, second, ok2)
	}
}

func TestParser_CustomThresholds(t *testing.T) {
	// A short-segment limit of 1 disables the volume/ID rule.
	opts := DefaultOptions()
	opts.ShortSegmentLen = 1
	p := NewParser(opts)

	m, ok := p.Parse("Artist/Vol-1")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Album != "Vol-1" {
		t.Errorf("expected album 'Vol-1', got %q", m.Album)
	}

	if _, ok := NewParser(DefaultOptions()).Parse("Artist/Vol-1"); ok {
		t.Error("default thresholds should drop 'Vol-1'")
	}
}

func TestParser_CustomMarkers(t *testing.T) {
	opts := DefaultOptions()
	opts.Markers = []string{"library"}
	p := NewParser(opts)

	m, ok := p.Parse("x/Library/Can/Tago Mago/01.flac")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Strategy != "marker" || m.Artist != "Can" || m.Album != "Tago Mago" {
		t.Errorf("unexpected match %+v", m)
	}
}

func TestParser_Explain(t *testing.T) {
	p := NewParser(DefaultOptions())

	tr := p.Explain(`@@user\share\Artist\Album\01.flac`)
	if tr.Normalized != "@@user/share/Artist/Album/01.flac" {
		t.Errorf("unexpected normalized path %q", tr.Normalized)
	}
	if len(tr.Segments) != 5 {
		t.Errorf("expected 5 segments, got %d", len(tr.Segments))
	}
	if tr.Strategy != "filtered" {
		t.Errorf("expected filtered strategy, got %q", tr.Strategy)
	}
	if len(tr.Dropped) != 3 {
		t.Fatalf("expected 3 dropped segments, got %+v", tr.Dropped)
	}
	if tr.Dropped[2].Segment != "01.flac" || tr.Dropped[2].Reason != "volume or id" {
		t.Errorf("unexpected drop %+v", tr.Dropped[2])
	}
	if !tr.Matched {
		t.Error("expected a match")
	}

	empty := p.Explain("")
	if empty.Matched || empty.Reason == "" {
		t.Errorf("empty path should explain a miss, got %+v", empty)
	}
}

func TestParser_ExplainMarker(t *testing.T) {
	p := NewParser(DefaultOptions())

	tr := p.Explain("Music/Radiohead/OK Computer/01 Airbag.flac")
	if tr.Marker != "Music" {
		t.Errorf("expected marker 'Music', got %q", tr.Marker)
	}
	if len(tr.Dropped) != 0 {
		t.Errorf("marker strategy should not drop segments, got %+v", tr.Dropped)
	}

	tr = p.Explain("Music/Radiohead/Albums/OK Computer/01 Airbag.flac")
	if len(tr.Dropped) != 1 || tr.Dropped[0].Segment != "Albums" || tr.Dropped[0].Reason != "marker" {
		t.Errorf("expected 'Albums' dropped as a marker, got %+v", tr.Dropped)
	}
}

func TestConfidence(t *testing.T) {
	p := NewParser(DefaultOptions())

	paths := []string{
		"Music/Radiohead/OK Computer/01 Airbag.flac",
		"song.mp3",
		"Radiohead - OK Computer/02 Paranoid Android.mp3",
		"",
	}
	r := Confidence(p, paths, 1)
	if r.Sampled != 4 || r.Matched != 2 {
		t.Errorf("expected 2 of 4 matched, got %d of %d", r.Matched, r.Sampled)
	}
	if r.Percentage != 50 {
		t.Errorf("expected 50%%, got %v", r.Percentage)
	}
	if len(r.Examples) != 1 {
		t.Fatalf("expected 1 example, got %d", len(r.Examples))
	}
	if r.Examples[0].Artist != "Radiohead" {
		t.Errorf("unexpected example %+v", r.Examples[0])
	}

	empty := Confidence(p, nil, 10)
	if empty.Percentage != 0 || empty.Sampled != 0 {
		t.Errorf("empty sample should report 0, got %+v", empty)
	}
}
