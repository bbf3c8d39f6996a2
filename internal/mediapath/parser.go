// Package mediapath infers an (artist, album) pair from a transferred file path.
//
// INVARIANTS:
// - Pure: the same path always yields the same result
// - Never fails; an unusable path is reported as "no match"
// - Strategies are tried in a fixed order, the first applicable one wins
package mediapath

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options tunes the heuristics. The thresholds are empirical cutoffs.
type Options struct {
	// Markers are folder names that usually start an artist/album hierarchy.
	Markers []string

	// NoisePrefixes drop share/administrative segments in the marker-less path.
	NoisePrefixes []string

	// MinSegmentLen drops segments whose length is <= this value.
	MinSegmentLen int

	// ShortSegmentLen drops segments shorter than this that contain a digit,
	// hyphen or underscore (volume, disc and ID folders).
	ShortSegmentLen int
}

// DefaultMarkers is the ordered media-root marker list.
var DefaultMarkers = []string{
	"music",
	"audiobooks",
	"audio",
	"media",
	"artists",
	"albums",
	"mp3",
	"flac",
	"lossless",
	"soundtracks",
	"rock",
	"jazz",
	"classical",
	"electronic",
	"hip-hop",
	"hip hop",
	"metal",
	"pop",
	"folk",
	"blues",
	"ambient",
}

// DefaultNoisePrefixes is the default noise prefix list.
var DefaultNoisePrefixes = []string{
	"@@",
	"share",
	"users",
	"home",
	"mnt",
	"volume",
	"downloads",
	"incoming",
	"soulseek",
	"slskd",
	"documents",
	"desktop",
}

// DefaultOptions returns the stock heuristics.
func DefaultOptions() Options {
	return Options{
		Markers:         append([]string(nil), DefaultMarkers...),
		NoisePrefixes:   append([]string(nil), DefaultNoisePrefixes...),
		MinSegmentLen:   2,
		ShortSegmentLen: 8,
	}
}

// Match is a successful parse.
type Match struct {
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	RawAlbum string `json:"raw_album"`
	Strategy string `json:"strategy"`
}

// Strategy proposes candidate segments for a path. ok=false means the
// strategy does not apply and the next one is tried.
type Strategy struct {
	Name  string
	Apply func(p *Parser, segments []string, tr *Trace) (candidate []string, ok bool)
}

// Parser applies the ordered strategies.
type Parser struct {
	opts       Options
	markers    map[string]struct{}
	noise      []string
	strategies []Strategy
}

// NewParser creates a parser. Zero thresholds fall back to the defaults.
func NewParser(opts Options) *Parser {
	def := DefaultOptions()
	if opts.Markers == nil {
		opts.Markers = def.Markers
	}
	if opts.NoisePrefixes == nil {
		opts.NoisePrefixes = def.NoisePrefixes
	}
	if opts.MinSegmentLen <= 0 {
		opts.MinSegmentLen = def.MinSegmentLen
	}
	if opts.ShortSegmentLen <= 0 {
		opts.ShortSegmentLen = def.ShortSegmentLen
	}

	p := &Parser{
		opts:    opts,
		markers: make(map[string]struct{}, len(opts.Markers)),
	}
	for _, m := range opts.Markers {
		p.markers[strings.ToLower(m)] = struct{}{}
	}
	for _, n := range opts.NoisePrefixes {
		p.noise = append(p.noise, strings.ToLower(n))
	}
	p.strategies = []Strategy{
		{Name: "marker", Apply: markerStrategy},
		{Name: "filtered", Apply: filteredStrategy},
	}
	return p
}

// Options returns the effective options.
func (p *Parser) Options() Options {
	return p.opts
}

// Parse returns the (artist, album) pair for path, or ok=false.
func (p *Parser) Parse(path string) (Match, bool) {
	tr := p.Explain(path)
	if !tr.Matched {
		return Match{}, false
	}
	return Match{
		Artist:   tr.Artist,
		Album:    tr.Album,
		RawAlbum: tr.RawAlbum,
		Strategy: tr.Strategy,
	}, true
}

// Explain runs the parser and records every decision.
func (p *Parser) Explain(path string) *Trace {
	tr := &Trace{Path: path}
	if strings.TrimSpace(path) == "" {
		tr.Reason = "empty path"
		return tr
	}

	tr.Normalized = normalize(path)
	tr.Segments = splitSegments(tr.Normalized)

	var candidate []string
	for _, s := range p.strategies {
		c, ok := s.Apply(p, tr.Segments, tr)
		if ok {
			tr.Strategy = s.Name
			candidate = c
			break
		}
	}

	candidate = splitCombinedFolder(candidate, tr)
	tr.Candidate = candidate

	if len(candidate) < 2 {
		tr.Reason = "fewer than 2 usable segments"
		return tr
	}

	tr.Artist = candidate[0]
	tr.RawAlbum = candidate[1]
	tr.Album = CleanAlbum(tr.Artist, tr.RawAlbum)
	tr.Matched = true
	return tr
}

func normalize(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *Parser) isMarker(seg string) bool {
	_, ok := p.markers[strings.ToLower(seg)]
	return ok
}

// markerStrategy takes everything after the earliest marker segment. Later
// segments named like a marker (Music/Jazz/..., Artist/Albums/...) are
// dropped from the candidate.
func markerStrategy(p *Parser, segments []string, tr *Trace) ([]string, bool) {
	for i, seg := range segments {
		if !p.isMarker(seg) {
			continue
		}
		tr.Marker = seg
		rest := make([]string, 0, len(segments)-i-1)
		for _, s := range segments[i+1:] {
			if p.isMarker(s) {
				tr.Dropped = append(tr.Dropped, DroppedSegment{Segment: s, Reason: "marker"})
				continue
			}
			rest = append(rest, s)
		}
		return rest, true
	}
	return nil, false
}

// filteredStrategy drops noise segments and picks artist/album from what remains.
func filteredStrategy(p *Parser, segments []string, tr *Trace) ([]string, bool) {
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if reason := p.dropReason(seg); reason != "" {
			tr.Dropped = append(tr.Dropped, DroppedSegment{Segment: seg, Reason: reason})
			continue
		}
		kept = append(kept, seg)
	}

	switch n := len(kept); {
	case n >= 3 && strings.Contains(kept[n-1], "."):
		return []string{kept[n-3], kept[n-2]}, true
	case n >= 3:
		return []string{kept[n-2], kept[n-1]}, true
	default:
		return kept, true
	}
}

func (p *Parser) dropReason(seg string) string {
	lower := strings.ToLower(seg)
	for _, prefix := range p.noise {
		if hasNoisePrefix(lower, prefix) {
			return "noise prefix " + prefix
		}
	}

	n := utf8.RuneCountInString(seg)
	if n <= p.opts.MinSegmentLen {
		return "too short"
	}
	if isNumeric(seg) {
		return "numeric"
	}
	if n < p.opts.ShortSegmentLen && strings.ContainsAny(seg, "0123456789-_") {
		return "volume or id"
	}
	return ""
}

// hasNoisePrefix matches prefix at the start of seg. A prefix ending in a
// letter must also end at a word boundary, so "home" drops "Home" and
// "home2" but not "Homeboy Sandman".
func hasNoisePrefix(seg, prefix string) bool {
	if !strings.HasPrefix(seg, prefix) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(prefix)
	if !unicode.IsLetter(last) || len(seg) == len(prefix) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(seg[len(prefix):])
	return !unicode.IsLetter(next)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// splitCombinedFolder handles "Artist - Album/track.ext": the artist comes
// from the folder prefix and the whole folder name is the raw album.
func splitCombinedFolder(candidate []string, tr *Trace) []string {
	if len(candidate) != 2 || !strings.Contains(candidate[1], ".") {
		return candidate
	}
	folder := candidate[0]
	idx := strings.Index(folder, " - ")
	if idx <= 0 {
		return candidate
	}
	artist := strings.TrimSpace(folder[:idx])
	if artist == "" {
		return candidate
	}
	tr.SplitFolder = true
	return []string{artist, folder}
}
