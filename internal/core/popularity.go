package core

import (
	"context"
	"time"

	"github.com/transferstats/transferstats/internal/mediapath"
	"github.com/transferstats/transferstats/internal/model"
)

// AlbumKey identifies an album by artist.
type AlbumKey struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// PopularityReport ranks artists and albums over successful downloads.
type PopularityReport struct {
	Artists  *Tallies[string]   `json:"artists"`
	Albums   *Tallies[AlbumKey] `json:"albums"`
	Parsed   int64              `json:"parsed"`
	Unparsed int64              `json:"unparsed"`
}

// TopArtists returns the n most downloaded artists.
func (r *PopularityReport) TopArtists(n int) []Ranked[string] {
	return r.Artists.Top(n, RankByCount)
}

// TopAlbums returns the n most downloaded albums.
func (r *PopularityReport) TopAlbums(n int) []Ranked[AlbumKey] {
	return r.Albums.Top(n, RankByCount)
}

// PopularityAccumulator tallies parsed downloads by artist and album.
type PopularityAccumulator struct {
	parser   *mediapath.Parser
	artists  Tallies[string]
	albums   Tallies[AlbumKey]
	parsed   int64
	unparsed int64
}

// NewPopularityAccumulator creates an accumulator using parser.
func NewPopularityAccumulator(parser *mediapath.Parser) *PopularityAccumulator {
	return &PopularityAccumulator{parser: parser}
}

// Observe adds one record. Only successful downloads whose path parses are
// tallied, by declared size.
func (a *PopularityAccumulator) Observe(rec model.TransferRecord) {
	if rec.Direction != model.DirectionDownload || rec.Outcome != model.OutcomeSucceeded {
		return
	}
	m, ok := a.parser.Parse(rec.Filename)
	if !ok {
		a.unparsed++
		return
	}
	a.parsed++
	a.artists.Add(m.Artist, rec.SizeBytes)
	a.albums.Add(AlbumKey{Artist: m.Artist, Album: m.Album}, rec.SizeBytes)
}

// Merge folds o into a.
func (a *PopularityAccumulator) Merge(o *PopularityAccumulator) {
	a.artists.Merge(&o.artists)
	a.albums.Merge(&o.albums)
	a.parsed += o.parsed
	a.unparsed += o.unparsed
}

// Report returns the accumulated tallies.
func (a *PopularityAccumulator) Report() PopularityReport {
	artists := &Tallies[string]{}
	artists.Merge(&a.artists)
	albums := &Tallies[AlbumKey]{}
	albums.Merge(&a.albums)
	return PopularityReport{
		Artists:  artists,
		Albums:   albums,
		Parsed:   a.parsed,
		Unparsed: a.unparsed,
	}
}

// PopularityAggregator applies a media path parser to successful downloads.
type PopularityAggregator struct {
	src    *RecordSource
	parser *mediapath.Parser
}

// NewPopularityAggregator creates an aggregator.
func NewPopularityAggregator(src *RecordSource, parser *mediapath.Parser) *PopularityAggregator {
	return &PopularityAggregator{src: src, parser: parser}
}

const (
	componentPopularity = "popularity"
	componentConfidence = "confidence"
)

// Popularity ranks artists and albums over successful downloads requested
// on or after since. A store that fails contributes nothing.
func (p *PopularityAggregator) Popularity(ctx context.Context, since *time.Time) PopularityReport {
	diag := p.src.Diagnostics()
	q := Query{Direction: model.DirectionDownload, Outcomes: OnlySucceeded, Since: since}
	results := ForEachStore(ctx, p.src, func(ctx context.Context, store string) (*PopularityAccumulator, error) {
		acc := NewPopularityAccumulator(p.parser)
		for rec, err := range p.src.Records(ctx, store, q) {
			if err != nil {
				return nil, err
			}
			acc.Observe(rec)
		}
		return acc, nil
	})

	total := NewPopularityAccumulator(p.parser)
	for _, r := range results {
		if r.Err != nil {
			diag.StoreError(r.Store, componentPopularity, r.Err)
			continue
		}
		total.Merge(r.Value)
	}

	report := total.Report()
	if report.Parsed == 0 {
		diag.NoUsableData(componentPopularity, "no successful downloads with a recognisable artist/album path")
	}
	return report
}

// Confidence samples up to sampleSize download filenames per store and
// reports how many the parser recognises.
func (p *PopularityAggregator) Confidence(ctx context.Context, sampleSize, maxExamples int) mediapath.Report {
	if sampleSize <= 0 {
		sampleSize = mediapath.DefaultSampleSize
	}
	if maxExamples < 0 {
		maxExamples = 0
	}
	diag := p.src.Diagnostics()
	results := ForEachStore(ctx, p.src, func(ctx context.Context, store string) ([]string, error) {
		return p.src.SampleFilenames(ctx, store, sampleSize)
	})

	var paths []string
	for _, r := range results {
		if r.Err != nil {
			diag.StoreError(r.Store, componentConfidence, r.Err)
			continue
		}
		paths = append(paths, r.Value...)
	}
	return mediapath.Confidence(p.parser, paths, maxExamples)
}
