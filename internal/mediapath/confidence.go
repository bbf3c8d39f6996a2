package mediapath

// DefaultSampleSize caps the number of paths sampled per store.
const DefaultSampleSize = 200

// DefaultMaxExamples caps the diagnostic examples kept in a report.
const DefaultMaxExamples = 10

// Example is one successful parse kept for display.
type Example struct {
	Path   string `json:"path"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// Report is the library-wide match percentage of the parser.
type Report struct {
	Sampled    int       `json:"sampled"`
	Matched    int       `json:"matched"`
	Percentage float64   `json:"percentage"`
	Examples   []Example `json:"examples"`
}

// Confidence parses every path and reports the share that matched.
func Confidence(p *Parser, paths []string, maxExamples int) Report {
	r := Report{Examples: []Example{}}
	for _, path := range paths {
		r.Sampled++
		m, ok := p.Parse(path)
		if !ok {
			continue
		}
		r.Matched++
		if len(r.Examples) < maxExamples {
			r.Examples = append(r.Examples, Example{Path: path, Artist: m.Artist, Album: m.Album})
		}
	}
	if r.Sampled > 0 {
		r.Percentage = float64(r.Matched) / float64(r.Sampled) * 100
	}
	return r
}
