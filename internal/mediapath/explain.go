package mediapath

// DroppedSegment is a segment removed by the marker-less filter.
type DroppedSegment struct {
	Segment string `json:"segment"`
	Reason  string `json:"reason"`
}

// Trace records how a path was parsed.
type Trace struct {
	Path        string           `json:"path"`
	Normalized  string           `json:"normalized"`
	Segments    []string         `json:"segments"`
	Strategy    string           `json:"strategy,omitempty"`
	Marker      string           `json:"marker,omitempty"`
	Dropped     []DroppedSegment `json:"dropped,omitempty"`
	SplitFolder bool             `json:"split_folder,omitempty"`
	Candidate   []string         `json:"candidate,omitempty"`
	Matched     bool             `json:"matched"`
	Artist      string           `json:"artist,omitempty"`
	RawAlbum    string           `json:"raw_album,omitempty"`
	Album       string           `json:"album,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}
