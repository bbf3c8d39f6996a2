// Package model defines the core domain models for transferstats.
// Records are read from slskd transfer-log stores and never written back.
package model

import (
	"strings"
	"time"
)

// Direction is the side of a transfer relative to the local peer.
type Direction string

const (
	DirectionUpload   Direction = "Upload"
	DirectionDownload Direction = "Download"
)

// Directions lists both directions in report order.
var Directions = []Direction{DirectionUpload, DirectionDownload}

// ParseDirection accepts "upload", "download" (any case, singular or plural).
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upload", "uploads", "up":
		return DirectionUpload, true
	case "download", "downloads", "down":
		return DirectionDownload, true
	}
	return "", false
}

// Lower returns the lower-case name used in flags and JSON keys.
func (d Direction) Lower() string {
	return strings.ToLower(string(d))
}

// Outcome is the terminal classification of a transfer attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeErrored   Outcome = "errored"
	OutcomeOther     Outcome = "other"
)

// UnknownUser is substituted when a record carries no username.
const UnknownUser = "Unknown"

// Status markers shared by both store layouts.
const (
	StatusCompleted = "Completed"
	StatusSucceeded = "Completed, Succeeded"
	StatusErrored   = "Completed, Errored"
)

// TransferRecord is one completed or failed transfer attempt.
type TransferRecord struct {
	Store            string     `json:"store"`
	Direction        Direction  `json:"direction"`
	Username         string     `json:"username"`
	Filename         string     `json:"filename"`
	SizeBytes        int64      `json:"size_bytes"`
	BytesTransferred int64      `json:"bytes_transferred"`
	AverageSpeed     float64    `json:"average_speed"` // bytes/s, 0 = not measured
	RequestedAt      *time.Time `json:"requested_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Status           string     `json:"status"`
	Outcome          Outcome    `json:"outcome"`
}

// Duration returns EndedAt-StartedAt when both are set and the span is positive.
func (r *TransferRecord) Duration() (time.Duration, bool) {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0, false
	}
	d := r.EndedAt.Sub(*r.StartedAt)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// DiagnosticKind classifies a non-fatal event raised during an analysis run.
type DiagnosticKind string

const (
	DiagStoreUnavailable   DiagnosticKind = "store_unavailable"
	DiagQueryFailure       DiagnosticKind = "query_failure"
	DiagMalformedTimestamp DiagnosticKind = "malformed_timestamp"
	DiagNoUsableData       DiagnosticKind = "no_usable_data"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a structured skip/warning event surfaced to the caller.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Severity  Severity       `json:"severity"`
	Store     string         `json:"store,omitempty"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Count     int            `json:"count,omitempty"`
}
