package core

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/transferstats/transferstats/internal/logging"
	"github.com/transferstats/transferstats/internal/model"
)

// Diagnostics collects non-fatal events raised while analysing stores.
// It is safe for concurrent use.
type Diagnostics struct {
	mu          sync.Mutex
	entries     []model.Diagnostic
	unavailable map[string]bool
	logger      *zerolog.Logger
}

// NewDiagnostics creates a collector that also logs every entry through the
// logger carried by ctx.
func NewDiagnostics(ctx context.Context) *Diagnostics {
	return &Diagnostics{
		unavailable: make(map[string]bool),
		logger:      logging.Ctx(ctx),
	}
}

// Add records a diagnostic. StoreUnavailable is kept once per store.
func (d *Diagnostics) Add(diag model.Diagnostic) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if diag.Kind == model.DiagStoreUnavailable {
		if d.unavailable[diag.Store] {
			return
		}
		d.unavailable[diag.Store] = true
	}
	if diag.Severity == "" {
		diag.Severity = model.SeverityWarning
	}
	d.entries = append(d.entries, diag)
	d.log(diag)
}

func (d *Diagnostics) log(diag model.Diagnostic) {
	if d.logger == nil {
		return
	}
	var ev *zerolog.Event
	switch diag.Severity {
	case model.SeverityInfo:
		ev = d.logger.Info()
	case model.SeverityError:
		ev = d.logger.Error()
	default:
		ev = d.logger.Warn()
	}
	ev = ev.Str("kind", string(diag.Kind))
	if diag.Store != "" {
		ev = ev.Str("store", diag.Store)
	}
	if diag.Component != "" {
		ev = ev.Str("component", diag.Component)
	}
	if diag.Error != "" {
		ev = ev.Str("error", diag.Error)
	}
	if diag.Count > 0 {
		ev = ev.Int("count", diag.Count)
	}
	ev.Msg(diag.Message)
}

// StoreError records a failed store access. Open failures become
// StoreUnavailable, anything else QueryFailure.
func (d *Diagnostics) StoreError(store, component string, err error) {
	kind := model.DiagQueryFailure
	msg := "query failed, store skipped"
	if errors.Is(err, ErrStoreUnavailable) {
		kind = model.DiagStoreUnavailable
		msg = "store unavailable, skipped"
	}
	d.Add(model.Diagnostic{
		Kind:      kind,
		Severity:  model.SeverityWarning,
		Store:     store,
		Component: component,
		Message:   msg,
		Error:     err.Error(),
	})
}

// MalformedTimestamps records records excluded for unusable timestamps.
func (d *Diagnostics) MalformedTimestamps(store, component, message string, count int) {
	if count == 0 {
		return
	}
	d.Add(model.Diagnostic{
		Kind:      model.DiagMalformedTimestamp,
		Severity:  model.SeverityInfo,
		Store:     store,
		Component: component,
		Message:   message,
		Count:     count,
	})
}

// NoUsableData records an aggregate that produced no rows.
func (d *Diagnostics) NoUsableData(component, message string) {
	d.Add(model.Diagnostic{
		Kind:      model.DiagNoUsableData,
		Severity:  model.SeverityInfo,
		Component: component,
		Message:   message,
	})
}

// Entries returns a sorted copy of the recorded diagnostics.
func (d *Diagnostics) Entries() []model.Diagnostic {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	out := make([]model.Diagnostic, len(d.entries))
	copy(out, d.entries)
	d.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Store != out[j].Store {
			return out[i].Store < out[j].Store
		}
		if out[i].Component != out[j].Component {
			return out[i].Component < out[j].Component
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Count returns how many diagnostics of kind were recorded.
func (d *Diagnostics) Count(kind model.DiagnosticKind) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
