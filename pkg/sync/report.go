package sync

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ObjectKind is the class of target object being reconciled.
type ObjectKind string

const (
	KindPrefix    ObjectKind = "prefix"
	KindDevice    ObjectKind = "device"
	KindInterface ObjectKind = "interface"
	KindIPAddress ObjectKind = "ip_address"
)

// kindOrder fixes the rendering order of the summary.
var kindOrder = []ObjectKind{KindPrefix, KindDevice, KindInterface, KindIPAddress}

// Outcome is the result of reconciling one object.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// KindSummary counts outcomes for one object kind.
type KindSummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (s KindSummary) total() int {
	return s.Created + s.Updated + s.Unchanged + s.Failed + s.Skipped
}

// Failure records one object that could not be reconciled, with enough
// context to diagnose without re-running.
type Failure struct {
	Kind   ObjectKind `json:"kind"`
	Key    string     `json:"key"`
	Reason string     `json:"reason"`
}

// Report accumulates the results of one run. It is safe for concurrent use;
// reconciliation workers record outcomes from multiple goroutines.
type Report struct {
	mu sync.Mutex

	// RunID identifies this run in logs and metrics.
	RunID string `json:"run_id"`

	// StartedAt and CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Summary counts outcomes per object kind.
	Summary map[ObjectKind]*KindSummary `json:"summary"`

	// Failures lists every object that failed or was cascade-skipped.
	Failures []Failure `json:"failures,omitempty"`

	// Warnings are non-fatal anomalies: mapping skips, degraded accounts,
	// promoted subnets.
	Warnings []string `json:"warnings,omitempty"`

	// Degraded is set when at least one account could not be enumerated.
	Degraded bool `json:"degraded,omitempty"`

	// Incomplete is set when the wall-clock budget expired before the run
	// finished. Applied writes are kept; the next run picks up the rest.
	Incomplete bool `json:"incomplete,omitempty"`
}

// NewReport creates an empty report for a run.
func NewReport(runID string) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: time.Now(),
		Summary:   make(map[ObjectKind]*KindSummary),
	}
}

// Observe records one reconciled object.
func (r *Report) Observe(kind ObjectKind, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.Summary[kind]
	if s == nil {
		s = &KindSummary{}
		r.Summary[kind] = s
	}
	switch outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// RecordFailure records a failed or skipped object with its reason.
func (r *Report) RecordFailure(kind ObjectKind, key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{Kind: kind, Key: key, Reason: reason})
}

// AddWarning appends a non-fatal anomaly.
func (r *Report) AddWarning(warning string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, warning)
}

// MarkDegraded flags the run as degraded.
func (r *Report) MarkDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Degraded = true
}

// MarkIncomplete flags the run as cut short by the wall-clock budget.
func (r *Report) MarkIncomplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Incomplete = true
}

// Finalize stamps the completion time.
func (r *Report) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CompletedAt = time.Now()
}

// Duration returns the run's wall-clock time.
func (r *Report) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CompletedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// FailureCount returns the number of objects that failed outright. Cascade
// skips are not counted twice; the failed parent already is.
func (r *Report) FailureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.Summary {
		n += s.Failed
	}
	return n
}

// Status summarizes the overall run result.
func (r *Report) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed := 0
	for _, s := range r.Summary {
		failed += s.Failed
	}
	switch {
	case r.Incomplete:
		return "incomplete"
	case failed > 0:
		return "partial"
	case r.Degraded:
		return "degraded"
	default:
		return "succeeded"
	}
}

// KindCounts returns a copy of the summary for one kind.
func (r *Report) KindCounts(kind ObjectKind) KindSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.Summary[kind]; s != nil {
		return *s
	}
	return KindSummary{}
}

// Render formats the report for terminal output.
func (r *Report) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", r.RunID, r.statusLocked())
	for _, kind := range kindOrder {
		s := r.Summary[kind]
		if s == nil || s.total() == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-10s created=%d updated=%d unchanged=%d failed=%d skipped=%d\n",
			kind, s.Created, s.Updated, s.Unchanged, s.Failed, s.Skipped)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "Failures:\n")
		failures := make([]Failure, len(r.Failures))
		copy(failures, r.Failures)
		sort.Slice(failures, func(i, j int) bool {
			if failures[i].Kind != failures[j].Kind {
				return failures[i].Kind < failures[j].Kind
			}
			return failures[i].Key < failures[j].Key
		})
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s %s: %s\n", f.Kind, f.Key, f.Reason)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return b.String()
}

// statusLocked mirrors Status for callers already holding the lock.
func (r *Report) statusLocked() string {
	failed := 0
	for _, s := range r.Summary {
		failed += s.Failed
	}
	switch {
	case r.Incomplete:
		return "incomplete"
	case failed > 0:
		return "partial"
	case r.Degraded:
		return "degraded"
	default:
		return "succeeded"
	}
}
