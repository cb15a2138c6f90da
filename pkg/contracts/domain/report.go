package domain

import "time"

// DataSource tells callers whether a result was computed from freshly fetched
// data or from a cached copy.
type DataSource string

const (
	SourceFresh DataSource = "fresh"
	SourceCache DataSource = "cache"
)

// Envelope wraps every service result with its provenance and processing notes.
type Envelope[T any] struct {
	RunID       string          `json:"run_id"`
	Source      DataSource      `json:"source"`
	GeneratedAt time.Time       `json:"generated_at"`
	Data        T               `json:"data"`
	Notes       ProcessingNotes `json:"notes"`
}

// ProcessingNotes counts the input that was filtered, left unmatched or lost
// to a failed fetch. Nothing in here is fatal.
type ProcessingNotes struct {
	FilteredRegistrations   map[string]int `json:"filtered_registrations,omitempty"`
	UnmatchedRegistrations  int            `json:"unmatched_registrations"`
	MatchedAttendance       int            `json:"matched_attendance"`
	UnmatchedAttendance     int            `json:"unmatched_attendance"`
	DroppedAttendance       int            `json:"dropped_attendance"`
	FailedSources           []string       `json:"failed_sources,omitempty"`
	FailedSubmissionFetches []string       `json:"failed_submission_fetches,omitempty"`
	SkippedPosts            int            `json:"skipped_posts"`
	Warnings                []string       `json:"warnings,omitempty"`
}

// AddFiltered records one filtered registration row under reason.
func (n *ProcessingNotes) AddFiltered(reason string) {
	if n.FilteredRegistrations == nil {
		n.FilteredRegistrations = make(map[string]int)
	}
	n.FilteredRegistrations[reason]++
}

// TotalFiltered returns the number of filtered registration rows.
func (n ProcessingNotes) TotalFiltered() int {
	total := 0
	for _, c := range n.FilteredRegistrations {
		total += c
	}
	return total
}

// Merge folds other into n.
func (n *ProcessingNotes) Merge(other ProcessingNotes) {
	for reason, c := range other.FilteredRegistrations {
		if n.FilteredRegistrations == nil {
			n.FilteredRegistrations = make(map[string]int)
		}
		n.FilteredRegistrations[reason] += c
	}
	n.UnmatchedRegistrations += other.UnmatchedRegistrations
	n.MatchedAttendance += other.MatchedAttendance
	n.UnmatchedAttendance += other.UnmatchedAttendance
	n.DroppedAttendance += other.DroppedAttendance
	n.FailedSources = append(n.FailedSources, other.FailedSources...)
	n.FailedSubmissionFetches = append(n.FailedSubmissionFetches, other.FailedSubmissionFetches...)
	n.SkippedPosts += other.SkippedPosts
	n.Warnings = append(n.Warnings, other.Warnings...)
}

// ReconcileReport is the result of a reconciliation run.
type ReconcileReport struct {
	Participants []*Participant   `json:"participants"`
	Sessions     []string         `json:"sessions"`
	Summary      ReconcileSummary `json:"summary"`
}

// ReconcileSummary aggregates a reconciliation run.
type ReconcileSummary struct {
	Participants  int            `json:"participants"`
	ByOrigin      map[string]int `json:"by_origin"`
	Discrepancies int            `json:"discrepancies"`
	BySeverity    map[string]int `json:"by_severity"`
}

// Summarize builds a ReconcileSummary from a participant list.
func Summarize(participants []*Participant) ReconcileSummary {
	s := ReconcileSummary{
		Participants: len(participants),
		ByOrigin:     make(map[string]int),
		BySeverity:   make(map[string]int),
	}
	for _, p := range participants {
		s.ByOrigin[string(p.Origin)]++
		for _, d := range p.Discrepancies {
			s.Discrepancies++
			s.BySeverity[string(d.Severity)]++
		}
	}
	return s
}
