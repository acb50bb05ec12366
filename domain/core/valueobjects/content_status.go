package valueobjects

import (
	"fmt"

	pkgerrors "contentforge/pkg/errors"
)

// ContentStatus represents a content node's position in the editorial
// lifecycle. The zero value StatusUnset means the node has not entered the
// pipeline yet.
type ContentStatus string

const (
	StatusUnset            ContentStatus = ""
	StatusSuggested        ContentStatus = "suggested"
	StatusQueued           ContentStatus = "queued"
	StatusPlanning         ContentStatus = "planning"
	StatusWriting          ContentStatus = "writing"
	StatusReviewingWriting ContentStatus = "reviewing-writing"
	StatusPendingReview    ContentStatus = "pending-review"
	StatusScheduled        ContentStatus = "scheduled"
	StatusPublished        ContentStatus = "published"

	// Side branches
	StatusSuggestionRejected ContentStatus = "suggestion-rejected"
	StatusReviewDenied       ContentStatus = "review-denied"
	StatusDeleted            ContentStatus = "deleted"

	// Failure branch, reachable from planning or writing
	StatusGenerationFailed ContentStatus = "generation-failed"
)

// transitions is the forward edge set of the lifecycle state machine.
var transitions = map[ContentStatus][]ContentStatus{
	// A freshly created node may enter the pipeline through suggestion
	// triage or start generating directly.
	StatusUnset:            {StatusSuggested, StatusQueued, StatusPlanning, StatusWriting},
	StatusSuggested:        {StatusQueued, StatusSuggestionRejected, StatusDeleted},
	StatusQueued:           {StatusPlanning, StatusWriting, StatusDeleted},
	StatusPlanning:         {StatusWriting, StatusGenerationFailed, StatusDeleted},
	StatusWriting:          {StatusReviewingWriting, StatusPendingReview, StatusScheduled, StatusGenerationFailed, StatusDeleted},
	StatusReviewingWriting: {StatusPendingReview, StatusScheduled, StatusGenerationFailed, StatusDeleted},
	StatusPendingReview:    {StatusScheduled, StatusPublished, StatusReviewDenied, StatusDeleted},
	StatusScheduled:        {StatusPublished, StatusDeleted},
	StatusPublished:        {StatusDeleted},

	// A failed or denied node re-enters through writing (re-run) or deletion.
	StatusGenerationFailed: {StatusQueued, StatusWriting, StatusDeleted},
	StatusReviewDenied:     {StatusWriting, StatusDeleted},
}

// IsValid reports whether the status is a defined lifecycle value
func (s ContentStatus) IsValid() bool {
	switch s {
	case StatusUnset, StatusSuggested, StatusQueued, StatusPlanning,
		StatusWriting, StatusReviewingWriting, StatusPendingReview,
		StatusScheduled, StatusPublished, StatusSuggestionRejected,
		StatusReviewDenied, StatusDeleted, StatusGenerationFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends a generation run
func (s ContentStatus) IsTerminal() bool {
	switch s {
	case StatusPendingReview, StatusScheduled, StatusPublished,
		StatusGenerationFailed, StatusDeleted, StatusSuggestionRejected:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next
func (s ContentStatus) CanTransition(next ContentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next status
func (s ContentStatus) Transition(next ContentStatus) (ContentStatus, error) {
	if !next.IsValid() {
		return s, pkgerrors.NewValidationError(fmt.Sprintf("unknown content status %q", next))
	}
	if !s.CanTransition(next) {
		return s, pkgerrors.NewConflictError(fmt.Sprintf("cannot transition content status from %q to %q", s, next))
	}
	return next, nil
}

// String returns the status string, naming the unset zero value explicitly
func (s ContentStatus) String() string {
	if s == StatusUnset {
		return "unset"
	}
	return string(s)
}
