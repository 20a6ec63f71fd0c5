package models

// ProcessingStatus is the closed enumeration of work-item states. It is
// modelled as a tagged string rather than a sealed type hierarchy —
// callers classify a status with IsResultStatus/IsCancellable instead of
// relying on subtype refinement.
type ProcessingStatus string

// The wire encoding of each status is part of the external contract and
// MUST be preserved for data compatibility with existing documents.
const (
	StatusToDo              ProcessingStatus = "todo"
	StatusInProgress        ProcessingStatus = "in-progress"
	StatusSucceeded         ProcessingStatus = "succeeded"
	StatusFailed            ProcessingStatus = "failed"
	StatusPermanentlyFailed ProcessingStatus = "permanently-failed"
	StatusIgnored           ProcessingStatus = "ignored"
	StatusDuplicate         ProcessingStatus = "duplicate"
	StatusDeferred          ProcessingStatus = "deferred"
	StatusCancelled         ProcessingStatus = "cancelled"
)

// resultStatuses is the set of terminal statuses valid as the argument to
// Complete.
var resultStatuses = map[ProcessingStatus]struct{}{
	StatusSucceeded:         {},
	StatusPermanentlyFailed: {},
	StatusIgnored:           {},
	StatusDuplicate:         {},
	StatusCancelled:         {},
}

// cancellableStatuses is the set of statuses from which a transition to
// Cancelled is permitted.
var cancellableStatuses = map[ProcessingStatus]struct{}{
	StatusToDo:       {},
	StatusFailed:     {},
	StatusInProgress: {},
	StatusDeferred:   {},
}

// IsResultStatus reports whether status is a valid terminal ResultStatus,
// i.e. a legal argument to Repository.Complete.
func IsResultStatus(status ProcessingStatus) bool {
	_, ok := resultStatuses[status]
	return ok
}

// IsCancellable reports whether an item currently in status may transition
// to Cancelled via Repository.Cancel.
func IsCancellable(status ProcessingStatus) bool {
	_, ok := cancellableStatuses[status]
	return ok
}

// CancellableStatuses returns every status from which a transition to
// Cancelled is permitted, for building the "$in" filter Repository.Cancel
// issues against the datastore.
func CancellableStatuses() []ProcessingStatus {
	statuses := make([]ProcessingStatus, 0, len(cancellableStatuses))
	for status := range cancellableStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}

// CancelOutcome classifies the result of Repository.Cancel.
type CancelOutcome int

const (
	// CancelNotFound means no record matched the given id.
	CancelNotFound CancelOutcome = iota
	// CancelUpdated means the item transitioned to Cancelled.
	CancelUpdated
	// CancelNotUpdated means the item exists but its current status is
	// not in the cancellable set.
	CancelNotUpdated
)

// StatusUpdateResult is the result of Repository.Cancel.
type StatusUpdateResult struct {
	Outcome        CancelOutcome
	PreviousStatus ProcessingStatus // valid when Outcome == CancelUpdated
	CurrentStatus  ProcessingStatus // valid when Outcome == CancelNotUpdated
}

// NotFound builds a StatusUpdateResult for the no-matching-record case.
func NotFound() StatusUpdateResult {
	return StatusUpdateResult{Outcome: CancelNotFound}
}

// Updated builds a StatusUpdateResult recording a successful cancellation.
func Updated(previous ProcessingStatus) StatusUpdateResult {
	return StatusUpdateResult{Outcome: CancelUpdated, PreviousStatus: previous}
}

// NotUpdated builds a StatusUpdateResult recording a rejected cancellation.
func NotUpdated(current ProcessingStatus) StatusUpdateResult {
	return StatusUpdateResult{Outcome: CancelNotUpdated, CurrentStatus: current}
}
