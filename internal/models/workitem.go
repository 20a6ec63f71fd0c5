package models

import "time"

// WorkItem is a persistent record wrapping a user payload of type T. It
// is mutated only via status transitions and is never destroyed by the
// repository — retention is an external policy.
type WorkItem[T any] struct {
	ID           string
	ReceivedAt   time.Time
	UpdatedAt    time.Time
	AvailableAt  time.Time
	Status       ProcessingStatus
	FailureCount int
	Item         T
}

// WorkItemFieldNames names the BSON fields a WorkItem document is stored
// under. It is supplied by the caller at repository construction to
// permit backwards-compatible collection schemas — the repository never
// hard-codes these strings.
type WorkItemFieldNames struct {
	ID           string
	ReceivedAt   string
	UpdatedAt    string
	AvailableAt  string
	Status       string
	FailureCount string
	Item         string
}

// DefaultWorkItemFieldNames returns the field names used by the default
// document shape.
func DefaultWorkItemFieldNames() WorkItemFieldNames {
	return WorkItemFieldNames{
		ID:           "_id",
		ReceivedAt:   "receivedAt",
		UpdatedAt:    "updatedAt",
		AvailableAt:  "availableAt",
		Status:       "status",
		FailureCount: "failureCount",
		Item:         "item",
	}
}
