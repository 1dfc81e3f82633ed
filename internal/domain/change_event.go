package domain

import "time"

// ChangeOperation describes a persisted activity operation.
type ChangeOperation string

// ChangeOperation values used by the activity ledger.
const (
	ChangeOperationEventCreate       ChangeOperation = "event_create"
	ChangeOperationEventUpdate       ChangeOperation = "event_update"
	ChangeOperationEventDelete       ChangeOperation = "event_delete"
	ChangeOperationEventApprove      ChangeOperation = "event_approve"
	ChangeOperationEventReject       ChangeOperation = "event_reject"
	ChangeOperationEnrollmentRequest ChangeOperation = "enrollment_request"
	ChangeOperationEnrollmentApprove ChangeOperation = "enrollment_approve"
	ChangeOperationEnrollmentReject  ChangeOperation = "enrollment_reject"
)

// ChangeEvent represents a single activity-log entry scoped to one event.
type ChangeEvent struct {
	ID         int64
	EventID    string
	SubjectID  string
	Operation  ChangeOperation
	ActorID    string
	Metadata   map[string]string
	OccurredAt time.Time
}
