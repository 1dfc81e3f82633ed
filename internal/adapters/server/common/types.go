// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// EventView values select one event listing for the list endpoint and tool.
const (
	EventViewPending  = "pending"
	EventViewApproved = "approved"
	EventViewUpcoming = "upcoming"
	EventViewMine     = "mine"
	EventViewRoster   = "roster"
)

// supportedEventViews stores all accepted view values in canonical order.
var supportedEventViews = []string{
	EventViewPending,
	EventViewApproved,
	EventViewUpcoming,
	EventViewMine,
	EventViewRoster,
}

// SupportedEventViews returns all canonical event list views.
func SupportedEventViews() []string {
	return append([]string(nil), supportedEventViews...)
}

// ErrInvalidRequest reports malformed or invalid transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnauthenticated reports a request without a usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrUnauthorized reports an identity that lacks the role or ownership for an operation.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a uniqueness or state conflict.
var ErrConflict = errors.New("conflict")

// ErrTransitionBlocked reports a status change that the current state forbids.
var ErrTransitionBlocked = errors.New("transition blocked")

// ErrCapacityExceeded reports an enrollment request against a full event.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// EventInput carries the editable event fields as sent over the wire.
type EventInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Capacity    int    `json:"capacity"`
	Venue       string `json:"venue"`
}

// Event is the transport representation of one event.
type Event struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Capacity    int       `json:"capacity"`
	Venue       string    `json:"venue"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventSummary is an event with its confirmed seat counts.
type EventSummary struct {
	Event
	ApprovedCount int `json:"approved_count"`
	SeatsLeft     int `json:"seats_left"`
}

// UpcomingEvent is an open event plus the caller's own enrollment, when present.
type UpcomingEvent struct {
	EventSummary
	MyEnrollment *Enrollment `json:"my_enrollment,omitempty"`
}

// User is one directory entry.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Roles       []string  `json:"roles"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// EventRoster is an event with its organizer and confirmed participants.
type EventRoster struct {
	Event        Event  `json:"event"`
	Organizer    User   `json:"organizer"`
	Participants []User `json:"participants"`
}

// Enrollment is the transport representation of one enrollment.
type Enrollment struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id"`
	ParticipantID string     `json:"participant_id"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requested_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

// EventEnrollment is an enrollment with its participant resolved.
type EventEnrollment struct {
	Enrollment
	Participant User `json:"participant"`
}

// MyEnrollment is one of the caller's enrollments with its event resolved.
type MyEnrollment struct {
	Enrollment Enrollment `json:"enrollment"`
	Event      Event      `json:"event"`
}

// Admission is the outcome of an enrollment approval.
type Admission struct {
	Enrollment Enrollment `json:"enrollment"`
	Admitted   bool       `json:"admitted"`
	Reason     string     `json:"reason,omitempty"`
}

// Activity is one ledger entry for an event.
type Activity struct {
	ID         int64             `json:"id"`
	EventID    string            `json:"event_id"`
	SubjectID  string            `json:"subject_id"`
	Operation  string            `json:"operation"`
	ActorID    string            `json:"actor_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventList is the result of one list view. Exactly one slice is populated, matching View.
type EventList struct {
	View      string          `json:"view"`
	Events    []Event         `json:"events,omitempty"`
	Summaries []EventSummary  `json:"summaries,omitempty"`
	Upcoming  []UpcomingEvent `json:"upcoming,omitempty"`
	Rosters   []EventRoster   `json:"rosters,omitempty"`
}

// EventService exposes event lifecycle operations to transports.
type EventService interface {
	ListEvents(context.Context, string) (EventList, error)
	CreateEvent(context.Context, EventInput) (Event, error)
	GetEvent(context.Context, string) (Event, error)
	UpdateEvent(context.Context, string, EventInput) (Event, error)
	DeleteEvent(context.Context, string) error
	SetEventStatus(context.Context, string, string) (Event, error)
	ListEventActivity(context.Context, string, int) ([]Activity, error)
}

// EnrollmentService exposes enrollment and admission operations to transports.
type EnrollmentService interface {
	RequestEnrollment(context.Context, string) (Enrollment, error)
	ListEventEnrollments(context.Context, string) ([]EventEnrollment, error)
	ApproveEnrollment(context.Context, string) (Admission, error)
	RejectEnrollment(context.Context, string) (Enrollment, error)
	ListMyEnrollments(context.Context) ([]MyEnrollment, error)
}

// DirectoryService exposes the user directory to transports.
type DirectoryService interface {
	ListUsers(context.Context, string) ([]User, error)
}

// Service is the full transport surface.
type Service interface {
	EventService
	EnrollmentService
	DirectoryService
}
