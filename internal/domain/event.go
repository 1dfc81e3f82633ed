package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits for event details.
const (
	MaxEventNameLength        = 100
	MaxEventDescriptionLength = 500
	MaxEventVenueLength       = 200
)

// DateLayout is the wire and storage layout for event dates.
const DateLayout = "2006-01-02"

// EventStatus is the admin-controlled lifecycle state of an event.
type EventStatus string

// EventStatus values.
const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusRejected EventStatus = "rejected"
)

// ParseEventStatus parses one status name, case-insensitively.
func ParseEventStatus(raw string) (EventStatus, error) {
	status := EventStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case EventStatusPending, EventStatusApproved, EventStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Decided reports whether the status is terminal.
func (s EventStatus) Decided() bool {
	return s == EventStatusApproved || s == EventStatusRejected
}

// TimeOfDay is a wall-clock start time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour) input.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// Valid reports whether the value is a real clock time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText encodes the time as "HH:MM".
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes "HH:MM".
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return parsed, nil
}

// TruncateDate drops the clock portion, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EventDetails holds the organizer-editable fields of an event.
type EventDetails struct {
	Name        string
	Description string
	Date        time.Time
	Time        TimeOfDay
	Capacity    int
	Venue       string
}

// Event is an organizer-proposed activity with a fixed capacity.
type Event struct {
	ID          string
	OrganizerID string
	Name        string
	Description string
	Date        time.Time
	Time        TimeOfDay
	Capacity    int
	Venue       string
	Status      EventStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewEvent constructs a pending event owned by organizerID.
func NewEvent(id, organizerID string, details EventDetails, now time.Time) (Event, error) {
	id = strings.TrimSpace(id)
	organizerID = strings.TrimSpace(organizerID)
	if id == "" {
		return Event{}, ErrInvalidID
	}
	if organizerID == "" {
		return Event{}, ErrInvalidOrganizerID
	}
	details, err := normalizeEventDetails(details)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:          id,
		OrganizerID: organizerID,
		Name:        details.Name,
		Description: details.Description,
		Date:        details.Date,
		Time:        details.Time,
		Capacity:    details.Capacity,
		Venue:       details.Venue,
		Status:      EventStatusPending,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Details returns the editable fields.
func (e Event) Details() EventDetails {
	return EventDetails{
		Name:        e.Name,
		Description: e.Description,
		Date:        e.Date,
		Time:        e.Time,
		Capacity:    e.Capacity,
		Venue:       e.Venue,
	}
}

// UpdateDetails overwrites the editable fields. Status and organizer are untouched.
func (e *Event) UpdateDetails(details EventDetails, now time.Time) error {
	details, err := normalizeEventDetails(details)
	if err != nil {
		return err
	}
	e.Name = details.Name
	e.Description = details.Description
	e.Date = details.Date
	e.Time = details.Time
	e.Capacity = details.Capacity
	e.Venue = details.Venue
	e.UpdatedAt = now.UTC()
	return nil
}

// Decide moves a pending event to approved or rejected.
// Re-applying the current decision is a no-op; reversing a decision is blocked.
func (e *Event) Decide(status EventStatus, now time.Time) (bool, error) {
	switch status {
	case EventStatusApproved, EventStatusRejected:
	default:
		return false, ErrInvalidStatus
	}
	if e.Status == status {
		return false, nil
	}
	if e.Status.Decided() {
		return false, fmt.Errorf("%w: event is already %s", ErrTransitionBlocked, e.Status)
	}
	e.Status = status
	e.UpdatedAt = now.UTC()
	return true, nil
}

// OpenForEnrollment reports whether participants may request seats.
func (e Event) OpenForEnrollment() bool {
	return e.Status == EventStatusApproved
}

// StartsAt combines the date and time of day in UTC.
func (e Event) StartsAt() time.Time {
	d := TruncateDate(e.Date)
	return d.Add(time.Duration(e.Time.Hour)*time.Hour + time.Duration(e.Time.Minute)*time.Minute)
}

// normalizeEventDetails trims and validates editable event fields.
func normalizeEventDetails(d EventDetails) (EventDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Venue = strings.TrimSpace(d.Venue)
	if d.Name == "" || utf8.RuneCountInString(d.Name) > MaxEventNameLength {
		return EventDetails{}, ErrInvalidName
	}
	if d.Description == "" || utf8.RuneCountInString(d.Description) > MaxEventDescriptionLength {
		return EventDetails{}, ErrInvalidDescription
	}
	if d.Venue == "" || utf8.RuneCountInString(d.Venue) > MaxEventVenueLength {
		return EventDetails{}, ErrInvalidVenue
	}
	if d.Date.IsZero() {
		return EventDetails{}, ErrInvalidDate
	}
	if !d.Time.Valid() {
		return EventDetails{}, ErrInvalidTimeOfDay
	}
	if d.Capacity < 1 {
		return EventDetails{}, ErrInvalidCapacity
	}
	d.Date = TruncateDate(d.Date)
	return d, nil
}
