package domain

import (
	"fmt"
	"strings"
	"time"
)

// EnrollmentStatus is the organizer-controlled state of an enrollment request.
type EnrollmentStatus string

// EnrollmentStatus values.
const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// ParseEnrollmentStatus parses one status name, case-insensitively.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, error) {
	status := EnrollmentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Active reports whether the status blocks a new request for the same pair.
func (s EnrollmentStatus) Active() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// Rank orders statuses for organizer listings: approved, pending, rejected.
func (s EnrollmentStatus) Rank() int {
	switch s {
	case EnrollmentStatusApproved:
		return 0
	case EnrollmentStatusPending:
		return 1
	case EnrollmentStatusRejected:
		return 2
	default:
		return 3
	}
}

// Enrollment is a participant's request to attend one event.
type Enrollment struct {
	ID            string
	EventID       string
	ParticipantID string
	Status        EnrollmentStatus
	RequestedAt   time.Time
	DecidedAt     *time.Time
}

// NewEnrollment constructs a pending enrollment.
func NewEnrollment(id, eventID, participantID string, now time.Time) (Enrollment, error) {
	id = strings.TrimSpace(id)
	eventID = strings.TrimSpace(eventID)
	participantID = strings.TrimSpace(participantID)
	if id == "" || eventID == "" {
		return Enrollment{}, ErrInvalidID
	}
	if participantID == "" {
		return Enrollment{}, ErrInvalidUserID
	}
	return Enrollment{
		ID:            id,
		EventID:       eventID,
		ParticipantID: participantID,
		Status:        EnrollmentStatusPending,
		RequestedAt:   now.UTC(),
	}, nil
}

// Approve moves a pending enrollment to approved.
// It reports false without error when the enrollment is already approved.
func (e *Enrollment) Approve(now time.Time) (bool, error) {
	return e.decide(EnrollmentStatusApproved, now)
}

// Reject moves a pending enrollment to rejected.
// It reports false without error when the enrollment is already rejected.
func (e *Enrollment) Reject(now time.Time) (bool, error) {
	return e.decide(EnrollmentStatusRejected, now)
}

// decide applies the single allowed transition out of pending.
func (e *Enrollment) decide(status EnrollmentStatus, now time.Time) (bool, error) {
	if e.Status == status {
		return false, nil
	}
	if e.Status != EnrollmentStatusPending {
		return false, fmt.Errorf("%w: enrollment is already %s", ErrTransitionBlocked, e.Status)
	}
	ts := now.UTC()
	e.Status = status
	e.DecidedAt = &ts
	return true, nil
}
