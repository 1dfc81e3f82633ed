package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every field-level validation failure.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidID          = fmt.Errorf("%w: invalid id", ErrValidation)
	ErrInvalidName        = fmt.Errorf("%w: name is required and must be at most %d characters", ErrValidation, MaxEventNameLength)
	ErrInvalidDescription = fmt.Errorf("%w: description is required and must be at most %d characters", ErrValidation, MaxEventDescriptionLength)
	ErrInvalidVenue       = fmt.Errorf("%w: venue is required and must be at most %d characters", ErrValidation, MaxEventVenueLength)
	ErrInvalidCapacity    = fmt.Errorf("%w: capacity must be at least 1", ErrValidation)
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidTimeOfDay   = fmt.Errorf("%w: invalid time of day", ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidRole        = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrInvalidOrganizerID = fmt.Errorf("%w: organizer id is required", ErrValidation)
	ErrInvalidUserID      = fmt.Errorf("%w: user id is required", ErrValidation)
)

// ErrTransitionBlocked reports a status change the lifecycle does not allow.
var ErrTransitionBlocked = errors.New("transition blocked")
