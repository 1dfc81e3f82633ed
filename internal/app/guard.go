package app

import (
	"fmt"

	"github.com/evanschultz/flare/internal/domain"
)

// IsAdmin reports whether the actor holds the admin role.
func IsAdmin(actor domain.Actor) bool {
	return actor.HasRole(domain.RoleAdmin)
}

// IsOrganizer reports whether the actor holds the organizer role.
func IsOrganizer(actor domain.Actor) bool {
	return actor.HasRole(domain.RoleOrganizer)
}

// IsParticipant reports whether the actor holds the participant role.
func IsParticipant(actor domain.Actor) bool {
	return actor.HasRole(domain.RoleParticipant)
}

// OwnsEvent reports whether the actor is the event's organizer.
func OwnsEvent(actor domain.Actor, event domain.Event) bool {
	return actor.Authenticated() && actor.UserID == event.OrganizerID
}

// OwnsEnrollmentEvent reports whether the actor organizes the event the enrollment belongs to.
func OwnsEnrollmentEvent(actor domain.Actor, enrollment domain.Enrollment, event domain.Event) bool {
	return enrollment.EventID == event.ID && OwnsEvent(actor, event)
}

// hasRole dispatches to the role predicate for role.
func hasRole(actor domain.Actor, role domain.Role) bool {
	switch role {
	case domain.RoleAdmin:
		return IsAdmin(actor)
	case domain.RoleOrganizer:
		return IsOrganizer(actor)
	case domain.RoleParticipant:
		return IsParticipant(actor)
	default:
		return false
	}
}

// requireRole fails unless the actor is authenticated and holds role.
func requireRole(actor domain.Actor, role domain.Role) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if !hasRole(actor, role) {
		return fmt.Errorf("%w: %s role required", ErrUnauthorized, role)
	}
	return nil
}

// requireEventOwner fails unless the actor organizes the event.
func requireEventOwner(actor domain.Actor, event domain.Event) error {
	if !OwnsEvent(actor, event) {
		return fmt.Errorf("%w: event %s belongs to another organizer", ErrUnauthorized, event.ID)
	}
	return nil
}
