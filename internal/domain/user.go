package domain

import (
	"strings"
	"time"
)

// User is a directory entry for an actor the system has seen.
// Authorization never reads it; tokens carry the live role set.
type User struct {
	ID          string
	DisplayName string
	Roles       []Role
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// UserFromActor builds a directory entry from an authenticated actor.
func UserFromActor(actor Actor, now time.Time) (User, error) {
	id := strings.TrimSpace(actor.UserID)
	if id == "" {
		return User{}, ErrInvalidUserID
	}
	name := strings.TrimSpace(actor.DisplayName)
	if name == "" {
		name = id
	}
	return User{
		ID:          id,
		DisplayName: name,
		Roles:       append([]Role(nil), actor.Roles...),
		FirstSeenAt: now.UTC(),
		LastSeenAt:  now.UTC(),
	}, nil
}
