package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Role identifies one of the fixed actor roles.
type Role uint8

// Role values. The zero value is not a valid role.
const (
	RoleAdmin Role = iota + 1
	RoleOrganizer
	RoleParticipant
)

// AllRoles returns every role in canonical order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleOrganizer, RoleParticipant}
}

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOrganizer:
		return "organizer"
	case RoleParticipant:
		return "participant"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleParticipant:
		return true
	default:
		return false
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole parses one role name, case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, nil
	case "organizer":
		return RoleOrganizer, nil
	case "participant":
		return RoleParticipant, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// ParseRoles parses role names, dropping duplicates and preserving canonical order.
func ParseRoles(raw []string) ([]Role, error) {
	out := make([]Role, 0, len(raw))
	for _, name := range raw {
		role, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, role) {
			out = append(out, role)
		}
	}
	slices.Sort(out)
	return out, nil
}

// RoleNames returns wire names for the given roles.
func RoleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, role.String())
	}
	return out
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID      string
	DisplayName string
	Roles       []Role
}

// NewActor normalizes identity fields and validates the role set.
func NewActor(userID, displayName string, roles []Role) (Actor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Actor{}, ErrInvalidUserID
	}
	normalized := make([]Role, 0, len(roles))
	for _, role := range roles {
		if !role.Valid() {
			return Actor{}, ErrInvalidRole
		}
		if !slices.Contains(normalized, role) {
			normalized = append(normalized, role)
		}
	}
	slices.Sort(normalized)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = userID
	}
	return Actor{
		UserID:      userID,
		DisplayName: displayName,
		Roles:       normalized,
	}, nil
}

// HasRole reports whether the actor holds role.
func (a Actor) HasRole(role Role) bool {
	return slices.Contains(a.Roles, role)
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.UserID) != ""
}
