package app

import (
	"context"
	"errors"
	"slices"

	"github.com/evanschultz/flare/internal/domain"
)

// SyncActor records or refreshes the directory entry for an authenticated actor.
// An entry with unchanged name and roles is only rewritten once its last-seen
// time is older than the configured sync interval.
func (s *Service) SyncActor(ctx context.Context, actor domain.Actor) (domain.User, error) {
	if !actor.Authenticated() {
		return domain.User{}, ErrUnauthenticated
	}
	now := s.now()
	user, err := domain.UserFromActor(actor, now)
	if err != nil {
		return domain.User{}, err
	}
	stored, err := s.repo.GetUser(ctx, user.ID)
	switch {
	case err == nil:
		if sameDirectoryEntry(stored, user) && now.Sub(stored.LastSeenAt) < s.syncInterval {
			return stored, nil
		}
	case !errors.Is(err, ErrNotFound):
		return domain.User{}, err
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// sameDirectoryEntry reports whether stored already carries fresh's name and roles.
func sameDirectoryEntry(stored, fresh domain.User) bool {
	return stored.DisplayName == fresh.DisplayName && slices.Equal(stored.Roles, fresh.Roles)
}

// ListOrganizers returns directory entries holding the organizer role.
func (s *Service) ListOrganizers(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	return s.listUsers(ctx, actor, domain.RoleOrganizer)
}

// ListParticipants returns directory entries holding the participant role.
func (s *Service) ListParticipants(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	return s.listUsers(ctx, actor, domain.RoleParticipant)
}

// listUsers is the admin-only directory listing.
func (s *Service) listUsers(ctx context.Context, actor domain.Actor, role domain.Role) (users []domain.User, err error) {
	ctx, span := s.startSpan(ctx, "ListUsers", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, role)
}
