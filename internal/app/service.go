package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/evanschultz/flare/internal/domain"
)

// defaultActivityLimit caps activity listings when the caller passes no limit.
const defaultActivityLimit = 100

// defaultDirectorySyncInterval is how long an unchanged directory entry goes without a last-seen refresh.
const defaultDirectorySyncInterval = 5 * time.Minute

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	ActivityLimit         int
	DirectorySyncInterval time.Duration
	TracerProvider        trace.TracerProvider
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service orchestrates the event and enrollment workflows.
type Service struct {
	repo          Repository
	idGen         IDGenerator
	clock         Clock
	locks         *eventLocks
	tracer        trace.Tracer
	activityLimit int
	syncInterval  time.Duration
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.ActivityLimit <= 0 {
		cfg.ActivityLimit = defaultActivityLimit
	}
	if cfg.DirectorySyncInterval <= 0 {
		cfg.DirectorySyncInterval = defaultDirectorySyncInterval
	}
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Service{
		repo:          repo,
		idGen:         idGen,
		clock:         clock,
		locks:         newEventLocks(),
		tracer:        provider.Tracer(instrumentationName),
		activityLimit: cfg.ActivityLimit,
		syncInterval:  cfg.DirectorySyncInterval,
	}
}

// CreateEvent proposes a new pending event owned by the acting organizer.
func (s *Service) CreateEvent(ctx context.Context, actor domain.Actor, details domain.EventDetails) (event domain.Event, err error) {
	ctx, span := s.startSpan(ctx, "CreateEvent", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleOrganizer); err != nil {
		return domain.Event{}, err
	}
	now := s.now()
	event, err = domain.NewEvent(s.idGen(), actor.UserID, details, now)
	if err != nil {
		return domain.Event{}, err
	}
	err = s.repo.WithTx(ctx, func(store Store) error {
		if err := store.CreateEvent(ctx, event); err != nil {
			return err
		}
		return s.recordChange(ctx, store, actor, event.ID, event.ID, domain.ChangeOperationEventCreate, map[string]string{
			"name":     event.Name,
			"capacity": strconv.Itoa(event.Capacity),
		}, now)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// GetEvent returns one event the actor is allowed to see.
// Admins see everything, organizers see their own events, participants see approved events.
func (s *Service) GetEvent(ctx context.Context, actor domain.Actor, eventID string) (event domain.Event, err error) {
	ctx, span := s.startSpan(ctx, "GetEvent", actor)
	defer func() { finishSpan(span, err) }()

	if !actor.Authenticated() {
		return domain.Event{}, ErrUnauthenticated
	}
	event, err = s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	switch {
	case IsAdmin(actor), OwnsEvent(actor, event):
		return event, nil
	case IsParticipant(actor) && event.OpenForEnrollment():
		return event, nil
	default:
		return domain.Event{}, fmt.Errorf("%w: event %s is not visible to this actor", ErrUnauthorized, event.ID)
	}
}

// UpdateEvent overwrites the editable fields of an event the actor organizes.
func (s *Service) UpdateEvent(ctx context.Context, actor domain.Actor, eventID string, details domain.EventDetails) (event domain.Event, err error) {
	ctx, span := s.startSpan(ctx, "UpdateEvent", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleOrganizer); err != nil {
		return domain.Event{}, err
	}
	unlock := s.locks.lock(eventID)
	defer unlock()

	now := s.now()
	err = s.repo.WithTx(ctx, func(store Store) error {
		current, err := store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireEventOwner(actor, current); err != nil {
			return err
		}
		approved, err := store.CountApproved(ctx, current.ID)
		if err != nil {
			return err
		}
		if details.Capacity < approved {
			return fmt.Errorf("%w: capacity %d is below %d approved enrollments", domain.ErrInvalidCapacity, details.Capacity, approved)
		}
		if err := current.UpdateDetails(details, now); err != nil {
			return err
		}
		if err := store.UpdateEvent(ctx, current); err != nil {
			return err
		}
		event = current
		return s.recordChange(ctx, store, actor, current.ID, current.ID, domain.ChangeOperationEventUpdate, map[string]string{
			"name":     current.Name,
			"capacity": strconv.Itoa(current.Capacity),
		}, now)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// DeleteEvent removes an event the actor organizes along with its enrollments.
func (s *Service) DeleteEvent(ctx context.Context, actor domain.Actor, eventID string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteEvent", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleOrganizer); err != nil {
		return err
	}
	unlock := s.locks.lock(eventID)
	defer unlock()

	now := s.now()
	return s.repo.WithTx(ctx, func(store Store) error {
		event, err := store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireEventOwner(actor, event); err != nil {
			return err
		}
		if err := store.DeleteEvent(ctx, event.ID); err != nil {
			return err
		}
		return s.recordChange(ctx, store, actor, event.ID, event.ID, domain.ChangeOperationEventDelete, map[string]string{
			"name": event.Name,
		}, now)
	})
}

// SetEventStatus records an admin decision on a pending event.
// Repeating the current decision returns the event unchanged.
func (s *Service) SetEventStatus(ctx context.Context, actor domain.Actor, eventID string, status domain.EventStatus) (event domain.Event, err error) {
	ctx, span := s.startSpan(ctx, "SetEventStatus", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Event{}, err
	}
	now := s.now()
	err = s.repo.WithTx(ctx, func(store Store) error {
		current, err := store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		changed, err := current.Decide(status, now)
		if err != nil {
			return err
		}
		event = current
		if !changed {
			return nil
		}
		if err := store.UpdateEvent(ctx, current); err != nil {
			return err
		}
		op := domain.ChangeOperationEventApprove
		if status == domain.EventStatusRejected {
			op = domain.ChangeOperationEventReject
		}
		return s.recordChange(ctx, store, actor, current.ID, current.ID, op, map[string]string{
			"status": string(current.Status),
		}, now)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// ApproveEvent approves a pending event.
func (s *Service) ApproveEvent(ctx context.Context, actor domain.Actor, eventID string) (domain.Event, error) {
	return s.SetEventStatus(ctx, actor, eventID, domain.EventStatusApproved)
}

// RejectEvent rejects a pending event.
func (s *Service) RejectEvent(ctx context.Context, actor domain.Actor, eventID string) (domain.Event, error) {
	return s.SetEventStatus(ctx, actor, eventID, domain.EventStatusRejected)
}

// ListEventActivity returns ledger entries for one event, newest first.
// Admins may read the ledger of deleted events.
func (s *Service) ListEventActivity(ctx context.Context, actor domain.Actor, eventID string, limit int) (events []domain.ChangeEvent, err error) {
	ctx, span := s.startSpan(ctx, "ListEventActivity", actor)
	defer func() { finishSpan(span, err) }()

	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !IsAdmin(actor) {
		if err := requireRole(actor, domain.RoleOrganizer); err != nil {
			return nil, err
		}
		event, err := s.repo.GetEvent(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if err := requireEventOwner(actor, event); err != nil {
			return nil, err
		}
	}
	if limit <= 0 || limit > s.activityLimit {
		limit = s.activityLimit
	}
	return s.repo.ListChangeEvents(ctx, eventID, limit)
}

// recordChange appends one ledger entry through the transaction's store.
func (s *Service) recordChange(ctx context.Context, store Store, actor domain.Actor, eventID, subjectID string, op domain.ChangeOperation, metadata map[string]string, now time.Time) error {
	return store.AppendChangeEvent(ctx, domain.ChangeEvent{
		EventID:    eventID,
		SubjectID:  subjectID,
		Operation:  op,
		ActorID:    actor.UserID,
		Metadata:   metadata,
		OccurredAt: now,
	})
}

// lookupUser resolves a directory entry, falling back to the bare id.
func lookupUser(ctx context.Context, store Store, userID string) (domain.User, error) {
	user, err := store.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return domain.User{ID: userID, DisplayName: userID}, nil
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// now returns the service clock in UTC.
func (s *Service) now() time.Time {
	return s.clock().UTC()
}
