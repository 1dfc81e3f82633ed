package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/flare/internal/app"
	"github.com/evanschultz/flare/internal/domain"
)

// errServiceUnavailable reports an adapter built without a backing service.
var errServiceUnavailable = errors.New("app service adapter is not configured")

// AppServiceAdapter maps transport contracts onto app.Service using the actor carried in ctx.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListEvents resolves one named list view for the calling actor.
func (a *AppServiceAdapter) ListEvents(ctx context.Context, view string) (EventList, error) {
	actor, err := a.actor(ctx, "list events")
	if err != nil {
		return EventList{}, err
	}
	view = strings.ToLower(strings.TrimSpace(view))
	if view == "" {
		view = EventViewApproved
	}

	out := EventList{View: view}
	switch view {
	case EventViewPending:
		events, err := a.service.ListPendingEvents(ctx, actor)
		if err != nil {
			return EventList{}, mapAppError("list pending events", err)
		}
		out.Events = mapEvents(events)
	case EventViewApproved:
		events, err := a.service.ListApprovedEvents(ctx, actor)
		if err != nil {
			return EventList{}, mapAppError("list approved events", err)
		}
		out.Events = mapEvents(events)
	case EventViewUpcoming:
		upcoming, err := a.service.ListUpcomingEvents(ctx, actor)
		if err != nil {
			return EventList{}, mapAppError("list upcoming events", err)
		}
		out.Upcoming = make([]UpcomingEvent, 0, len(upcoming))
		for _, item := range upcoming {
			next := UpcomingEvent{EventSummary: mapEventSummary(item.EventSummary)}
			if item.MyEnrollment != nil {
				mine := mapEnrollment(*item.MyEnrollment)
				next.MyEnrollment = &mine
			}
			out.Upcoming = append(out.Upcoming, next)
		}
	case EventViewMine:
		summaries, err := a.service.ListOrganizerEvents(ctx, actor)
		if err != nil {
			return EventList{}, mapAppError("list organizer events", err)
		}
		out.Summaries = make([]EventSummary, 0, len(summaries))
		for _, summary := range summaries {
			out.Summaries = append(out.Summaries, mapEventSummary(summary))
		}
	case EventViewRoster:
		rosters, err := a.service.ListEventsWithParticipants(ctx, actor)
		if err != nil {
			return EventList{}, mapAppError("list event rosters", err)
		}
		out.Rosters = make([]EventRoster, 0, len(rosters))
		for _, roster := range rosters {
			out.Rosters = append(out.Rosters, EventRoster{
				Event:        mapEvent(roster.Event),
				Organizer:    mapUser(roster.Organizer),
				Participants: mapUsers(roster.Participants),
			})
		}
	default:
		return EventList{}, fmt.Errorf("list events: unsupported view %q: %w", view, ErrInvalidRequest)
	}
	return out, nil
}

// CreateEvent submits one event for admin approval.
func (a *AppServiceAdapter) CreateEvent(ctx context.Context, in EventInput) (Event, error) {
	actor, err := a.actor(ctx, "create event")
	if err != nil {
		return Event{}, err
	}
	details, err := eventDetailsFromInput(in)
	if err != nil {
		return Event{}, mapAppError("create event", err)
	}
	event, err := a.service.CreateEvent(ctx, actor, details)
	if err != nil {
		return Event{}, mapAppError("create event", err)
	}
	return mapEvent(event), nil
}

// GetEvent reads one event.
func (a *AppServiceAdapter) GetEvent(ctx context.Context, eventID string) (Event, error) {
	actor, err := a.actor(ctx, "get event")
	if err != nil {
		return Event{}, err
	}
	event, err := a.service.GetEvent(ctx, actor, strings.TrimSpace(eventID))
	if err != nil {
		return Event{}, mapAppError("get event", err)
	}
	return mapEvent(event), nil
}

// UpdateEvent replaces the editable fields of one owned event.
func (a *AppServiceAdapter) UpdateEvent(ctx context.Context, eventID string, in EventInput) (Event, error) {
	actor, err := a.actor(ctx, "update event")
	if err != nil {
		return Event{}, err
	}
	details, err := eventDetailsFromInput(in)
	if err != nil {
		return Event{}, mapAppError("update event", err)
	}
	event, err := a.service.UpdateEvent(ctx, actor, strings.TrimSpace(eventID), details)
	if err != nil {
		return Event{}, mapAppError("update event", err)
	}
	return mapEvent(event), nil
}

// DeleteEvent removes one owned event and its enrollments.
func (a *AppServiceAdapter) DeleteEvent(ctx context.Context, eventID string) error {
	actor, err := a.actor(ctx, "delete event")
	if err != nil {
		return err
	}
	if err := a.service.DeleteEvent(ctx, actor, strings.TrimSpace(eventID)); err != nil {
		return mapAppError("delete event", err)
	}
	return nil
}

// SetEventStatus records an admin decision on one event.
func (a *AppServiceAdapter) SetEventStatus(ctx context.Context, eventID, status string) (Event, error) {
	actor, err := a.actor(ctx, "set event status")
	if err != nil {
		return Event{}, err
	}
	next, err := domain.ParseEventStatus(status)
	if err != nil {
		return Event{}, mapAppError("set event status", err)
	}
	event, err := a.service.SetEventStatus(ctx, actor, strings.TrimSpace(eventID), next)
	if err != nil {
		return Event{}, mapAppError("set event status", err)
	}
	return mapEvent(event), nil
}

// ListEventActivity returns the newest ledger entries for one event.
func (a *AppServiceAdapter) ListEventActivity(ctx context.Context, eventID string, limit int) ([]Activity, error) {
	actor, err := a.actor(ctx, "list event activity")
	if err != nil {
		return nil, err
	}
	changes, err := a.service.ListEventActivity(ctx, actor, strings.TrimSpace(eventID), limit)
	if err != nil {
		return nil, mapAppError("list event activity", err)
	}
	out := make([]Activity, 0, len(changes))
	for _, change := range changes {
		out = append(out, Activity{
			ID:         change.ID,
			EventID:    change.EventID,
			SubjectID:  change.SubjectID,
			Operation:  string(change.Operation),
			ActorID:    change.ActorID,
			Metadata:   change.Metadata,
			OccurredAt: change.OccurredAt,
		})
	}
	return out, nil
}

// RequestEnrollment files a pending enrollment for the calling participant.
func (a *AppServiceAdapter) RequestEnrollment(ctx context.Context, eventID string) (Enrollment, error) {
	actor, err := a.actor(ctx, "request enrollment")
	if err != nil {
		return Enrollment{}, err
	}
	enrollment, err := a.service.RequestEnrollment(ctx, actor, strings.TrimSpace(eventID))
	if err != nil {
		return Enrollment{}, mapAppError("request enrollment", err)
	}
	return mapEnrollment(enrollment), nil
}

// ListEventEnrollments lists enrollments for one owned event.
func (a *AppServiceAdapter) ListEventEnrollments(ctx context.Context, eventID string) ([]EventEnrollment, error) {
	actor, err := a.actor(ctx, "list event enrollments")
	if err != nil {
		return nil, err
	}
	views, err := a.service.ListEnrollmentsForEvent(ctx, actor, strings.TrimSpace(eventID))
	if err != nil {
		return nil, mapAppError("list event enrollments", err)
	}
	out := make([]EventEnrollment, 0, len(views))
	for _, view := range views {
		out = append(out, EventEnrollment{
			Enrollment:  mapEnrollment(view.Enrollment),
			Participant: mapUser(view.Participant),
		})
	}
	return out, nil
}

// ApproveEnrollment admits one pending enrollment when a seat is free.
func (a *AppServiceAdapter) ApproveEnrollment(ctx context.Context, enrollmentID string) (Admission, error) {
	actor, err := a.actor(ctx, "approve enrollment")
	if err != nil {
		return Admission{}, err
	}
	admission, err := a.service.ApproveEnrollment(ctx, actor, strings.TrimSpace(enrollmentID))
	if err != nil {
		return Admission{}, mapAppError("approve enrollment", err)
	}
	return Admission{
		Enrollment: mapEnrollment(admission.Enrollment),
		Admitted:   admission.Admitted,
		Reason:     admission.Reason,
	}, nil
}

// RejectEnrollment declines one pending enrollment.
func (a *AppServiceAdapter) RejectEnrollment(ctx context.Context, enrollmentID string) (Enrollment, error) {
	actor, err := a.actor(ctx, "reject enrollment")
	if err != nil {
		return Enrollment{}, err
	}
	enrollment, err := a.service.RejectEnrollment(ctx, actor, strings.TrimSpace(enrollmentID))
	if err != nil {
		return Enrollment{}, mapAppError("reject enrollment", err)
	}
	return mapEnrollment(enrollment), nil
}

// ListMyEnrollments lists the calling participant's approved enrollments.
func (a *AppServiceAdapter) ListMyEnrollments(ctx context.Context) ([]MyEnrollment, error) {
	actor, err := a.actor(ctx, "list my enrollments")
	if err != nil {
		return nil, err
	}
	rows, err := a.service.ListMyApprovedEnrollments(ctx, actor)
	if err != nil {
		return nil, mapAppError("list my enrollments", err)
	}
	out := make([]MyEnrollment, 0, len(rows))
	for _, row := range rows {
		out = append(out, MyEnrollment{
			Enrollment: mapEnrollment(row.Enrollment),
			Event:      mapEvent(row.Event),
		})
	}
	return out, nil
}

// ListUsers lists directory users holding one role.
func (a *AppServiceAdapter) ListUsers(ctx context.Context, role string) ([]User, error) {
	actor, err := a.actor(ctx, "list users")
	if err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, mapAppError("list users", err)
	}

	var users []domain.User
	switch parsed {
	case domain.RoleOrganizer:
		users, err = a.service.ListOrganizers(ctx, actor)
	case domain.RoleParticipant:
		users, err = a.service.ListParticipants(ctx, actor)
	default:
		return nil, fmt.Errorf("list users: role %q is not listable: %w", parsed, ErrInvalidRequest)
	}
	if err != nil {
		return nil, mapAppError("list users", err)
	}
	return mapUsers(users), nil
}

// actor resolves the authenticated caller for one operation.
func (a *AppServiceAdapter) actor(ctx context.Context, operation string) (domain.Actor, error) {
	if a == nil || a.service == nil {
		return domain.Actor{}, fmt.Errorf("%s: %w", operation, errServiceUnavailable)
	}
	actor, ok := app.ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%s: %w", operation, ErrUnauthenticated)
	}
	return actor, nil
}

// eventDetailsFromInput parses wire-format dates and times into domain details.
func eventDetailsFromInput(in EventInput) (domain.EventDetails, error) {
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.EventDetails{}, fmt.Errorf("date %q: %w", in.Date, err)
	}
	tod, err := domain.ParseTimeOfDay(in.Time)
	if err != nil {
		return domain.EventDetails{}, fmt.Errorf("time %q: %w", in.Time, err)
	}
	return domain.EventDetails{
		Name:        in.Name,
		Description: in.Description,
		Date:        date,
		Time:        tod,
		Capacity:    in.Capacity,
		Venue:       in.Venue,
	}, nil
}

// mapAppError maps app and domain errors into transport-visible sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnauthenticated, err))
	case errors.Is(err, app.ErrUnauthorized):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnauthorized, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrCapacityExceeded):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrCapacityExceeded, err))
	case errors.Is(err, app.ErrConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrTransitionBlocked):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrTransitionBlocked, err))
	case errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

// mapEvent converts one domain event to its transport form.
func mapEvent(event domain.Event) Event {
	return Event{
		ID:          event.ID,
		OrganizerID: event.OrganizerID,
		Name:        event.Name,
		Description: event.Description,
		Date:        event.Date.Format(domain.DateLayout),
		Time:        event.Time.String(),
		Capacity:    event.Capacity,
		Venue:       event.Venue,
		Status:      string(event.Status),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

// mapEvents converts a slice of domain events.
func mapEvents(events []domain.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, event := range events {
		out = append(out, mapEvent(event))
	}
	return out
}

// mapEventSummary converts one event summary with its seat counts.
func mapEventSummary(summary app.EventSummary) EventSummary {
	return EventSummary{
		Event:         mapEvent(summary.Event),
		ApprovedCount: summary.ApprovedCount,
		SeatsLeft:     summary.SeatsLeft(),
	}
}

// mapEnrollment converts one domain enrollment.
func mapEnrollment(enrollment domain.Enrollment) Enrollment {
	out := Enrollment{
		ID:            enrollment.ID,
		EventID:       enrollment.EventID,
		ParticipantID: enrollment.ParticipantID,
		Status:        string(enrollment.Status),
		RequestedAt:   enrollment.RequestedAt,
	}
	if enrollment.DecidedAt != nil {
		ts := *enrollment.DecidedAt
		out.DecidedAt = &ts
	}
	return out
}

// mapUser converts one directory user.
func mapUser(user domain.User) User {
	return User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Roles:       domain.RoleNames(user.Roles),
		FirstSeenAt: user.FirstSeenAt,
		LastSeenAt:  user.LastSeenAt,
	}
}

// mapUsers converts a slice of directory users.
func mapUsers(users []domain.User) []User {
	out := make([]User, 0, len(users))
	for _, user := range users {
		out = append(out, mapUser(user))
	}
	return out
}
