package app

import (
	"context"
	"errors"
	"sort"

	"github.com/evanschultz/flare/internal/domain"
)

// EventSummary pairs an event with its approved enrollment count.
type EventSummary struct {
	Event         domain.Event
	ApprovedCount int
}

// SeatsLeft reports the remaining capacity.
func (s EventSummary) SeatsLeft() int {
	if left := s.Event.Capacity - s.ApprovedCount; left > 0 {
		return left
	}
	return 0
}

// UpcomingEvent is an approved future event as seen by one participant.
type UpcomingEvent struct {
	EventSummary
	MyEnrollment *domain.Enrollment
}

// EventRoster is an event with its organizer and confirmed participants resolved.
type EventRoster struct {
	Event        domain.Event
	Organizer    domain.User
	Participants []domain.User
}

// EnrollmentView pairs an enrollment with its participant.
type EnrollmentView struct {
	Enrollment  domain.Enrollment
	Participant domain.User
}

// EnrollmentWithEvent pairs an enrollment with its event.
type EnrollmentWithEvent struct {
	Enrollment domain.Enrollment
	Event      domain.Event
}

// ListPendingEvents returns events awaiting an admin decision.
func (s *Service) ListPendingEvents(ctx context.Context, actor domain.Actor) (events []domain.Event, err error) {
	ctx, span := s.startSpan(ctx, "ListPendingEvents", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, EventFilter{Status: domain.EventStatusPending})
}

// ListApprovedEvents returns every approved event.
func (s *Service) ListApprovedEvents(ctx context.Context, actor domain.Actor) (events []domain.Event, err error) {
	ctx, span := s.startSpan(ctx, "ListApprovedEvents", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, EventFilter{Status: domain.EventStatusApproved})
}

// ListEventsWithParticipants returns all events with organizer and confirmed participants.
func (s *Service) ListEventsWithParticipants(ctx context.Context, actor domain.Actor) (rosters []EventRoster, err error) {
	ctx, span := s.startSpan(ctx, "ListEventsWithParticipants", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, EventFilter{})
	if err != nil {
		return nil, err
	}
	rosters = make([]EventRoster, 0, len(events))
	for _, event := range events {
		organizer, err := lookupUser(ctx, s.repo, event.OrganizerID)
		if err != nil {
			return nil, err
		}
		enrollments, err := s.repo.ListEnrollmentsForEvent(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		participants := make([]domain.User, 0, len(enrollments))
		for _, enrollment := range enrollments {
			if enrollment.Status != domain.EnrollmentStatusApproved {
				continue
			}
			participant, err := lookupUser(ctx, s.repo, enrollment.ParticipantID)
			if err != nil {
				return nil, err
			}
			participants = append(participants, participant)
		}
		rosters = append(rosters, EventRoster{
			Event:        event,
			Organizer:    organizer,
			Participants: participants,
		})
	}
	return rosters, nil
}

// ListOrganizerEvents returns the acting organizer's events with approved counts.
func (s *Service) ListOrganizerEvents(ctx context.Context, actor domain.Actor) (summaries []EventSummary, err error) {
	ctx, span := s.startSpan(ctx, "ListOrganizerEvents", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleOrganizer); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, EventFilter{OrganizerID: actor.UserID})
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, events)
}

// ListUpcomingEvents returns approved events dated today or later,
// each annotated with the caller's latest enrollment when one exists.
func (s *Service) ListUpcomingEvents(ctx context.Context, actor domain.Actor) (upcoming []UpcomingEvent, err error) {
	ctx, span := s.startSpan(ctx, "ListUpcomingEvents", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleParticipant); err != nil {
		return nil, err
	}
	today := domain.TruncateDate(s.now())
	events, err := s.repo.ListEvents(ctx, EventFilter{
		Status:   domain.EventStatusApproved,
		FromDate: &today,
	})
	if err != nil {
		return nil, err
	}
	summaries, err := s.summarize(ctx, events)
	if err != nil {
		return nil, err
	}
	mine, err := s.repo.ListEnrollmentsForParticipant(ctx, actor.UserID, "")
	if err != nil {
		return nil, err
	}
	latest := make(map[string]domain.Enrollment, len(mine))
	for _, enrollment := range mine {
		if current, ok := latest[enrollment.EventID]; ok && !enrollment.RequestedAt.After(current.RequestedAt) {
			continue
		}
		latest[enrollment.EventID] = enrollment
	}
	upcoming = make([]UpcomingEvent, 0, len(summaries))
	for _, summary := range summaries {
		item := UpcomingEvent{EventSummary: summary}
		if enrollment, ok := latest[summary.Event.ID]; ok {
			item.MyEnrollment = &enrollment
		}
		upcoming = append(upcoming, item)
	}
	return upcoming, nil
}

// ListEnrollmentsForEvent returns the enrollments of an event the actor organizes,
// approved first, then pending, then rejected, newest request first within a status.
func (s *Service) ListEnrollmentsForEvent(ctx context.Context, actor domain.Actor, eventID string) (views []EnrollmentView, err error) {
	ctx, span := s.startSpan(ctx, "ListEnrollmentsForEvent", actor)
	defer func() { finishSpan(span, err) }()

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
	enrollments, err := s.repo.ListEnrollmentsForEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	sortEnrollmentsForOrganizer(enrollments)
	views = make([]EnrollmentView, 0, len(enrollments))
	for _, enrollment := range enrollments {
		participant, err := lookupUser(ctx, s.repo, enrollment.ParticipantID)
		if err != nil {
			return nil, err
		}
		views = append(views, EnrollmentView{Enrollment: enrollment, Participant: participant})
	}
	return views, nil
}

// ListMyApprovedEnrollments returns the caller's approved enrollments with their events.
func (s *Service) ListMyApprovedEnrollments(ctx context.Context, actor domain.Actor) (out []EnrollmentWithEvent, err error) {
	ctx, span := s.startSpan(ctx, "ListMyApprovedEnrollments", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleParticipant); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListEnrollmentsForParticipant(ctx, actor.UserID, domain.EnrollmentStatusApproved)
	if err != nil {
		return nil, err
	}
	out = make([]EnrollmentWithEvent, 0, len(enrollments))
	for _, enrollment := range enrollments {
		event, err := s.repo.GetEvent(ctx, enrollment.EventID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, EnrollmentWithEvent{Enrollment: enrollment, Event: event})
	}
	return out, nil
}

// summarize attaches approved counts to events.
func (s *Service) summarize(ctx context.Context, events []domain.Event) ([]EventSummary, error) {
	out := make([]EventSummary, 0, len(events))
	for _, event := range events {
		approved, err := s.repo.CountApproved(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, EventSummary{Event: event, ApprovedCount: approved})
	}
	return out, nil
}

// sortEnrollmentsForOrganizer orders by status rank, then newest request first.
func sortEnrollmentsForOrganizer(enrollments []domain.Enrollment) {
	sort.SliceStable(enrollments, func(i, j int) bool {
		ri, rj := enrollments[i].Status.Rank(), enrollments[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return enrollments[i].RequestedAt.After(enrollments[j].RequestedAt)
	})
}
