package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/evanschultz/flare/internal/domain"
)

// ReasonEventFull is the admission reason reported when capacity is exhausted.
const ReasonEventFull = "event is full"

// Admission is the outcome of an enrollment approval attempt.
type Admission struct {
	Enrollment domain.Enrollment
	Admitted   bool
	Reason     string
}

// RequestEnrollment files a pending enrollment for the acting participant.
// The approved-count check here is advisory; ApproveEnrollment enforces capacity.
func (s *Service) RequestEnrollment(ctx context.Context, actor domain.Actor, eventID string) (enrollment domain.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "RequestEnrollment", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleParticipant); err != nil {
		return domain.Enrollment{}, err
	}
	unlock := s.locks.lock(eventID)
	defer unlock()

	now := s.now()
	err = s.repo.WithTx(ctx, func(store Store) error {
		event, err := store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.OpenForEnrollment() {
			return fmt.Errorf("%w: event is %s", domain.ErrTransitionBlocked, event.Status)
		}
		existing, err := store.FindActiveEnrollment(ctx, event.ID, actor.UserID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: enrollment %s is already %s", ErrConflict, existing.ID, existing.Status)
		case !errors.Is(err, ErrNotFound):
			return err
		}
		approved, err := store.CountApproved(ctx, event.ID)
		if err != nil {
			return err
		}
		if approved >= event.Capacity {
			return fmt.Errorf("%w: no seats available", ErrCapacityExceeded)
		}
		created, err := domain.NewEnrollment(s.idGen(), event.ID, actor.UserID, now)
		if err != nil {
			return err
		}
		if err := store.CreateEnrollment(ctx, created); err != nil {
			return err
		}
		enrollment = created
		return s.recordChange(ctx, store, actor, event.ID, created.ID, domain.ChangeOperationEnrollmentRequest, map[string]string{
			"participant_id": actor.UserID,
		}, now)
	})
	if err != nil {
		return domain.Enrollment{}, err
	}
	return enrollment, nil
}

// ApproveEnrollment admits a pending enrollment when the event has a free seat.
// A full event yields Admitted=false with ReasonEventFull and no error.
// Approving an already approved enrollment reports it as admitted without writing.
func (s *Service) ApproveEnrollment(ctx context.Context, actor domain.Actor, enrollmentID string) (admission Admission, err error) {
	ctx, span := s.startSpan(ctx, "ApproveEnrollment", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleOrganizer); err != nil {
		return Admission{}, err
	}
	target, err := s.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Admission{}, err
	}
	unlock := s.locks.lock(target.EventID)
	defer unlock()

	now := s.now()
	err = s.repo.WithTx(ctx, func(store Store) error {
		enrollment, event, err := loadOwnedEnrollment(ctx, store, actor, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.Status == domain.EnrollmentStatusPending {
			approved, err := store.CountApproved(ctx, event.ID)
			if err != nil {
				return err
			}
			if approved >= event.Capacity {
				admission = Admission{Enrollment: enrollment, Reason: ReasonEventFull}
				return nil
			}
		}
		changed, err := enrollment.Approve(now)
		if err != nil {
			return err
		}
		admission = Admission{Enrollment: enrollment, Admitted: true}
		if !changed {
			return nil
		}
		if err := store.UpdateEnrollment(ctx, enrollment); err != nil {
			return err
		}
		return s.recordChange(ctx, store, actor, event.ID, enrollment.ID, domain.ChangeOperationEnrollmentApprove, map[string]string{
			"participant_id": enrollment.ParticipantID,
		}, now)
	})
	if err != nil {
		return Admission{}, err
	}
	return admission, nil
}

// RejectEnrollment declines a pending enrollment regardless of capacity.
func (s *Service) RejectEnrollment(ctx context.Context, actor domain.Actor, enrollmentID string) (enrollment domain.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "RejectEnrollment", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, domain.RoleOrganizer); err != nil {
		return domain.Enrollment{}, err
	}
	now := s.now()
	err = s.repo.WithTx(ctx, func(store Store) error {
		current, event, err := loadOwnedEnrollment(ctx, store, actor, enrollmentID)
		if err != nil {
			return err
		}
		changed, err := current.Reject(now)
		if err != nil {
			return err
		}
		enrollment = current
		if !changed {
			return nil
		}
		if err := store.UpdateEnrollment(ctx, current); err != nil {
			return err
		}
		return s.recordChange(ctx, store, actor, event.ID, current.ID, domain.ChangeOperationEnrollmentReject, map[string]string{
			"participant_id": current.ParticipantID,
		}, now)
	})
	if err != nil {
		return domain.Enrollment{}, err
	}
	return enrollment, nil
}

// loadOwnedEnrollment reads an enrollment and its event and checks event ownership.
func loadOwnedEnrollment(ctx context.Context, store Store, actor domain.Actor, enrollmentID string) (domain.Enrollment, domain.Event, error) {
	enrollment, err := store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return domain.Enrollment{}, domain.Event{}, err
	}
	event, err := store.GetEvent(ctx, enrollment.EventID)
	if err != nil {
		return domain.Enrollment{}, domain.Event{}, err
	}
	if !OwnsEnrollmentEvent(actor, enrollment, event) {
		return domain.Enrollment{}, domain.Event{}, fmt.Errorf("%w: enrollment %s belongs to another organizer's event", ErrUnauthorized, enrollment.ID)
	}
	return enrollment, event, nil
}
