package common

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evanschultz/flare/internal/adapters/storage/sqlite"
	"github.com/evanschultz/flare/internal/app"
	"github.com/evanschultz/flare/internal/domain"
)

var adapterNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestAdapter builds one adapter over an in-memory sqlite-backed service.
func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	var seq atomic.Int64
	svc := app.NewService(repo, func() string {
		return fmt.Sprintf("id-%d", seq.Add(1))
	}, func() time.Time {
		return adapterNow
	}, app.ServiceConfig{})
	return NewAppServiceAdapter(svc)
}

// actorCtx returns a context carrying one authenticated actor.
func actorCtx(t *testing.T, userID string, roles ...domain.Role) context.Context {
	t.Helper()
	actor, err := domain.NewActor(userID, "", roles)
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}
	return app.WithActor(context.Background(), actor)
}

func sampleInput(capacity int) EventInput {
	return EventInput{
		Name:        "Spring meetup",
		Description: "Talks and snacks.",
		Date:        "2026-03-14",
		Time:        "18:30",
		Capacity:    capacity,
		Venue:       "Hall B",
	}
}

// TestAppServiceAdapterRequiresActor verifies calls without an identity fail as unauthenticated.
func TestAppServiceAdapterRequiresActor(t *testing.T) {
	adapter := newTestAdapter(t)
	if _, err := adapter.CreateEvent(context.Background(), sampleInput(3)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("CreateEvent() error = %v, want ErrUnauthenticated", err)
	}

	var nilAdapter *AppServiceAdapter
	if _, err := nilAdapter.ListEvents(context.Background(), ""); !errors.Is(err, errServiceUnavailable) {
		t.Fatalf("ListEvents() on nil adapter error = %v", err)
	}
}

// TestAppServiceAdapterWorkflow walks one event from creation to a full roster.
func TestAppServiceAdapterWorkflow(t *testing.T) {
	adapter := newTestAdapter(t)
	admin := actorCtx(t, "admin-1", domain.RoleAdmin)
	organizer := actorCtx(t, "org-1", domain.RoleOrganizer)
	alice := actorCtx(t, "alice", domain.RoleParticipant)
	bob := actorCtx(t, "bob", domain.RoleParticipant)

	event, err := adapter.CreateEvent(organizer, sampleInput(1))
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if event.Status != "pending" || event.Date != "2026-03-14" || event.Time != "18:30" {
		t.Fatalf("unexpected created event %#v", event)
	}

	pending, err := adapter.ListEvents(admin, EventViewPending)
	if err != nil {
		t.Fatalf("ListEvents(pending) error = %v", err)
	}
	if len(pending.Events) != 1 || pending.Events[0].ID != event.ID {
		t.Fatalf("unexpected pending list %#v", pending)
	}

	if _, err := adapter.SetEventStatus(organizer, event.ID, "approved"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetEventStatus() by organizer error = %v, want ErrUnauthorized", err)
	}
	approved, err := adapter.SetEventStatus(admin, event.ID, "approved")
	if err != nil {
		t.Fatalf("SetEventStatus() error = %v", err)
	}
	if approved.Status != "approved" {
		t.Fatalf("expected approved status, got %q", approved.Status)
	}
	if _, err := adapter.SetEventStatus(admin, event.ID, "rejected"); !errors.Is(err, ErrTransitionBlocked) {
		t.Fatalf("SetEventStatus(rejected) error = %v, want ErrTransitionBlocked", err)
	}

	first, err := adapter.RequestEnrollment(alice, event.ID)
	if err != nil {
		t.Fatalf("RequestEnrollment(alice) error = %v", err)
	}
	if _, err := adapter.RequestEnrollment(alice, event.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate RequestEnrollment() error = %v, want ErrConflict", err)
	}
	second, err := adapter.RequestEnrollment(bob, event.ID)
	if err != nil {
		t.Fatalf("RequestEnrollment(bob) error = %v", err)
	}

	rows, err := adapter.ListEventEnrollments(organizer, event.ID)
	if err != nil {
		t.Fatalf("ListEventEnrollments() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 enrollments, got %d", len(rows))
	}

	admitted, err := adapter.ApproveEnrollment(organizer, first.ID)
	if err != nil {
		t.Fatalf("ApproveEnrollment(first) error = %v", err)
	}
	if !admitted.Admitted || admitted.Enrollment.Status != "approved" || admitted.Enrollment.DecidedAt == nil {
		t.Fatalf("unexpected admission %#v", admitted)
	}
	full, err := adapter.ApproveEnrollment(organizer, second.ID)
	if err != nil {
		t.Fatalf("ApproveEnrollment(second) error = %v", err)
	}
	if full.Admitted || full.Reason != app.ReasonEventFull || full.Enrollment.Status != "pending" {
		t.Fatalf("expected full-event admission, got %#v", full)
	}

	mine, err := adapter.ListMyEnrollments(alice)
	if err != nil {
		t.Fatalf("ListMyEnrollments() error = %v", err)
	}
	if len(mine) != 1 || mine[0].Event.ID != event.ID {
		t.Fatalf("unexpected my enrollments %#v", mine)
	}

	upcoming, err := adapter.ListEvents(bob, EventViewUpcoming)
	if err != nil {
		t.Fatalf("ListEvents(upcoming) error = %v", err)
	}
	if len(upcoming.Upcoming) != 1 || upcoming.Upcoming[0].SeatsLeft != 0 || upcoming.Upcoming[0].MyEnrollment == nil {
		t.Fatalf("unexpected upcoming list %#v", upcoming)
	}

	summaries, err := adapter.ListEvents(organizer, EventViewMine)
	if err != nil {
		t.Fatalf("ListEvents(mine) error = %v", err)
	}
	if len(summaries.Summaries) != 1 || summaries.Summaries[0].ApprovedCount != 1 {
		t.Fatalf("unexpected organizer summaries %#v", summaries)
	}

	rosters, err := adapter.ListEvents(admin, EventViewRoster)
	if err != nil {
		t.Fatalf("ListEvents(roster) error = %v", err)
	}
	if len(rosters.Rosters) != 1 || len(rosters.Rosters[0].Participants) != 1 || rosters.Rosters[0].Participants[0].ID != "alice" {
		t.Fatalf("unexpected rosters %#v", rosters)
	}

	activity, err := adapter.ListEventActivity(organizer, event.ID, 0)
	if err != nil {
		t.Fatalf("ListEventActivity() error = %v", err)
	}
	if len(activity) == 0 {
		t.Fatal("expected ledger entries for the event")
	}
}

// TestAppServiceAdapterInvalidInput verifies parse failures surface as invalid requests.
func TestAppServiceAdapterInvalidInput(t *testing.T) {
	adapter := newTestAdapter(t)
	organizer := actorCtx(t, "org-1", domain.RoleOrganizer)
	admin := actorCtx(t, "admin-1", domain.RoleAdmin)

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "bad date",
			call: func() error {
				in := sampleInput(3)
				in.Date = "14/03/2026"
				_, err := adapter.CreateEvent(organizer, in)
				return err
			},
		},
		{
			name: "bad time",
			call: func() error {
				in := sampleInput(3)
				in.Time = "25:00"
				_, err := adapter.CreateEvent(organizer, in)
				return err
			},
		},
		{
			name: "zero capacity",
			call: func() error {
				_, err := adapter.CreateEvent(organizer, sampleInput(0))
				return err
			},
		},
		{
			name: "unknown view",
			call: func() error {
				_, err := adapter.ListEvents(admin, "archived")
				return err
			},
		},
		{
			name: "unknown status",
			call: func() error {
				_, err := adapter.SetEventStatus(admin, "e1", "maybe")
				return err
			},
		},
		{
			name: "admin role listing",
			call: func() error {
				_, err := adapter.ListUsers(admin, "admin")
				return err
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

// TestAppServiceAdapterListUsers verifies directory listings reflect synced actors.
func TestAppServiceAdapterListUsers(t *testing.T) {
	adapter := newTestAdapter(t)
	admin := actorCtx(t, "admin-1", domain.RoleAdmin)
	organizer := actorCtx(t, "org-1", domain.RoleOrganizer)

	if _, err := adapter.CreateEvent(organizer, sampleInput(2)); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	actor, _ := app.ActorFromContext(organizer)
	if _, err := adapter.service.SyncActor(organizer, actor); err != nil {
		t.Fatalf("SyncActor() error = %v", err)
	}

	users, err := adapter.ListUsers(admin, "organizer")
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].ID != "org-1" || len(users[0].Roles) != 1 || users[0].Roles[0] != "organizer" {
		t.Fatalf("unexpected users %#v", users)
	}
	if _, err := adapter.ListUsers(organizer, "participant"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ListUsers() by organizer error = %v, want ErrUnauthorized", err)
	}
}

// TestMapAppError verifies each app and domain sentinel maps onto its transport sentinel.
func TestMapAppError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{in: app.ErrUnauthenticated, want: ErrUnauthenticated},
		{in: app.ErrUnauthorized, want: ErrUnauthorized},
		{in: fmt.Errorf("get: %w", app.ErrNotFound), want: ErrNotFound},
		{in: app.ErrConflict, want: ErrConflict},
		{in: app.ErrCapacityExceeded, want: ErrCapacityExceeded},
		{in: domain.ErrTransitionBlocked, want: ErrTransitionBlocked},
		{in: domain.ErrInvalidCapacity, want: ErrInvalidRequest},
	}
	for _, tc := range tests {
		got := mapAppError("op", tc.in)
		if !errors.Is(got, tc.want) || !errors.Is(got, tc.in) {
			t.Fatalf("mapAppError(%v) = %v, want wrap of %v", tc.in, got, tc.want)
		}
	}
	if mapAppError("op", nil) != nil {
		t.Fatal("mapAppError(nil) should be nil")
	}
}
