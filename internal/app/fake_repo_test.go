package app

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/evanschultz/flare/internal/domain"
)

type fakeData struct {
	events      map[string]domain.Event
	enrollments map[string]domain.Enrollment
	users       map[string]domain.User
	changes     []domain.ChangeEvent
	nextChange  int64
	appendErr   error
	userWrites  int
}

func (d *fakeData) clone() *fakeData {
	return &fakeData{
		events:      maps.Clone(d.events),
		enrollments: maps.Clone(d.enrollments),
		users:       maps.Clone(d.users),
		changes:     slices.Clone(d.changes),
		nextChange:  d.nextChange,
		appendErr:   d.appendErr,
		userWrites:  d.userWrites,
	}
}

type fakeStore struct {
	mu   sync.Mutex
	data *fakeData
}

type fakeRepo struct {
	*fakeStore
	txMu sync.Mutex
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{fakeStore: &fakeStore{data: &fakeData{
		events:      map[string]domain.Event{},
		enrollments: map[string]domain.Enrollment{},
		users:       map[string]domain.User{},
	}}}
}

func (f *fakeRepo) WithTx(_ context.Context, fn func(Store) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	tx := &fakeStore{data: f.data.clone()}
	f.mu.Unlock()
	if err := fn(tx); err != nil {
		return err
	}
	f.mu.Lock()
	f.data = tx.data
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) CreateEvent(_ context.Context, e domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.events[e.ID] = e
	return nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, e domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.events[e.ID]; !ok {
		return ErrNotFound
	}
	f.data.events[e.ID] = e
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data.events[id]
	if !ok {
		return domain.Event{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.events[id]; !ok {
		return ErrNotFound
	}
	delete(f.data.events, id)
	for enrollmentID, enrollment := range f.data.enrollments {
		if enrollment.EventID == id {
			delete(f.data.enrollments, enrollmentID)
		}
	}
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context, filter EventFilter) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, 0, len(f.data.events))
	for _, e := range f.data.events {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.OrganizerID != "" && e.OrganizerID != filter.OrganizerID {
			continue
		}
		if filter.FromDate != nil && e.Date.Before(*filter.FromDate) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt().Equal(out[j].StartsAt()) {
			return out[i].StartsAt().Before(out[j].StartsAt())
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) CreateEnrollment(_ context.Context, e domain.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.data.enrollments {
		if existing.EventID == e.EventID && existing.ParticipantID == e.ParticipantID && existing.Status.Active() {
			return ErrConflict
		}
	}
	f.data.enrollments[e.ID] = e
	return nil
}

func (f *fakeStore) UpdateEnrollment(_ context.Context, e domain.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.enrollments[e.ID]; !ok {
		return ErrNotFound
	}
	f.data.enrollments[e.ID] = e
	return nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, id string) (domain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data.enrollments[id]
	if !ok {
		return domain.Enrollment{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) FindActiveEnrollment(_ context.Context, eventID, participantID string) (domain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.data.enrollments {
		if e.EventID == eventID && e.ParticipantID == participantID && e.Status.Active() {
			return e, nil
		}
	}
	return domain.Enrollment{}, ErrNotFound
}

func (f *fakeStore) ListEnrollmentsForEvent(_ context.Context, eventID string) ([]domain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Enrollment, 0)
	for _, e := range f.data.enrollments {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEnrollmentsForParticipant(_ context.Context, participantID string, status domain.EnrollmentStatus) ([]domain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Enrollment, 0)
	for _, e := range f.data.enrollments {
		if e.ParticipantID != participantID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (f *fakeStore) CountApproved(_ context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.data.enrollments {
		if e.EventID == eventID && e.Status == domain.EnrollmentStatusApproved {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpsertUser(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.data.users[u.ID]; ok {
		u.FirstSeenAt = existing.FirstSeenAt
	}
	f.data.users[u.ID] = u
	f.data.userWrites++
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.data.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) ListUsers(_ context.Context, role domain.Role) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.data.users))
	for _, u := range f.data.users {
		if slices.Contains(u.Roles, role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) AppendChangeEvent(_ context.Context, e domain.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data.appendErr != nil {
		return f.data.appendErr
	}
	f.data.nextChange++
	e.ID = f.data.nextChange
	f.data.changes = append(f.data.changes, e)
	return nil
}

func (f *fakeStore) ListChangeEvents(_ context.Context, eventID string, limit int) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeEvent, 0)
	for i := len(f.data.changes) - 1; i >= 0; i-- {
		if f.data.changes[i].EventID != eventID {
			continue
		}
		out = append(out, f.data.changes[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// fixtures shared by the service tests.

var fixtureNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sequenceIDs(prefix string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func mustActor(id string, roles ...domain.Role) domain.Actor {
	actor, err := domain.NewActor(id, "", roles)
	if err != nil {
		panic(err)
	}
	return actor
}

func eventDetails(capacity int) domain.EventDetails {
	return domain.EventDetails{
		Name:        "Community Cleanup",
		Description: "Meet at the park entrance with gloves.",
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Time:        domain.TimeOfDay{Hour: 10, Minute: 30},
		Capacity:    capacity,
		Venue:       "Riverside Park",
	}
}
