package app

import (
	"context"
	"time"

	"github.com/evanschultz/flare/internal/domain"
)

// EventFilter narrows ListEvents. Zero fields do not filter.
type EventFilter struct {
	Status      domain.EventStatus
	OrganizerID string
	FromDate    *time.Time
}

// Store is the set of persistence operations available inside and outside transactions.
type Store interface {
	CreateEvent(context.Context, domain.Event) error
	UpdateEvent(context.Context, domain.Event) error
	GetEvent(context.Context, string) (domain.Event, error)
	DeleteEvent(context.Context, string) error
	ListEvents(context.Context, EventFilter) ([]domain.Event, error)

	CreateEnrollment(context.Context, domain.Enrollment) error
	UpdateEnrollment(context.Context, domain.Enrollment) error
	GetEnrollment(context.Context, string) (domain.Enrollment, error)
	FindActiveEnrollment(context.Context, string, string) (domain.Enrollment, error)
	ListEnrollmentsForEvent(context.Context, string) ([]domain.Enrollment, error)
	ListEnrollmentsForParticipant(context.Context, string, domain.EnrollmentStatus) ([]domain.Enrollment, error)
	CountApproved(context.Context, string) (int, error)

	UpsertUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	ListUsers(context.Context, domain.Role) ([]domain.User, error)

	AppendChangeEvent(context.Context, domain.ChangeEvent) error
	ListChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// Repository is a Store that can also open transaction-scoped Stores.
// WithTx commits when fn returns nil and rolls back on any error or panic.
type Repository interface {
	Store
	WithTx(context.Context, func(Store) error) error
}
