package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/flare/internal/app"
	"github.com/evanschultz/flare/internal/domain"
)

var _ app.Repository = (*Repository)(nil)

// eventColumns lists the events columns in scanEvent order.
const eventColumns = `id, organizer_id, name, description, event_date, start_time, capacity, venue, status, created_at, updated_at`

// enrollmentColumns lists the enrollments columns in scanEnrollment order.
const enrollmentColumns = `id, event_id, participant_id, status, requested_at, decided_at`

// CreateEvent inserts an event.
func (s *store) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO events(`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.OrganizerID, e.Name, e.Description, e.Date.Format(domain.DateLayout), e.Time.String(), e.Capacity, e.Venue, string(e.Status), ts(e.CreatedAt), ts(e.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: event %s already exists", app.ErrConflict, e.ID)
	}
	return err
}

// UpdateEvent overwrites an event's mutable columns.
func (s *store) UpdateEvent(ctx context.Context, e domain.Event) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE events
		SET name = ?, description = ?, event_date = ?, start_time = ?, capacity = ?, venue = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, e.Name, e.Description, e.Date.Format(domain.DateLayout), e.Time.String(), e.Capacity, e.Venue, string(e.Status), ts(e.UpdatedAt), e.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetEvent returns one event.
func (s *store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// DeleteEvent removes an event. Enrollments cascade through the foreign key.
func (s *store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListEvents returns events matching filter ordered by date and start time.
func (s *store) ListEvents(ctx context.Context, filter app.EventFilter) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if organizerID := strings.TrimSpace(filter.OrganizerID); organizerID != "" {
		where = append(where, "organizer_id = ?")
		args = append(args, organizerID)
	}
	if filter.FromDate != nil {
		where = append(where, "event_date >= ?")
		args = append(args, filter.FromDate.UTC().Format(domain.DateLayout))
	}
	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY event_date ASC, start_time ASC, created_at ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// CreateEnrollment inserts an enrollment. An active duplicate for the pair is a conflict.
func (s *store) CreateEnrollment(ctx context.Context, e domain.Enrollment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO enrollments(`+enrollmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.EventID, e.ParticipantID, string(e.Status), ts(e.RequestedAt), nullableTS(e.DecidedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: participant %s already has an active enrollment for event %s", app.ErrConflict, e.ParticipantID, e.EventID)
	}
	return err
}

// UpdateEnrollment stores an enrollment's status and decision time.
func (s *store) UpdateEnrollment(ctx context.Context, e domain.Enrollment) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE enrollments SET status = ?, decided_at = ? WHERE id = ?
	`, string(e.Status), nullableTS(e.DecidedAt), e.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetEnrollment returns one enrollment.
func (s *store) GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`, id)
	return scanEnrollment(row)
}

// FindActiveEnrollment returns the pending or approved enrollment for a pair.
func (s *store) FindActiveEnrollment(ctx context.Context, eventID, participantID string) (domain.Enrollment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE event_id = ? AND participant_id = ? AND status != 'rejected'
		LIMIT 1
	`, eventID, participantID)
	return scanEnrollment(row)
}

// ListEnrollmentsForEvent returns an event's enrollments by status (approved, pending, rejected), newest request first.
func (s *store) ListEnrollmentsForEvent(ctx context.Context, eventID string) ([]domain.Enrollment, error) {
	return s.queryEnrollments(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE event_id = ?
		ORDER BY CASE status WHEN 'approved' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END ASC, requested_at DESC, id ASC
	`, eventID)
}

// ListEnrollmentsForParticipant returns a participant's enrollments, newest request first.
// An empty status matches every status.
func (s *store) ListEnrollmentsForParticipant(ctx context.Context, participantID string, status domain.EnrollmentStatus) ([]domain.Enrollment, error) {
	return s.queryEnrollments(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE participant_id = ? AND (? = '' OR status = ?)
		ORDER BY requested_at DESC, id ASC
	`, participantID, string(status), string(status))
}

// CountApproved counts an event's approved enrollments.
func (s *store) CountApproved(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments WHERE event_id = ? AND status = 'approved'
	`, eventID).Scan(&count)
	return count, err
}

// queryEnrollments runs an enrollment query and scans every row.
func (s *store) queryEnrollments(ctx context.Context, query string, args ...any) ([]domain.Enrollment, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Enrollment, 0)
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, enrollment)
	}
	return out, rows.Err()
}

// UpsertUser inserts a directory entry or refreshes its name, roles, and last-seen time.
func (s *store) UpsertUser(ctx context.Context, u domain.User) error {
	rolesJSON, err := json.Marshal(domain.RoleNames(u.Roles))
	if err != nil {
		return fmt.Errorf("encode user roles: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO users(id, display_name, roles_json, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			roles_json = excluded.roles_json,
			last_seen_at = excluded.last_seen_at
	`, u.ID, u.DisplayName, string(rolesJSON), ts(u.FirstSeenAt), ts(u.LastSeenAt))
	return err
}

// GetUser returns one directory entry.
func (s *store) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, display_name, roles_json, first_seen_at, last_seen_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers returns directory entries holding role, ordered by display name.
func (s *store) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, display_name, roles_json, first_seen_at, last_seen_at
		FROM users
		WHERE EXISTS (SELECT 1 FROM json_each(users.roles_json) WHERE json_each.value = ?)
		ORDER BY display_name ASC, id ASC
	`, role.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// AppendChangeEvent inserts one activity ledger entry.
func (s *store) AppendChangeEvent(ctx context.Context, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO change_events(event_id, subject_id, operation, actor_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.EventID,
		event.SubjectID,
		string(event.Operation),
		event.ActorID,
		string(metadataJSON),
		ts(event.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// ListChangeEvents returns an event's ledger entries, newest first.
func (s *store) ListChangeEvents(ctx context.Context, eventID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, event_id, subject_id, operation, actor_id, metadata_json, created_at
		FROM change_events
		WHERE event_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.EventID, &event.SubjectID, &opRaw, &event.ActorID, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// scanEvent scans one events row.
func scanEvent(s scanner) (domain.Event, error) {
	var (
		e          domain.Event
		dateRaw    string
		timeRaw    string
		statusRaw  string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Description, &dateRaw, &timeRaw, &e.Capacity, &e.Venue, &statusRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, app.ErrNotFound
		}
		return domain.Event{}, err
	}
	date, err := domain.ParseDate(dateRaw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode events.event_date: %w", err)
	}
	startTime, err := domain.ParseTimeOfDay(timeRaw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode events.start_time: %w", err)
	}
	status, err := domain.ParseEventStatus(statusRaw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode events.status: %w", err)
	}
	e.Date = date
	e.Time = startTime
	e.Status = status
	e.CreatedAt = parseTS(createdRaw)
	e.UpdatedAt = parseTS(updatedRaw)
	return e, nil
}

// scanEnrollment scans one enrollments row.
func scanEnrollment(s scanner) (domain.Enrollment, error) {
	var (
		e            domain.Enrollment
		statusRaw    string
		requestedRaw string
		decidedRaw   sql.NullString
	)
	if err := s.Scan(&e.ID, &e.EventID, &e.ParticipantID, &statusRaw, &requestedRaw, &decidedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Enrollment{}, app.ErrNotFound
		}
		return domain.Enrollment{}, err
	}
	status, err := domain.ParseEnrollmentStatus(statusRaw)
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("decode enrollments.status: %w", err)
	}
	e.Status = status
	e.RequestedAt = parseTS(requestedRaw)
	e.DecidedAt = parseNullTS(decidedRaw)
	return e, nil
}

// scanUser scans one users row.
func scanUser(s scanner) (domain.User, error) {
	var (
		u            domain.User
		rolesRaw     string
		firstSeenRaw string
		lastSeenRaw  string
	)
	if err := s.Scan(&u.ID, &u.DisplayName, &rolesRaw, &firstSeenRaw, &lastSeenRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	var names []string
	if err := json.Unmarshal([]byte(rolesRaw), &names); err != nil {
		return domain.User{}, fmt.Errorf("decode users.roles_json: %w", err)
	}
	roles, err := domain.ParseRoles(names)
	if err != nil {
		return domain.User{}, fmt.Errorf("decode users.roles_json: %w", err)
	}
	u.Roles = roles
	u.FirstSeenAt = parseTS(firstSeenRaw)
	u.LastSeenAt = parseTS(lastSeenRaw)
	return u, nil
}
