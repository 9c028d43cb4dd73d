package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// pgxPool is the subset of *pgxpool.Pool the store needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore stores appointments in the relational database.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool pgxPool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// Insert adds a pending row.
func (s *PostgresStore) Insert(ctx context.Context, sub Submission) (string, error) {
	id := uuid.New()
	query := `
		INSERT INTO appointments (
			id, name, email, service, instant_help, subject, topic,
			date, time, timezone, notes,
			attachment_name, attachment_content, attachment_type, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	var attName, attContent, attType pgtype.Text
	if sub.Attachment != nil {
		attName = pgtype.Text{String: sub.Attachment.Name, Valid: true}
		attContent = pgtype.Text{String: sub.Attachment.Content, Valid: true}
		attType = pgtype.Text{String: sub.Attachment.Type, Valid: sub.Attachment.Type != ""}
	}

	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, query,
		id,
		sub.Name,
		sub.Email,
		sub.Service,
		sub.InstantHelp,
		sub.Subject,
		sub.Topic,
		sub.Date,
		sub.Time,
		sub.Timezone,
		sub.Notes,
		attName,
		attContent,
		attType,
		string(StatusPending),
	).Scan(&createdAt); err != nil {
		return "", storageError("insert", err)
	}
	return id.String(), nil
}

// MarkNotified sets status to notified and clears any earlier send error.
func (s *PostgresStore) MarkNotified(ctx context.Context, id string) error {
	query := `
		UPDATE appointments
		SET status = $2, email_error = NULL, updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, query, id, string(StatusNotified))
}

// MarkEmailFailed sets status to email_failed and stores the provider message.
func (s *PostgresStore) MarkEmailFailed(ctx context.Context, id string, message string) error {
	query := `
		UPDATE appointments
		SET status = $2, email_error = $3, updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, query, id, string(StatusEmailFailed), message)
}

func (s *PostgresStore) exec(ctx context.Context, query string, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return storageError("update status", fmt.Errorf("%w: invalid id %q", ErrAppointmentNotFound, id))
	}
	tag, err := s.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return storageError("update status", err)
	}
	if tag.RowsAffected() == 0 {
		return storageError("update status", ErrAppointmentNotFound)
	}
	return nil
}

// List returns the newest appointments first. Attachment content is not
// selected; callers only ever see redacted rows.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	query := `
		SELECT id, name, email, service, instant_help, subject, topic,
		       date, time, timezone, notes,
		       attachment_name, attachment_type,
		       status, email_error, created_at, updated_at
		FROM appointments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, string(filter.Status), filter.normalizedLimit())
	if err != nil {
		return nil, storageError("list", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var (
			appt             Appointment
			status           string
			attName, attType pgtype.Text
			emailError       pgtype.Text
			updatedAt        pgtype.Timestamptz
		)
		if err := rows.Scan(
			&appt.ID,
			&appt.Name,
			&appt.Email,
			&appt.Service,
			&appt.InstantHelp,
			&appt.Subject,
			&appt.Topic,
			&appt.Date,
			&appt.Time,
			&appt.Timezone,
			&appt.Notes,
			&attName,
			&attType,
			&status,
			&emailError,
			&appt.CreatedAt,
			&updatedAt,
		); err != nil {
			return nil, storageError("scan", err)
		}
		appt.Status = Status(status)
		appt.EmailError = emailError.String
		if attName.Valid {
			appt.Attachment = &Attachment{Name: attName.String, Type: attType.String}
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			appt.UpdatedAt = &t
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list", err)
	}
	return out, nil
}
