package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/model"
)

// AppointmentRepositoryInterface is the slice of the appointment store the
// reconciliation and reminder jobs use.
type AppointmentRepositoryInterface interface {
	ListForReconcile(ctx context.Context, tenantID string, from, to time.Time) ([]*model.Appointment, error)
	ListForReminder(ctx context.Context, kind model.ReminderKind, from, to time.Time) ([]*model.Appointment, error)
	Cancel(ctx context.Context, id, reason string) error
	Reschedule(ctx context.Context, id string, at time.Time, durationMinutes int) error
	MarkReminderSent(ctx context.Context, id string, kind model.ReminderKind, at time.Time) (bool, error)
}

type AppointmentRepository struct {
	DB *sql.DB
}

const appointmentColumns = `id, tenant_id, customer_name, customer_phone, service_name, scheduled_at,
        duration_minutes, status, external_event_id, reminder_1hr_sent_at, reminder_24hr_sent_at,
        cancellation_reason`

func scanAppointments(rows *sql.Rows) ([]*model.Appointment, error) {
	defer rows.Close()
	out := []*model.Appointment{}
	for rows.Next() {
		a := &model.Appointment{}
		err := rows.Scan(
			&a.ID, &a.TenantID, &a.CustomerName, &a.CustomerPhone, &a.ServiceName, &a.ScheduledAt,
			&a.DurationMinutes, &a.Status, &a.ExternalEventID, &a.Reminder1hrSentAt, &a.Reminder24hrSentAt,
			&a.CancellationReason,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan appointment")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "iterate appointments")
}

// ListForReconcile returns syncable appointments linked to an external event.
func (r *AppointmentRepository) ListForReconcile(ctx context.Context, tenantID string, from, to time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
        FROM appointments
        WHERE tenant_id = $1
          AND scheduled_at BETWEEN $2 AND $3
          AND status NOT IN ('cancelled', 'completed', 'no_show')
          AND external_event_id <> ''
        ORDER BY scheduled_at`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list appointments for reconcile")
	}
	return scanAppointments(rows)
}

// ListForReminder returns appointments in [from, to] whose marker for kind
// is still unset.
func (r *AppointmentRepository) ListForReminder(ctx context.Context, kind model.ReminderKind, from, to time.Time) ([]*model.Appointment, error) {
	column, err := reminderColumn(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + appointmentColumns + `
        FROM appointments
        WHERE scheduled_at BETWEEN $1 AND $2
          AND status IN ('scheduled', 'confirmed', 'rescheduled')
          AND ` + column + ` IS NULL
        ORDER BY scheduled_at`
	rows, err := r.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list appointments for reminder")
	}
	return scanAppointments(rows)
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id, reason string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE appointments
        SET status = 'cancelled', cancellation_reason = $2, updated_at = NOW()
        WHERE id = $1`, id, reason)
	return errors.Wrap(err, "cancel appointment")
}

func (r *AppointmentRepository) Reschedule(ctx context.Context, id string, at time.Time, durationMinutes int) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE appointments
        SET status = 'rescheduled', scheduled_at = $2, duration_minutes = $3, updated_at = NOW()
        WHERE id = $1`, id, at, durationMinutes)
	return errors.Wrap(err, "reschedule appointment")
}

// MarkReminderSent stamps the write-once marker. False means it was already set.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id string, kind model.ReminderKind, at time.Time) (bool, error) {
	column, err := reminderColumn(kind)
	if err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE appointments SET `+column+` = $2, updated_at = NOW() WHERE id = $1 AND `+column+` IS NULL`, id, at)
	if err != nil {
		return false, errors.Wrap(err, "mark reminder sent")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "mark reminder sent")
	}
	return n == 1, nil
}

func reminderColumn(kind model.ReminderKind) (string, error) {
	switch kind {
	case model.Reminder24hr:
		return "reminder_24hr_sent_at", nil
	case model.Reminder1hr:
		return "reminder_1hr_sent_at", nil
	}
	return "", errors.Errorf("unknown reminder kind %q", kind)
}

var _ AppointmentRepositoryInterface = (*AppointmentRepository)(nil)
