package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed   AppointmentStatus = "confirmed"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusNoShow      AppointmentStatus = "no_show"
)

// Syncable reports whether calendar reconciliation should look at s.
func (s AppointmentStatus) Syncable() bool {
	switch s {
	case AppointmentStatusCancelled, AppointmentStatusCompleted, AppointmentStatusNoShow:
		return false
	}
	return true
}

type ReminderKind string

const (
	Reminder24hr ReminderKind = "24hr"
	Reminder1hr  ReminderKind = "1hr"
)

type Appointment struct {
	ID                 string            `db:"id" json:"id"`
	TenantID           string            `db:"tenant_id" json:"tenant_id"`
	CustomerName       string            `db:"customer_name" json:"customer_name"`
	CustomerPhone      string            `db:"customer_phone" json:"customer_phone"`
	ServiceName        string            `db:"service_name" json:"service_name,omitempty"`
	ScheduledAt        time.Time         `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes    int               `db:"duration_minutes" json:"duration_minutes"`
	Status             AppointmentStatus `db:"status" json:"status"`
	ExternalEventID    string            `db:"external_event_id" json:"external_event_id,omitempty"`
	Reminder1hrSentAt  *time.Time        `db:"reminder_1hr_sent_at" json:"reminder_1hr_sent_at,omitempty"`
	Reminder24hrSentAt *time.Time        `db:"reminder_24hr_sent_at" json:"reminder_24hr_sent_at,omitempty"`
	CancellationReason string            `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

// ReminderSent reports whether the write-once marker for kind is set.
func (a Appointment) ReminderSent(kind ReminderKind) bool {
	switch kind {
	case Reminder24hr:
		return a.Reminder24hrSentAt != nil
	case Reminder1hr:
		return a.Reminder1hrSentAt != nil
	}
	return false
}

// CalendarConnection is a tenant's link to an external calendar.
type CalendarConnection struct {
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	Provider     string     `db:"provider" json:"provider"`
	CalendarID   string     `db:"calendar_id" json:"calendar_id"`
	AccessToken  string     `db:"access_token" json:"-"`
	RefreshToken string     `db:"refresh_token" json:"-"`
	TokenExpiry  *time.Time `db:"token_expiry" json:"-"`
}

const CalendarProviderBuiltin = "builtin"
