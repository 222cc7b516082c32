// internal/model/queue_entry.go
package model

import "time"

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusScheduled  QueueStatus = "scheduled"
	QueueStatusCalling    QueueStatus = "calling"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusCancelled  QueueStatus = "cancelled"
	QueueStatusDNCBlocked QueueStatus = "dnc_blocked"
	QueueStatusDeclined   QueueStatus = "declined"
	QueueStatusNoAnswer   QueueStatus = "no_answer"
)

// DefaultMaxAttempts applies when an entry is enqueued without an explicit cap.
const DefaultMaxAttempts = 3

// NonTerminalStatuses are the statuses the processor may still act on.
var NonTerminalStatuses = []QueueStatus{QueueStatusPending, QueueStatusScheduled, QueueStatusCalling}

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusPending, QueueStatusScheduled, QueueStatusCalling, QueueStatusCompleted,
		QueueStatusFailed, QueueStatusCancelled, QueueStatusDNCBlocked, QueueStatusDeclined, QueueStatusNoAnswer:
		return true
	}
	return false
}

// Terminal reports whether no further automatic processing happens from s.
// failed is only ever written once attempts are exhausted or the failure is
// not retryable, so it is terminal as stored.
func (s QueueStatus) Terminal() bool {
	switch s {
	case QueueStatusPending, QueueStatusScheduled, QueueStatusCalling:
		return false
	}
	return true
}

// QueueEntry is one unit of outbound work.
type QueueEntry struct {
	ID            string  `db:"id" json:"id"`
	TenantID      string  `db:"tenant_id" json:"tenant_id"`
	CampaignID    *string `db:"campaign_id" json:"campaign_id,omitempty"`
	AppointmentID *string `db:"appointment_id" json:"appointment_id,omitempty"`

	PhoneNumber string `db:"phone_number" json:"phone_number"`
	ContactName string `db:"contact_name" json:"contact_name,omitempty"`

	DynamicVariables DynamicVariables `db:"dynamic_variables" json:"dynamic_variables"`
	Metadata         Metadata         `db:"metadata" json:"metadata,omitempty"`

	ScheduledFor time.Time `db:"scheduled_for" json:"scheduled_for"`
	Priority     int       `db:"priority" json:"priority"`

	Status        QueueStatus `db:"status" json:"status"`
	AttemptCount  int         `db:"attempt_count" json:"attempt_count"`
	MaxAttempts   int         `db:"max_attempts" json:"max_attempts"`
	LastAttemptAt *time.Time  `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	LastError     string      `db:"last_error" json:"last_error,omitempty"`

	CallID            *string    `db:"call_id" json:"call_id,omitempty"`
	ProviderCallID    *string    `db:"provider_call_id" json:"provider_call_id,omitempty"`
	Outcome           string     `db:"outcome" json:"outcome,omitempty"`
	OutcomeRecordedAt *time.Time `db:"outcome_recorded_at" json:"outcome_recorded_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsTerminal is shorthand for e.Status.Terminal.
func (e *QueueEntry) IsTerminal() bool {
	return e.Status.Terminal()
}

// AttemptsLeft is how many more times the processor may dial this entry.
func (e *QueueEntry) AttemptsLeft() int {
	left := e.MaxAttempts - e.AttemptCount
	if left < 0 {
		return 0
	}
	return left
}

// QueueFilter narrows List queries on the queue.
type QueueFilter struct {
	TenantID   string
	Status     QueueStatus
	CampaignID string
	Offset     int
	Limit      int
}
