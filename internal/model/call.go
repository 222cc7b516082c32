package model

import "time"

// CallRecord is the internal row for a placed call.
type CallRecord struct {
	ID               string     `db:"id" json:"id"`
	TenantID         string     `db:"tenant_id" json:"tenant_id"`
	Direction        string     `db:"direction" json:"direction"`
	FromNumber       string     `db:"from_number" json:"from_number"`
	ToNumber         string     `db:"to_number" json:"to_number"`
	StartedAt        time.Time  `db:"started_at" json:"started_at"`
	ProviderCallID   string     `db:"provider_call_id" json:"provider_call_id"`
	AppointmentID    *string    `db:"appointment_id" json:"appointment_id,omitempty"`
	Purpose          string     `db:"purpose" json:"purpose"`
	Status           string     `db:"status" json:"status"`
	DurationSeconds  int        `db:"duration_seconds" json:"duration_seconds"`
	DisconnectReason string     `db:"disconnect_reason" json:"disconnect_reason,omitempty"`
	EndedAt          *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

const CallDirectionOutbound = "outbound"

// OutcomeEvent is a normalized call-completion webhook.
type OutcomeEvent struct {
	ProviderCallID   string `json:"provider_call_id"`
	TenantID         string `json:"tenant_id"`
	CallID           string `json:"call_id,omitempty"`
	QueueEntryID     string `json:"queue_entry_id,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	DurationSeconds  int    `json:"duration_seconds"`
	DisconnectReason string `json:"disconnect_reason,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}
