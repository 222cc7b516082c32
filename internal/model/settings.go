package model

import "time"

const (
	DefaultTimezone       = "America/New_York"
	DefaultHoursStart     = "09:00"
	DefaultHoursEnd       = "18:00"
	DefaultDailyCallLimit = 100
)

// DefaultAllowedDays is Monday through Friday (0 = Sunday).
var DefaultAllowedDays = []int{1, 2, 3, 4, 5}

type ReminderCalls string

const (
	ReminderCallsNone ReminderCalls = "none"
	ReminderCalls24hr ReminderCalls = "24hr"
	ReminderCalls1hr  ReminderCalls = "1hr"
	ReminderCallsBoth ReminderCalls = "both"
)

func (r ReminderCalls) Valid() bool {
	switch r {
	case ReminderCallsNone, ReminderCalls24hr, ReminderCalls1hr, ReminderCallsBoth:
		return true
	}
	return false
}

// Wants reports whether the setting requests reminders of the given kind.
func (r ReminderCalls) Wants(kind ReminderKind) bool {
	if r == ReminderCallsBoth {
		return true
	}
	switch kind {
	case Reminder24hr:
		return r == ReminderCalls24hr
	case Reminder1hr:
		return r == ReminderCalls1hr
	}
	return false
}

// OutboundSettings is the per-tenant outbound calling configuration.
// CallsMadeToday is only meaningful for LastResetDate (tenant-local YYYY-MM-DD).
type OutboundSettings struct {
	TenantID         string        `db:"tenant_id" json:"tenant_id"`
	Enabled          bool          `db:"enabled" json:"enabled"`
	DailyCallLimit   int           `db:"daily_call_limit" json:"daily_call_limit"`
	HoursStart       string        `db:"hours_start" json:"hours_start"`
	HoursEnd         string        `db:"hours_end" json:"hours_end"`
	AllowedDays      []int         `db:"allowed_days" json:"allowed_days"`
	Timezone         string        `db:"timezone" json:"timezone,omitempty"`
	BusinessTimezone string        `db:"business_timezone" json:"business_timezone,omitempty"`
	CallsMadeToday   int           `db:"calls_made_today" json:"calls_made_today"`
	LastResetDate    string        `db:"last_reset_date" json:"last_reset_date,omitempty"`
	ReminderCalls    ReminderCalls `db:"reminder_calls" json:"reminder_calls"`
	RequireConsent   bool          `db:"require_consent" json:"require_consent"`
	UpdatedAt        *time.Time    `db:"updated_at" json:"updated_at,omitempty"`
}

// DefaultOutboundSettings is what a tenant without a settings row gets.
func DefaultOutboundSettings(tenantID string) OutboundSettings {
	days := make([]int, len(DefaultAllowedDays))
	copy(days, DefaultAllowedDays)
	return OutboundSettings{
		TenantID:       tenantID,
		Enabled:        true,
		DailyCallLimit: DefaultDailyCallLimit,
		HoursStart:     DefaultHoursStart,
		HoursEnd:       DefaultHoursEnd,
		AllowedDays:    days,
		ReminderCalls:  ReminderCallsNone,
	}
}

// TenantProfile is the slice of tenant configuration the call initiator needs.
type TenantProfile struct {
	TenantID       string `db:"tenant_id" json:"tenant_id"`
	BusinessName   string `db:"business_name" json:"business_name"`
	Timezone       string `db:"timezone" json:"timezone"`
	AgentID        string `db:"agent_id" json:"agent_id"`
	AgentName      string `db:"agent_name" json:"agent_name"`
	OutboundNumber string `db:"outbound_number" json:"outbound_number"`
	TransferNumber string `db:"transfer_number" json:"transfer_number"`
}
