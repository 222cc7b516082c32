package model

import "time"

type DNCReason string

const (
	DNCReasonCustomerRequest DNCReason = "customer_request"
	DNCReasonOptOut          DNCReason = "opt_out"
	DNCReasonComplaint       DNCReason = "complaint"
	DNCReasonLegal           DNCReason = "legal"
	DNCReasonWrongNumber     DNCReason = "wrong_number"
	DNCReasonManual          DNCReason = "manual"
)

func (r DNCReason) Valid() bool {
	switch r {
	case DNCReasonCustomerRequest, DNCReasonOptOut, DNCReasonComplaint,
		DNCReasonLegal, DNCReasonWrongNumber, DNCReasonManual:
		return true
	}
	return false
}

// DNCEntry suppresses a number for a tenant. A nil ExpiresAt is permanent.
type DNCEntry struct {
	ID          string     `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	PhoneNumber string     `db:"phone_number" json:"phone_number"`
	Reason      DNCReason  `db:"reason" json:"reason"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Notes       string     `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (e DNCEntry) ActiveAt(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Consent is a contact's recorded permission to receive automated calls.
type Consent struct {
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	PhoneNumber string     `db:"phone_number" json:"phone_number"`
	GrantedAt   *time.Time `db:"granted_at" json:"granted_at,omitempty"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

func (c Consent) OptedOut() bool {
	return c.RevokedAt != nil
}

// FailureReason is why a call was not placed.
type FailureReason string

const (
	ReasonInvalidNumber   FailureReason = "invalid_number"
	ReasonDNC             FailureReason = "dnc"
	ReasonOutsideHours    FailureReason = "outside_hours"
	ReasonDailyLimit      FailureReason = "daily_limit"
	ReasonNoAgent         FailureReason = "no_agent"
	ReasonConsentRequired FailureReason = "consent_required"
	ReasonAPIError        FailureReason = "api_error"
)
