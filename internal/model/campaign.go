// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type Campaign struct {
	ID              string         `db:"id" json:"id"`
	TenantID        string         `db:"tenant_id" json:"tenant_id"`
	Name            string         `db:"name" json:"name"`
	Purpose         string         `db:"purpose" json:"purpose"`
	MessageTemplate string         `db:"message_template" json:"message_template"`
	Status          CampaignStatus `db:"status" json:"status"`
	ScheduledAt     *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`

	TotalCalls       int `db:"total_calls" json:"total_calls"`
	CompletedCalls   int `db:"completed_calls" json:"completed_calls"`
	FailedCalls      int `db:"failed_calls" json:"failed_calls"`
	NoAnswerCalls    int `db:"no_answer_calls" json:"no_answer_calls"`
	BookedCalls      int `db:"booked_calls" json:"booked_calls"`
	TransferredCalls int `db:"transferred_calls" json:"transferred_calls"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignStatsDelta is one terminal outcome folded into a campaign's counters.
type CampaignStatsDelta struct {
	Total       int
	Completed   int
	Failed      int
	NoAnswer    int
	Booked      int
	Transferred int
}

func (d CampaignStatsDelta) IsZero() bool {
	return d == CampaignStatsDelta{}
}
