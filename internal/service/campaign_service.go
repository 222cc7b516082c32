// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	QueueRepo    repository.QueueEntryRepositoryInterface
	Queue        *QueueService
	Log          *zap.Logger
}

func (s *CampaignService) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Result struct for LaunchCampaign
type LaunchCampaignResult struct {
	CampaignID    string               `json:"campaign_id"`
	EntriesQueued int                  `json:"entries_queued"`
	Duplicates    int                  `json:"duplicates"`
	Skipped       []LaunchSkippedEntry `json:"skipped,omitempty"`
	Status        model.CampaignStatus `json:"status"`
	EntryIDs      []string             `json:"entry_ids"`
}

type LaunchSkippedEntry struct {
	ContactID string `json:"contact_id"`
	Reason    string `json:"reason"`
}

type CampaignDetails struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Purpose         string               `json:"purpose"`
	Status          model.CampaignStatus `json:"status"`
	MessageTemplate string               `json:"message_template"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       *time.Time           `json:"updated_at"`
	Counters        map[string]int       `json:"counters"`
	Stats           map[string]int       `json:"stats"`
}

// campaignStatusTransitions lists where a campaign may move by hand.
var campaignStatusTransitions = map[model.CampaignStatus][]model.CampaignStatus{
	model.CampaignStatusPaused:    {model.CampaignStatusRunning},
	model.CampaignStatusRunning:   {model.CampaignStatusPaused},
	model.CampaignStatusCancelled: {model.CampaignStatusDraft, model.CampaignStatusScheduled, model.CampaignStatusRunning, model.CampaignStatusPaused},
}

func contactData(c model.Contact) map[string]string {
	return map[string]string{
		"first_name": valueOr(c.FirstName),
		"last_name":  valueOr(c.LastName),
		"full_name":  valueOr(c.FullName()),
		"phone":      c.Phone,
		"notes":      c.Notes,
	}
}

func valueOr(v string) string {
	if strings.TrimSpace(v) == "" {
		return "there"
	}
	return v
}

// getOwned loads a campaign and hides other tenants' campaigns.
func (s *CampaignService) getOwned(ctx context.Context, tenantID, campaignID string) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.TenantID != tenantID {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	return campaign, nil
}

func (s *CampaignService) RenderPreview(ctx context.Context, tenantID, campaignID, contactID string, overrideTemplate *string) (string, error) {
	campaign, err := s.getOwned(ctx, tenantID, campaignID)
	if err != nil {
		return "", err
	}

	contact, err := s.ContactRepo.GetByID(ctx, tenantID, contactID)
	if err != nil {
		return "", err
	}

	template := campaign.MessageTemplate
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", appErrors.NewValidation("message_template", "template cannot be empty")
	}

	return RenderTemplate(template, contactData(*contact)), nil
}

// LaunchCampaign fans the campaign out to contacts as queue entries. A
// contact already queued for the campaign is counted as a duplicate.
func (s *CampaignService) LaunchCampaign(ctx context.Context, tenantID, campaignID string, contactIDs []string) (*LaunchCampaignResult, error) {
	campaign, err := s.getOwned(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case model.CampaignStatusDraft, model.CampaignStatusScheduled, model.CampaignStatusRunning:
	default:
		return nil, fmt.Errorf("%w: campaign cannot be launched in status: %s", appErrors.ErrInvalidState, campaign.Status)
	}
	if len(contactIDs) == 0 {
		return nil, appErrors.NewValidation("contact_ids", "at least one contact is required")
	}

	contacts, err := s.ContactRepo.ListByIDs(ctx, tenantID, contactIDs)
	if err != nil {
		return nil, err
	}

	result := &LaunchCampaignResult{
		CampaignID: campaignID,
		Status:     model.CampaignStatusRunning,
		EntryIDs:   []string{},
	}

	found := make(map[string]bool, len(contacts))
	for _, contact := range contacts {
		found[contact.ID] = true

		req := EnqueueRequest{
			PhoneNumber:   contact.Phone,
			ContactName:   contact.FullName(),
			CampaignID:    &campaign.ID,
			Purpose:       campaign.Purpose,
			CustomMessage: RenderTemplate(campaign.MessageTemplate, contactData(contact)),
			Metadata:      model.Metadata{"contact_id": contact.ID},
			ScheduledFor:  campaign.ScheduledAt,
		}
		entry, err := s.Queue.BuildEntry(tenantID, req)
		if err != nil {
			result.Skipped = append(result.Skipped, LaunchSkippedEntry{ContactID: contact.ID, Reason: err.Error()})
			continue
		}

		inserted, err := s.QueueRepo.InsertForCampaign(ctx, entry)
		if err != nil {
			s.log().Warn("failed to enqueue campaign contact",
				zap.String("campaign_id", campaignID), zap.String("contact_id", contact.ID), zap.Error(err))
			result.Skipped = append(result.Skipped, LaunchSkippedEntry{ContactID: contact.ID, Reason: "enqueue failed"})
			continue
		}
		if !inserted {
			result.Duplicates++
			continue
		}

		result.EntryIDs = append(result.EntryIDs, entry.ID)
		result.EntriesQueued++
	}

	for _, id := range contactIDs {
		if !found[id] {
			result.Skipped = append(result.Skipped, LaunchSkippedEntry{ContactID: id, Reason: "contact not found"})
		}
	}

	if campaign.Status != model.CampaignStatusRunning {
		if err := s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignStatusRunning); err != nil {
			return result, err
		}
	}

	s.log().Info("campaign launched",
		zap.String("tenant_id", tenantID),
		zap.String("campaign_id", campaignID),
		zap.Int("queued", result.EntriesQueued),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context, tenantID, name, purpose, messageTemplate string, scheduledAt *string) (*model.Campaign, error) {
	if strings.TrimSpace(name) == "" {
		return nil, appErrors.NewValidation("name", "is required")
	}
	c := &model.Campaign{
		TenantID:        tenantID,
		Name:            name,
		Purpose:         purpose,
		MessageTemplate: messageTemplate,
		Status:          model.CampaignStatusDraft,
	}
	if c.Purpose == "" {
		c.Purpose = "custom"
	}

	if scheduledAt != nil {
		// parse scheduledAt string into time.Time
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, appErrors.NewValidation("scheduled_at", "must be RFC3339")
		}
		c.ScheduledAt = &t
		c.Status = model.CampaignStatusScheduled
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, tenantID string, page, pageSize int, purpose, status string) ([]model.Campaign, map[string]int, error) {
	page, pageSize, offset := normalizePage(page, pageSize)

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, tenantID, offset, pageSize, purpose, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	return campaigns, paginationMap(page, pageSize, total), nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, tenantID, id string) (*model.Campaign, error) {
	return s.getOwned(ctx, tenantID, id)
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, tenantID, campaignID string) (*CampaignDetails, error) {
	campaign, err := s.getOwned(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.QueueRepo.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	// initialize stats map
	stats := map[string]int{"total": 0}
	for _, st := range []model.QueueStatus{
		model.QueueStatusPending, model.QueueStatusScheduled, model.QueueStatusCalling,
		model.QueueStatusCompleted, model.QueueStatusFailed, model.QueueStatusCancelled,
		model.QueueStatusDNCBlocked, model.QueueStatusDeclined, model.QueueStatusNoAnswer,
	} {
		stats[string(st)] = counts[st]
		stats["total"] += counts[st]
	}

	return &CampaignDetails{
		ID:              campaign.ID,
		Name:            campaign.Name,
		Purpose:         campaign.Purpose,
		Status:          campaign.Status,
		MessageTemplate: campaign.MessageTemplate,
		ScheduledAt:     campaign.ScheduledAt,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
		Counters: map[string]int{
			"total_calls":       campaign.TotalCalls,
			"completed_calls":   campaign.CompletedCalls,
			"failed_calls":      campaign.FailedCalls,
			"no_answer_calls":   campaign.NoAnswerCalls,
			"booked_calls":      campaign.BookedCalls,
			"transferred_calls": campaign.TransferredCalls,
		},
		Stats: stats,
	}, nil
}

// ChangeStatus pauses, resumes or cancels a campaign.
func (s *CampaignService) ChangeStatus(ctx context.Context, tenantID, campaignID string, to model.CampaignStatus) (*model.Campaign, error) {
	campaign, err := s.getOwned(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, from := range campaignStatusTransitions[to] {
		if from == campaign.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", appErrors.ErrInvalidState, campaign.Status, to)
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, campaignID, to); err != nil {
		return nil, err
	}
	campaign.Status = to
	return campaign, nil
}

// StatsDelta maps a terminal queue status and outcome label to counters.
func StatsDelta(status model.QueueStatus, outcome string) model.CampaignStatsDelta {
	d := model.CampaignStatsDelta{Total: 1}
	switch status {
	case model.QueueStatusCompleted:
		d.Completed = 1
	case model.QueueStatusNoAnswer:
		d.NoAnswer = 1
	case model.QueueStatusFailed, model.QueueStatusDeclined, model.QueueStatusDNCBlocked:
		d.Failed = 1
	}
	switch outcome {
	case OutcomeBooked:
		d.Booked = 1
	case OutcomeTransferred:
		d.Transferred = 1
	}
	return d
}

// FoldOutcome adds one terminal entry to the campaign counters and marks a
// running campaign completed once nothing is left to dial.
func (s *CampaignService) FoldOutcome(ctx context.Context, campaignID string, status model.QueueStatus, outcome string) error {
	if err := s.CampaignRepo.ApplyStatsDelta(ctx, campaignID, StatsDelta(status, outcome)); err != nil {
		return err
	}
	return s.CheckCompletion(ctx, campaignID)
}

// CheckCompletion marks a running campaign completed once it has no
// entries left to dial.
func (s *CampaignService) CheckCompletion(ctx context.Context, campaignID string) error {
	done, err := s.CampaignRepo.CompleteIfRunning(ctx, campaignID)
	if err != nil {
		return err
	}
	if done {
		s.log().Info("campaign completed", zap.String("campaign_id", campaignID))
	}
	return nil
}

var (
	_ OutcomeFolder     = (*CampaignService)(nil)
	_ CampaignCompleter = (*CampaignService)(nil)
)
