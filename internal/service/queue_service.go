package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

// EnqueueRequest is a new outbound call to be dialed by the processor.
type EnqueueRequest struct {
	PhoneNumber   string                 `json:"phone_number"`
	ContactName   string                 `json:"contact_name,omitempty"`
	CampaignID    *string                `json:"campaign_id,omitempty"`
	AppointmentID *string                `json:"appointment_id,omitempty"`
	Purpose       string                 `json:"purpose,omitempty"`
	CustomMessage string                 `json:"custom_message,omitempty"`
	Variables     model.DynamicVariables `json:"dynamic_variables,omitempty"`
	Metadata      model.Metadata         `json:"metadata,omitempty"`
	ScheduledFor  *time.Time             `json:"scheduled_for,omitempty"`
	Priority      int                    `json:"priority,omitempty"`
	MaxAttempts   int                    `json:"max_attempts,omitempty"`
}

// CampaignCompleter closes out a campaign whose queue has drained.
type CampaignCompleter interface {
	CheckCompletion(ctx context.Context, campaignID string) error
}

type QueueService struct {
	QueueRepo repository.QueueEntryRepositoryInterface
	Campaigns CampaignCompleter
	// MaxAttempts applies when a request leaves it unset.
	MaxAttempts int
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *QueueService) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *QueueService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// BuildEntry validates req and turns it into a queue entry without saving it.
func (s *QueueService) BuildEntry(tenantID string, req EnqueueRequest) (*model.QueueEntry, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	vars := model.DynamicVariables{}
	vars.Merge(req.Variables)
	if err := vars.Validate(); err != nil {
		return nil, appErrors.NewValidation("dynamic_variables", err.Error())
	}
	if req.Purpose != "" {
		vars[model.VarPurpose] = req.Purpose
	}
	if req.CustomMessage != "" {
		vars[model.VarCustomMessage] = req.CustomMessage
	}
	if vars.String(model.VarPurpose) == "" {
		vars[model.VarPurpose] = "custom"
	}
	if req.ContactName != "" && vars.String(model.VarCustomerName) == "" {
		vars[model.VarCustomerName] = req.ContactName
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}

	now := s.now()
	e := &model.QueueEntry{
		TenantID:         tenantID,
		CampaignID:       req.CampaignID,
		AppointmentID:    req.AppointmentID,
		PhoneNumber:      phone,
		ContactName:      strings.TrimSpace(req.ContactName),
		DynamicVariables: vars,
		Metadata:         req.Metadata,
		ScheduledFor:     now,
		Priority:         req.Priority,
		Status:           model.QueueStatusPending,
		MaxAttempts:      maxAttempts,
	}
	if req.ScheduledFor != nil && !req.ScheduledFor.IsZero() {
		e.ScheduledFor = *req.ScheduledFor
		if e.ScheduledFor.After(now) {
			e.Status = model.QueueStatusScheduled
		}
	}
	return e, nil
}

// Enqueue adds one entry. Future entries start as scheduled.
func (s *QueueService) Enqueue(ctx context.Context, tenantID string, req EnqueueRequest) (*model.QueueEntry, error) {
	e, err := s.BuildEntry(tenantID, req)
	if err != nil {
		return nil, err
	}
	if err := s.QueueRepo.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *QueueService) Get(ctx context.Context, tenantID, id string) (*model.QueueEntry, error) {
	e, err := s.QueueRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.TenantID != tenantID {
		return nil, appErrors.NewQueueEntryNotFound(id)
	}
	return e, nil
}

// List pages through a tenant's queue, newest first.
func (s *QueueService) List(ctx context.Context, tenantID string, status model.QueueStatus, campaignID string, page, pageSize int) ([]*model.QueueEntry, map[string]int, error) {
	if status != "" && !status.Valid() {
		return nil, nil, appErrors.NewValidation("status", "unknown queue status")
	}
	page, pageSize, offset := normalizePage(page, pageSize)
	entries, total, err := s.QueueRepo.List(ctx, model.QueueFilter{
		TenantID:   tenantID,
		Status:     status,
		CampaignID: campaignID,
		Offset:     offset,
		Limit:      pageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, paginationMap(page, pageSize, total), nil
}

// Cancel only succeeds for entries that have not been picked up yet.
// Cancelling the last open entry of a running campaign completes it.
func (s *QueueService) Cancel(ctx context.Context, tenantID, id string) error {
	if err := s.QueueRepo.Cancel(ctx, tenantID, id, s.now()); err != nil {
		return err
	}
	if s.Campaigns == nil {
		return nil
	}

	e, err := s.QueueRepo.FindByID(ctx, id)
	if err != nil {
		s.log().Warn("load cancelled entry", zap.String("queue_entry_id", id), zap.Error(err))
		return nil
	}
	if e.CampaignID == nil {
		return nil
	}
	if err := s.Campaigns.CheckCompletion(ctx, *e.CampaignID); err != nil {
		s.log().Warn("campaign completion check failed",
			zap.String("campaign_id", *e.CampaignID), zap.Error(err))
	}
	return nil
}

func (s *QueueService) Reschedule(ctx context.Context, tenantID, id string, at time.Time) error {
	if at.IsZero() {
		return appErrors.NewValidation("scheduled_for", "is required")
	}
	if err := s.QueueRepo.Reschedule(ctx, tenantID, id, at, s.now()); err != nil {
		return errors.WithMessage(err, "reschedule")
	}
	return nil
}
