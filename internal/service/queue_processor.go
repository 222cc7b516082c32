package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/lock"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

const DefaultBatchSize = 10

// Initiator is the part of CallInitiator the processor depends on.
type Initiator interface {
	InitiateCall(ctx context.Context, tenantID, toNumber string, opts InitiateOptions) (*CallResult, error)
}

// OutcomeFolder folds a terminal entry into its campaign's counters.
type OutcomeFolder interface {
	FoldOutcome(ctx context.Context, campaignID string, status model.QueueStatus, outcome string) error
}

type ProcessSummary struct {
	TenantID  string `json:"tenant_id,omitempty"`
	Promoted  int64  `json:"promoted"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   string `json:"skipped,omitempty"`
}

// QueueProcessor dials due entries for a tenant. Runs for the same tenant
// are serialized through Locker.
type QueueProcessor struct {
	QueueRepo    repository.QueueEntryRepositoryInterface
	SettingsRepo repository.SettingsRepositoryInterface
	Initiator    Initiator
	Window       *CallingWindow
	Campaigns    OutcomeFolder
	Locker       lock.Locker

	BatchSize int
	LockTTL   time.Duration
	Log       *zap.Logger
	Now       func() time.Time
}

func (p *QueueProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *QueueProcessor) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// ProcessQueue runs one batch for tenantID. ErrLockHeld means another run
// for the tenant is in progress.
func (p *QueueProcessor) ProcessQueue(ctx context.Context, tenantID string) (ProcessSummary, error) {
	summary := ProcessSummary{TenantID: tenantID}
	log := p.log().With(zap.String("tenant_id", tenantID))

	ttl := p.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	release, ok, err := p.Locker.TryLock(ctx, "queue:"+tenantID, ttl)
	if err != nil {
		return summary, err
	}
	if !ok {
		return summary, appErrors.ErrLockHeld
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.Warn("release queue lock", zap.Error(err))
		}
	}()

	now := p.now()

	settings, err := p.SettingsRepo.Get(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	if settings != nil && !settings.Enabled {
		summary.Skipped = "outbound calling disabled"
		return summary, nil
	}

	promoted, err := p.QueueRepo.PromoteScheduled(ctx, tenantID, now)
	if err != nil {
		return summary, err
	}
	summary.Promoted = promoted

	// Leave entries pending rather than spend an attempt on a closed window.
	if p.Window != nil {
		open, err := p.Window.IsWithinCallingWindow(ctx, tenantID, now)
		if err != nil {
			return summary, err
		}
		if !open {
			summary.Skipped = string(model.ReasonOutsideHours)
			return summary, nil
		}
	}

	limit := p.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	entries, err := p.QueueRepo.ListDue(ctx, tenantID, now, limit)
	if err != nil {
		return summary, err
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		claimed, err := p.QueueRepo.Claim(ctx, e.ID, p.now())
		if err != nil {
			log.Error("claim queue entry", zap.String("queue_entry_id", e.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		summary.Processed++

		if p.dial(ctx, e) {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	log.Info("queue batch processed",
		zap.Int64("promoted", summary.Promoted),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// dial places the call for a claimed entry and records the attempt.
func (p *QueueProcessor) dial(ctx context.Context, e *model.QueueEntry) bool {
	log := p.log().With(zap.String("tenant_id", e.TenantID), zap.String("queue_entry_id", e.ID))

	result, err := p.Initiator.InitiateCall(ctx, e.TenantID, e.PhoneNumber, InitiateOptions{
		Purpose:       e.DynamicVariables.String(model.VarPurpose),
		CustomMessage: e.DynamicVariables.String(model.VarCustomMessage),
		AppointmentID: e.AppointmentID,
		QueueEntryID:  e.ID,
		Variables:     e.DynamicVariables,
	})
	if err != nil {
		log.Warn("initiate call failed", zap.Error(err))
		result = failed(model.ReasonAPIError, err.Error())
	}

	now := p.now()
	if result.Success {
		if err := p.QueueRepo.MarkInitiated(ctx, e.ID, result.CallID, result.ProviderCallID, now); err != nil {
			log.Error("call placed but queue entry not updated",
				zap.String("provider_call_id", result.ProviderCallID), zap.Error(err))
		}
		return true
	}

	next := NextState(e.AttemptCount+1, e.MaxAttempts, result.Reason)
	lastError := string(result.Reason)
	if result.Message != "" {
		lastError += ": " + result.Message
	}
	if err := p.QueueRepo.MarkAttemptFailed(ctx, e.ID, next, lastError, now); err != nil {
		log.Error("record failed attempt", zap.Error(err))
		return false
	}
	log.Info("call attempt failed",
		zap.String("reason", string(result.Reason)),
		zap.String("next_status", string(next)),
		zap.Int("attempt", e.AttemptCount+1),
	)

	if next.Terminal() && e.CampaignID != nil && p.Campaigns != nil {
		if err := p.Campaigns.FoldOutcome(ctx, *e.CampaignID, next, ""); err != nil {
			log.Error("fold campaign stats", zap.String("campaign_id", *e.CampaignID), zap.Error(err))
		}
	}
	return false
}

// ProcessAll runs ProcessQueue for every tenant with due work.
func (p *QueueProcessor) ProcessAll(ctx context.Context) ([]ProcessSummary, error) {
	tenants, err := p.QueueRepo.TenantsWithDueEntries(ctx, p.now())
	if err != nil {
		return nil, err
	}
	out := make([]ProcessSummary, 0, len(tenants))
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		s, err := p.ProcessQueue(ctx, tenantID)
		if err != nil {
			if errors.Is(err, appErrors.ErrLockHeld) {
				s.Skipped = "already running"
			} else {
				p.log().Error("process tenant queue", zap.String("tenant_id", tenantID), zap.Error(err))
				s.Skipped = "error"
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// RecoverStale returns entries stuck in calling longer than olderThan to
// pending, or to failed when they were on their last attempt.
func (p *QueueProcessor) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := p.now()
	entries, err := p.QueueRepo.RecoverStale(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		p.log().Warn("recovered stale queue entry",
			zap.String("tenant_id", e.TenantID),
			zap.String("queue_entry_id", e.ID),
			zap.String("status", string(e.Status)),
			zap.Int("attempt_count", e.AttemptCount),
		)
		if e.Status.Terminal() && e.CampaignID != nil && p.Campaigns != nil {
			if err := p.Campaigns.FoldOutcome(ctx, *e.CampaignID, e.Status, ""); err != nil {
				p.log().Error("fold campaign stats", zap.String("campaign_id", *e.CampaignID), zap.Error(err))
			}
		}
	}
	return len(entries), nil
}
