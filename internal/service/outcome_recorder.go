package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

// OutcomeRecorder applies call-completion events to the queue. Events are
// delivered at least once; only the first one per entry has an effect.
type OutcomeRecorder struct {
	QueueRepo repository.QueueEntryRepositoryInterface
	CallRepo  repository.CallRepositoryInterface
	Campaigns OutcomeFolder
	Log       *zap.Logger
	Now       func() time.Time
}

func (r *OutcomeRecorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *OutcomeRecorder) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// RecordOutcome is a no-op for calls the queue never managed.
func (r *OutcomeRecorder) RecordOutcome(ctx context.Context, in model.OutcomeEvent) error {
	now := r.now()
	status := MapDisconnectionToStatus(in.DisconnectReason, in.DurationSeconds)
	outcome := MapOutcomeToOutboundOutcome(in.Outcome, in.DisconnectReason)
	log := r.log().With(
		zap.String("tenant_id", in.TenantID),
		zap.String("provider_call_id", in.ProviderCallID),
	)

	if r.CallRepo != nil && in.ProviderCallID != "" {
		if err := r.CallRepo.MarkEnded(ctx, in.ProviderCallID, string(status), in.DurationSeconds, in.DisconnectReason, now); err != nil {
			log.Warn("update call record", zap.Error(err))
		}
	}

	entry, err := r.lookup(ctx, in)
	if err != nil {
		return err
	}
	if entry == nil {
		log.Debug("outcome for call outside the queue")
		return nil
	}
	if in.TenantID != "" && entry.TenantID != in.TenantID {
		log.Warn("outcome tenant does not match queue entry", zap.String("queue_entry_id", entry.ID))
		return nil
	}
	if !ValidTransition(ActionOutcome, entry.Status) {
		log.Info("outcome for settled queue entry ignored",
			zap.String("queue_entry_id", entry.ID), zap.String("status", string(entry.Status)))
		return nil
	}

	won, err := r.QueueRepo.RecordOutcome(ctx, entry.ID, status, outcome, in.ProviderCallID, now)
	if err != nil {
		return err
	}
	if !won {
		log.Debug("duplicate outcome ignored", zap.String("queue_entry_id", entry.ID))
		return nil
	}

	log.Info("call outcome recorded",
		zap.String("queue_entry_id", entry.ID),
		zap.String("status", string(status)),
		zap.String("outcome", outcome),
		zap.Int("duration_seconds", in.DurationSeconds),
	)

	if entry.CampaignID != nil && r.Campaigns != nil {
		if err := r.Campaigns.FoldOutcome(ctx, *entry.CampaignID, status, outcome); err != nil {
			return err
		}
	}
	return nil
}

// lookup tries the provider call id, then our call id, then the queue
// entry id carried in provider metadata.
func (r *OutcomeRecorder) lookup(ctx context.Context, in model.OutcomeEvent) (*model.QueueEntry, error) {
	if in.ProviderCallID != "" {
		e, err := r.QueueRepo.FindByProviderCallID(ctx, in.ProviderCallID)
		if err != nil || e != nil {
			return e, err
		}
	}
	if in.CallID != "" {
		e, err := r.QueueRepo.FindByCallID(ctx, in.CallID)
		if err != nil || e != nil {
			return e, err
		}
	}
	if in.QueueEntryID != "" {
		e, err := r.QueueRepo.FindByID(ctx, in.QueueEntryID)
		if appErrors.IsNotFound(err) {
			return nil, nil
		}
		return e, err
	}
	return nil, nil
}
