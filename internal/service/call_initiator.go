package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
	"github.com/unclebandit/koya-caller/internal/voice"
)

// CallResult is either a placed call or the reason one was not placed.
type CallResult struct {
	Success        bool                `json:"success"`
	CallID         string              `json:"call_id,omitempty"`
	ProviderCallID string              `json:"provider_call_id,omitempty"`
	Reason         model.FailureReason `json:"reason,omitempty"`
	Message        string              `json:"message,omitempty"`
}

func failed(reason model.FailureReason, msg string) *CallResult {
	return &CallResult{Reason: reason, Message: msg}
}

type InitiateOptions struct {
	Purpose       string
	CustomMessage string
	AppointmentID *string
	QueueEntryID  string
	Variables     model.DynamicVariables
	Metadata      map[string]string
}

// CallInitiator runs the pre-call checks and places the call.
type CallInitiator struct {
	Compliance *ComplianceGate
	Window     *CallingWindow
	TenantRepo repository.TenantRepositoryInterface
	CallRepo   repository.CallRepositoryInterface
	Voice      voice.Client
	Log        *zap.Logger
	Now        func() time.Time
}

func (c *CallInitiator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *CallInitiator) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// InitiateCall places one outbound call. A non-nil error means an
// infrastructure fault; no call was placed in that case either.
func (c *CallInitiator) InitiateCall(ctx context.Context, tenantID, toNumber string, opts InitiateOptions) (*CallResult, error) {
	now := c.now()
	log := c.log().With(zap.String("tenant_id", tenantID), zap.String("queue_entry_id", opts.QueueEntryID))

	phone, err := NormalizePhone(toNumber)
	if err != nil {
		return failed(model.ReasonInvalidNumber, fmt.Sprintf("%q is not a valid phone number", toNumber)), nil
	}

	blocked, err := c.Compliance.IsBlocked(ctx, tenantID, phone)
	if err != nil {
		return nil, err
	}
	if blocked {
		return failed(model.ReasonDNC, "number is on the do-not-call list"), nil
	}

	reason, err := c.Compliance.CheckConsent(ctx, tenantID, phone)
	if err != nil {
		return nil, err
	}
	switch reason {
	case model.ReasonDNC:
		return failed(reason, "contact opted out of calls"), nil
	case model.ReasonConsentRequired:
		return failed(reason, "no recorded consent for automated calls"), nil
	}

	inWindow, err := c.Window.IsWithinCallingWindow(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}
	if !inWindow {
		return failed(model.ReasonOutsideHours, "outside outbound calling hours"), nil
	}

	limit, err := c.Window.CheckDailyLimit(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		return failed(model.ReasonDailyLimit, fmt.Sprintf("daily limit reached (%d/%d)", limit.Used, limit.Limit)), nil
	}

	profile, err := c.TenantRepo.GetProfile(ctx, tenantID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return failed(model.ReasonNoAgent, "tenant not found"), nil
		}
		log.Warn("tenant profile lookup failed", zap.Error(err))
		return failed(model.ReasonAPIError, "could not load tenant configuration"), nil
	}
	if profile.AgentID == "" {
		return failed(model.ReasonNoAgent, "no active voice agent"), nil
	}
	if profile.OutboundNumber == "" {
		return failed(model.ReasonAPIError, "no outbound phone number assigned"), nil
	}

	line, err := c.Voice.GetPhoneNumber(ctx, profile.OutboundNumber)
	if err != nil {
		log.Warn("outbound number check failed", zap.String("number", profile.OutboundNumber), zap.Error(err))
		return failed(model.ReasonAPIError, "outbound number is not registered with the voice provider"), nil
	}
	if line.OutboundAgentID != "" && line.OutboundAgentID != profile.AgentID {
		return failed(model.ReasonAPIError, "outbound number is bound to a different agent"), nil
	}

	vars := buildVariables(profile, opts)
	if err := vars.Validate(); err != nil {
		return failed(model.ReasonAPIError, err.Error()), nil
	}

	callID := uuid.NewString()
	metadata := map[string]string{}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	metadata["tenant_id"] = tenantID
	metadata["call_id"] = callID
	if opts.QueueEntryID != "" {
		metadata["queue_entry_id"] = opts.QueueEntryID
	}
	if opts.AppointmentID != nil {
		metadata["appointment_id"] = *opts.AppointmentID
	}

	resp, err := c.Voice.CreatePhoneCall(ctx, voice.CreateCallRequest{
		AgentID:          profile.AgentID,
		FromNumber:       profile.OutboundNumber,
		ToNumber:         phone,
		DynamicVariables: vars.Flatten(),
		Metadata:         metadata,
	})
	if err != nil {
		log.Warn("voice provider rejected call", zap.Error(err))
		return failed(model.ReasonAPIError, err.Error()), nil
	}

	// The call is live from here on. Bookkeeping failures are logged only.
	record := &model.CallRecord{
		ID:             callID,
		TenantID:       tenantID,
		Direction:      model.CallDirectionOutbound,
		FromNumber:     profile.OutboundNumber,
		ToNumber:       phone,
		StartedAt:      now,
		ProviderCallID: resp.CallID,
		AppointmentID:  opts.AppointmentID,
		Purpose:        purposeOf(opts),
	}
	if err := c.CallRepo.Create(ctx, record); err != nil {
		log.Error("call placed but call record not saved",
			zap.String("call_id", callID), zap.String("provider_call_id", resp.CallID), zap.Error(err))
	}
	if err := c.Window.RecordCall(ctx, tenantID, now); err != nil {
		log.Error("call placed but daily counter not incremented", zap.Error(err))
	}

	log.Info("outbound call placed", zap.String("call_id", callID), zap.String("provider_call_id", resp.CallID))
	return &CallResult{Success: true, CallID: callID, ProviderCallID: resp.CallID}, nil
}

func purposeOf(opts InitiateOptions) string {
	if opts.Purpose != "" {
		return opts.Purpose
	}
	if p := opts.Variables.String(model.VarPurpose); p != "" {
		return p
	}
	return "custom"
}

func buildVariables(p *model.TenantProfile, opts InitiateOptions) model.DynamicVariables {
	purpose := purposeOf(opts)
	vars := model.DynamicVariables{
		model.VarBusinessName:    p.BusinessName,
		model.VarAgentName:       p.AgentName,
		model.VarTransferNumber:  p.TransferNumber,
		model.VarCanTransfer:     p.TransferNumber != "",
		model.VarPurpose:         purpose,
		model.VarOutboundPurpose: purpose,
	}
	if opts.CustomMessage != "" {
		vars[model.VarCustomMessage] = opts.CustomMessage
	}
	vars.Merge(opts.Variables)
	return vars
}
