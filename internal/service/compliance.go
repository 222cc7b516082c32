package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

// ComplianceGate answers whether a number may be called at all.
type ComplianceGate struct {
	DNCRepo      repository.DNCRepositoryInterface
	ConsentRepo  repository.ConsentRepositoryInterface
	SettingsRepo repository.SettingsRepositoryInterface

	// ConsentFailOpen lets calls through when the consent store is down.
	ConsentFailOpen bool
	Log             *zap.Logger
	Now             func() time.Time
}

func (g *ComplianceGate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *ComplianceGate) log() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

// IsBlocked reports whether an active DNC entry exists for phone. A lookup
// error is returned as is; callers must treat it as blocked.
func (g *ComplianceGate) IsBlocked(ctx context.Context, tenantID, phone string) (bool, error) {
	return g.DNCRepo.IsBlocked(ctx, tenantID, phone, g.now())
}

// CheckConsent returns "" when the call may proceed, otherwise the reason
// it may not.
func (g *ComplianceGate) CheckConsent(ctx context.Context, tenantID, phone string) (model.FailureReason, error) {
	if g.ConsentRepo == nil {
		return "", nil
	}

	consent, err := g.ConsentRepo.Get(ctx, tenantID, phone)
	if err != nil {
		if g.ConsentFailOpen {
			g.log().Warn("consent lookup failed, allowing call",
				zap.String("tenant_id", tenantID), zap.Error(err))
			return "", nil
		}
		return "", err
	}
	if consent != nil && consent.OptedOut() {
		return model.ReasonDNC, nil
	}
	if consent != nil && consent.GrantedAt != nil {
		return "", nil
	}

	if g.SettingsRepo == nil {
		return "", nil
	}
	settings, err := g.SettingsRepo.Get(ctx, tenantID)
	if err != nil {
		if g.ConsentFailOpen {
			return "", nil
		}
		return "", err
	}
	if settings != nil && settings.RequireConsent {
		return model.ReasonConsentRequired, nil
	}
	return "", nil
}

// DNCRequest adds a number to a tenant's do-not-call list.
type DNCRequest struct {
	PhoneNumber string          `json:"phone_number"`
	Reason      model.DNCReason `json:"reason"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// AddDNC normalizes the number and upserts the entry.
func (g *ComplianceGate) AddDNC(ctx context.Context, tenantID string, req DNCRequest) (*model.DNCEntry, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if req.Reason == "" {
		req.Reason = model.DNCReasonManual
	}
	if !req.Reason.Valid() {
		return nil, appErrors.NewValidation("reason", "unknown dnc reason")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(g.now()) {
		return nil, appErrors.NewValidation("expires_at", "must be in the future")
	}

	e := &model.DNCEntry{
		TenantID:    tenantID,
		PhoneNumber: phone,
		Reason:      req.Reason,
		ExpiresAt:   req.ExpiresAt,
		Notes:       req.Notes,
	}
	if err := g.DNCRepo.Add(ctx, e); err != nil {
		return nil, err
	}
	g.log().Info("number added to dnc list",
		zap.String("tenant_id", tenantID), zap.String("reason", string(e.Reason)))
	return e, nil
}

func (g *ComplianceGate) RemoveDNC(ctx context.Context, tenantID, rawPhone string) error {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	return g.DNCRepo.Remove(ctx, tenantID, phone)
}

// ListDNC pages through the list; search matches any part of the number.
func (g *ComplianceGate) ListDNC(ctx context.Context, tenantID, search string, page, pageSize int) ([]*model.DNCEntry, map[string]int, error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	entries, total, err := g.DNCRepo.List(ctx, tenantID, search, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return entries, paginationMap(page, pageSize, total), nil
}

// SetConsent records that a contact granted or withdrew permission for
// automated calls.
func (g *ComplianceGate) SetConsent(ctx context.Context, tenantID, rawPhone string, granted bool) error {
	if g.ConsentRepo == nil {
		return errors.New("consent store not configured")
	}
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if granted {
		return g.ConsentRepo.Grant(ctx, tenantID, phone, g.now())
	}
	return g.ConsentRepo.Revoke(ctx, tenantID, phone, g.now())
}
