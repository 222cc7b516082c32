package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

// DailyLimit is the outcome of a daily-cap check.
type DailyLimit struct {
	Allowed bool `json:"allowed"`
	Used    int  `json:"used"`
	Limit   int  `json:"limit"`
}

// CallingWindow evaluates tenant outbound hours and the daily cap.
type CallingWindow struct {
	SettingsRepo repository.SettingsRepositoryInterface
	// Defaults seeds settings for tenants that never saved any.
	Defaults func(tenantID string) model.OutboundSettings
	Log      *zap.Logger
}

func (w *CallingWindow) settings(ctx context.Context, tenantID string) (*model.OutboundSettings, error) {
	defaults := model.DefaultOutboundSettings(tenantID)
	if w.Defaults != nil {
		defaults = w.Defaults(tenantID)
	}
	return w.SettingsRepo.GetOrCreate(ctx, defaults)
}

// IsWithinCallingWindow reports whether now falls inside the tenant's
// allowed weekdays and HH:MM window, both ends inclusive.
func (w *CallingWindow) IsWithinCallingWindow(ctx context.Context, tenantID string, now time.Time) (bool, error) {
	s, err := w.settings(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return WithinWindow(s, now), nil
}

// CheckDailyLimit resets the counter on the first check of a new local day
// and compares it with the cap.
func (w *CallingWindow) CheckDailyLimit(ctx context.Context, tenantID string, now time.Time) (DailyLimit, error) {
	s, err := w.settings(ctx, tenantID)
	if err != nil {
		return DailyLimit{}, err
	}

	limit := s.DailyCallLimit
	if limit <= 0 {
		limit = model.DefaultDailyCallLimit
	}

	today := LocalDate(s, now)
	used := s.CallsMadeToday
	if s.LastResetDate != today {
		if _, err := w.SettingsRepo.ResetDailyCounter(ctx, tenantID, today); err != nil {
			return DailyLimit{}, err
		}
		// whoever won the reset, the counter belongs to today now
		used = 0
	}
	return DailyLimit{Allowed: used < limit, Used: used, Limit: limit}, nil
}

// RecordCall counts one placed call against today.
func (w *CallingWindow) RecordCall(ctx context.Context, tenantID string, now time.Time) error {
	s, err := w.settings(ctx, tenantID)
	if err != nil {
		return err
	}
	return w.SettingsRepo.IncrementCallsMade(ctx, tenantID, LocalDate(s, now))
}

// WithinWindow is the pure part of IsWithinCallingWindow.
func WithinWindow(s *model.OutboundSettings, now time.Time) bool {
	local := now.In(ResolveLocation(s))

	days := s.AllowedDays
	if len(days) == 0 {
		days = model.DefaultAllowedDays
	}
	allowed := false
	for _, d := range days {
		if d == int(local.Weekday()) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	start, err := parseClock(s.HoursStart)
	if err != nil {
		start, _ = parseClock(model.DefaultHoursStart)
	}
	end, err := parseClock(s.HoursEnd)
	if err != nil {
		end, _ = parseClock(model.DefaultHoursEnd)
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute <= end
}

// ResolveLocation picks the outbound timezone, then the business timezone,
// then the default.
func ResolveLocation(s *model.OutboundSettings) *time.Location {
	for _, name := range []string{s.Timezone, s.BusinessTimezone, model.DefaultTimezone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// LocalDate is now's calendar date in the tenant timezone.
func LocalDate(s *model.OutboundSettings, now time.Time) string {
	return now.In(ResolveLocation(s)).Format("2006-01-02")
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("bad clock value %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", v)
	}
	return h*60 + m, nil
}

// ValidateSettings checks user-editable fields before they are saved.
func ValidateSettings(s *model.OutboundSettings) error {
	if s.DailyCallLimit < 0 {
		return appErrors.NewValidation("daily_call_limit", "must not be negative")
	}
	start, err := parseClock(s.HoursStart)
	if err != nil {
		return appErrors.NewValidation("hours_start", "must be HH:MM")
	}
	end, err := parseClock(s.HoursEnd)
	if err != nil {
		return appErrors.NewValidation("hours_end", "must be HH:MM")
	}
	if end < start {
		return appErrors.NewValidation("hours_end", "must not be before hours_start")
	}
	for _, d := range s.AllowedDays {
		if d < 0 || d > 6 {
			return appErrors.NewValidation("allowed_days", "weekdays are 0 (Sunday) to 6")
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return appErrors.NewValidation("timezone", "unknown timezone")
		}
	}
	if s.ReminderCalls != "" && !s.ReminderCalls.Valid() {
		return appErrors.NewValidation("reminder_calls", "must be none, 24hr, 1hr or both")
	}
	return nil
}

// Settings returns the tenant's settings, creating the default row on first use.
func (w *CallingWindow) Settings(ctx context.Context, tenantID string) (*model.OutboundSettings, error) {
	return w.settings(ctx, tenantID)
}

// SettingsPatch is a partial update; nil fields are left alone.
type SettingsPatch struct {
	Enabled        *bool                `json:"enabled,omitempty"`
	DailyCallLimit *int                 `json:"daily_call_limit,omitempty"`
	HoursStart     *string              `json:"hours_start,omitempty"`
	HoursEnd       *string              `json:"hours_end,omitempty"`
	AllowedDays    []int                `json:"allowed_days,omitempty"`
	Timezone       *string              `json:"timezone,omitempty"`
	ReminderCalls  *model.ReminderCalls `json:"reminder_calls,omitempty"`
	RequireConsent *bool                `json:"require_consent,omitempty"`
}

// UpdateSettings applies patch and saves the result if it validates.
// The daily counter is never touched here.
func (w *CallingWindow) UpdateSettings(ctx context.Context, tenantID string, patch SettingsPatch) (*model.OutboundSettings, error) {
	s, err := w.settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if patch.Enabled != nil {
		s.Enabled = *patch.Enabled
	}
	if patch.DailyCallLimit != nil {
		s.DailyCallLimit = *patch.DailyCallLimit
	}
	if patch.HoursStart != nil {
		s.HoursStart = *patch.HoursStart
	}
	if patch.HoursEnd != nil {
		s.HoursEnd = *patch.HoursEnd
	}
	if patch.AllowedDays != nil {
		s.AllowedDays = patch.AllowedDays
	}
	if patch.Timezone != nil {
		s.Timezone = *patch.Timezone
	}
	if patch.ReminderCalls != nil {
		s.ReminderCalls = *patch.ReminderCalls
	}
	if patch.RequireConsent != nil {
		s.RequireConsent = *patch.RequireConsent
	}

	if err := ValidateSettings(s); err != nil {
		return nil, err
	}
	if err := w.SettingsRepo.Update(ctx, s); err != nil {
		return nil, err
	}
	if w.Log != nil {
		w.Log.Info("outbound settings updated", zap.String("tenant_id", tenantID))
	}
	return s, nil
}
