package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/model"
)

// SettingsRepositoryInterface stores per-tenant outbound settings and the
// daily call counter. The counter is a row update, never process memory.
type SettingsRepositoryInterface interface {
	Get(ctx context.Context, tenantID string) (*model.OutboundSettings, error)
	GetOrCreate(ctx context.Context, defaults model.OutboundSettings) (*model.OutboundSettings, error)
	Update(ctx context.Context, s *model.OutboundSettings) error
	ResetDailyCounter(ctx context.Context, tenantID, today string) (bool, error)
	IncrementCallsMade(ctx context.Context, tenantID, today string) error
}

type SettingsRepository struct {
	DB *sql.DB
}

// Get returns nil, nil for a tenant that never saved settings.
func (r *SettingsRepository) Get(ctx context.Context, tenantID string) (*model.OutboundSettings, error) {
	query := `
        SELECT s.tenant_id, s.enabled, s.daily_call_limit, s.hours_start, s.hours_end, s.allowed_days,
               s.timezone, t.timezone, s.calls_made_today, s.last_reset_date, s.reminder_calls,
               s.require_consent, s.updated_at
        FROM outbound_settings s
        JOIN tenants t ON t.id = s.tenant_id
        WHERE s.tenant_id = $1`
	var s model.OutboundSettings
	var days pq.Int64Array
	err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(
		&s.TenantID, &s.Enabled, &s.DailyCallLimit, &s.HoursStart, &s.HoursEnd, &days,
		&s.Timezone, &s.BusinessTimezone, &s.CallsMadeToday, &s.LastResetDate, &s.ReminderCalls,
		&s.RequireConsent, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get outbound settings")
	}
	s.AllowedDays = make([]int, len(days))
	for i, d := range days {
		s.AllowedDays[i] = int(d)
	}
	return &s, nil
}

// GetOrCreate returns the stored row, inserting defaults first if missing.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, defaults model.OutboundSettings) (*model.OutboundSettings, error) {
	s, err := r.Get(ctx, defaults.TenantID)
	if err != nil || s != nil {
		return s, err
	}
	query := `
        INSERT INTO outbound_settings
        (tenant_id, enabled, daily_call_limit, hours_start, hours_end, allowed_days, timezone, reminder_calls, require_consent)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (tenant_id) DO NOTHING`
	_, err = r.DB.ExecContext(ctx, query,
		defaults.TenantID, defaults.Enabled, defaults.DailyCallLimit, defaults.HoursStart, defaults.HoursEnd,
		pq.Array(toInt64s(defaults.AllowedDays)), defaults.Timezone, defaults.ReminderCalls, defaults.RequireConsent,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outbound settings")
	}
	return r.Get(ctx, defaults.TenantID)
}

// Update writes the editable fields. The counter columns are left alone.
func (r *SettingsRepository) Update(ctx context.Context, s *model.OutboundSettings) error {
	query := `
        INSERT INTO outbound_settings
        (tenant_id, enabled, daily_call_limit, hours_start, hours_end, allowed_days, timezone, reminder_calls, require_consent, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (tenant_id) DO UPDATE SET
            enabled = EXCLUDED.enabled,
            daily_call_limit = EXCLUDED.daily_call_limit,
            hours_start = EXCLUDED.hours_start,
            hours_end = EXCLUDED.hours_end,
            allowed_days = EXCLUDED.allowed_days,
            timezone = EXCLUDED.timezone,
            reminder_calls = EXCLUDED.reminder_calls,
            require_consent = EXCLUDED.require_consent,
            updated_at = NOW()`
	_, err := r.DB.ExecContext(ctx, query,
		s.TenantID, s.Enabled, s.DailyCallLimit, s.HoursStart, s.HoursEnd,
		pq.Array(toInt64s(s.AllowedDays)), s.Timezone, s.ReminderCalls, s.RequireConsent,
	)
	return errors.Wrap(err, "update outbound settings")
}

// ResetDailyCounter zeroes the counter once per local day. Concurrent callers
// race on the WHERE clause and only one of them sees true.
func (r *SettingsRepository) ResetDailyCounter(ctx context.Context, tenantID, today string) (bool, error) {
	query := `
        UPDATE outbound_settings
        SET calls_made_today = 0, last_reset_date = $2, updated_at = NOW()
        WHERE tenant_id = $1 AND last_reset_date <> $2`
	res, err := r.DB.ExecContext(ctx, query, tenantID, today)
	if err != nil {
		return false, errors.Wrap(err, "reset daily counter")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reset daily counter")
	}
	return n == 1, nil
}

// IncrementCallsMade adds one call for today, starting over if the stored
// date is stale.
func (r *SettingsRepository) IncrementCallsMade(ctx context.Context, tenantID, today string) error {
	query := `
        UPDATE outbound_settings
        SET calls_made_today = CASE WHEN last_reset_date = $2 THEN calls_made_today + 1 ELSE 1 END,
            last_reset_date = $2,
            updated_at = NOW()
        WHERE tenant_id = $1`
	_, err := r.DB.ExecContext(ctx, query, tenantID, today)
	return errors.Wrap(err, "increment daily counter")
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

var _ SettingsRepositoryInterface = (*SettingsRepository)(nil)
