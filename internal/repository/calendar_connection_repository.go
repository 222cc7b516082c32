package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/model"
)

type CalendarConnectionRepositoryInterface interface {
	ListActiveExternal(ctx context.Context) ([]*model.CalendarConnection, error)
	UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiry time.Time) error
}

type CalendarConnectionRepository struct {
	DB *sql.DB
}

// ListActiveExternal skips tenants on the built-in calendar.
func (r *CalendarConnectionRepository) ListActiveExternal(ctx context.Context) ([]*model.CalendarConnection, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT tenant_id, provider, calendar_id, access_token, refresh_token, token_expiry
        FROM calendar_connections
        WHERE is_active AND provider <> 'builtin'
        ORDER BY tenant_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list calendar connections")
	}
	defer rows.Close()

	conns := []*model.CalendarConnection{}
	for rows.Next() {
		c := &model.CalendarConnection{}
		if err := rows.Scan(&c.TenantID, &c.Provider, &c.CalendarID, &c.AccessToken, &c.RefreshToken, &c.TokenExpiry); err != nil {
			return nil, errors.Wrap(err, "scan calendar connection")
		}
		conns = append(conns, c)
	}
	return conns, errors.Wrap(rows.Err(), "iterate calendar connections")
}

func (r *CalendarConnectionRepository) UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiry time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE calendar_connections
        SET access_token = $2, refresh_token = COALESCE(NULLIF($3, ''), refresh_token), token_expiry = $4
        WHERE tenant_id = $1`, tenantID, accessToken, refreshToken, expiry)
	return errors.Wrap(err, "update calendar tokens")
}

var _ CalendarConnectionRepositoryInterface = (*CalendarConnectionRepository)(nil)
