package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/model"
)

type ConsentRepositoryInterface interface {
	Get(ctx context.Context, tenantID, phone string) (*model.Consent, error)
	Grant(ctx context.Context, tenantID, phone string, at time.Time) error
	Revoke(ctx context.Context, tenantID, phone string, at time.Time) error
}

type ConsentRepository struct {
	DB *sql.DB
}

// Get returns nil, nil when nothing is recorded for the number.
func (r *ConsentRepository) Get(ctx context.Context, tenantID, phone string) (*model.Consent, error) {
	query := `
        SELECT tenant_id, phone_number, granted_at, revoked_at
        FROM call_consents
        WHERE tenant_id = $1 AND phone_number = $2`
	var c model.Consent
	err := r.DB.QueryRowContext(ctx, query, tenantID, phone).Scan(&c.TenantID, &c.PhoneNumber, &c.GrantedAt, &c.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "consent lookup")
	}
	return &c, nil
}

// Grant records consent and clears any earlier revocation.
func (r *ConsentRepository) Grant(ctx context.Context, tenantID, phone string, at time.Time) error {
	query := `
        INSERT INTO call_consents (tenant_id, phone_number, granted_at, revoked_at)
        VALUES ($1, $2, $3, NULL)
        ON CONFLICT (tenant_id, phone_number)
        DO UPDATE SET granted_at = EXCLUDED.granted_at, revoked_at = NULL`
	_, err := r.DB.ExecContext(ctx, query, tenantID, phone, at)
	return errors.Wrap(err, "grant consent")
}

func (r *ConsentRepository) Revoke(ctx context.Context, tenantID, phone string, at time.Time) error {
	query := `
        INSERT INTO call_consents (tenant_id, phone_number, revoked_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (tenant_id, phone_number)
        DO UPDATE SET revoked_at = EXCLUDED.revoked_at`
	_, err := r.DB.ExecContext(ctx, query, tenantID, phone, at)
	return errors.Wrap(err, "revoke consent")
}

var _ ConsentRepositoryInterface = (*ConsentRepository)(nil)
