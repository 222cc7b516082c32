package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
)

type DNCRepositoryInterface interface {
	IsBlocked(ctx context.Context, tenantID, phone string, now time.Time) (bool, error)
	Add(ctx context.Context, e *model.DNCEntry) error
	Remove(ctx context.Context, tenantID, phone string) error
	List(ctx context.Context, tenantID, search string, offset, limit int) ([]*model.DNCEntry, int, error)
}

type DNCRepository struct {
	DB *sql.DB
}

// IsBlocked reports whether an unexpired entry exists for the number.
func (r *DNCRepository) IsBlocked(ctx context.Context, tenantID, phone string, now time.Time) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM dnc_list
            WHERE tenant_id = $1 AND phone_number = $2
              AND (expires_at IS NULL OR expires_at > $3)
        )`
	var blocked bool
	if err := r.DB.QueryRowContext(ctx, query, tenantID, phone, now).Scan(&blocked); err != nil {
		return false, errors.Wrap(err, "dnc lookup")
	}
	return blocked, nil
}

// Add inserts or refreshes the entry for (tenant, phone).
func (r *DNCRepository) Add(ctx context.Context, e *model.DNCEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO dnc_list (id, tenant_id, phone_number, reason, expires_at, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (tenant_id, phone_number)
        DO UPDATE SET reason = EXCLUDED.reason, expires_at = EXCLUDED.expires_at, notes = EXCLUDED.notes
        RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query,
		e.ID, e.TenantID, e.PhoneNumber, e.Reason, e.ExpiresAt, e.Notes, e.CreatedAt,
	).Scan(&e.ID, &e.CreatedAt)
	return errors.Wrap(err, "add dnc entry")
}

func (r *DNCRepository) Remove(ctx context.Context, tenantID, phone string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM dnc_list WHERE tenant_id = $1 AND phone_number = $2`, tenantID, phone)
	if err != nil {
		return errors.Wrap(err, "remove dnc entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "remove dnc entry")
	}
	if n == 0 {
		return appErrors.NewDNCEntryNotFound(phone)
	}
	return nil
}

// List pages through a tenant's entries. search matches a phone substring.
func (r *DNCRepository) List(ctx context.Context, tenantID, search string, offset, limit int) ([]*model.DNCEntry, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	argPos := 2
	if search != "" {
		where += fmt.Sprintf(" AND phone_number LIKE $%d", argPos)
		args = append(args, "%"+search+"%")
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM dnc_list`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count dnc entries")
	}

	query := `SELECT id, tenant_id, phone_number, reason, expires_at, notes, created_at FROM dnc_list` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list dnc entries")
	}
	defer rows.Close()

	entries := []*model.DNCEntry{}
	for rows.Next() {
		e := &model.DNCEntry{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PhoneNumber, &e.Reason, &e.ExpiresAt, &e.Notes, &e.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan dnc entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate dnc entries")
	}
	return entries, total, nil
}

var _ DNCRepositoryInterface = (*DNCRepository)(nil)
