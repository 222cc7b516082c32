package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/model"
)

type CallRepositoryInterface interface {
	Create(ctx context.Context, c *model.CallRecord) error
	MarkEnded(ctx context.Context, providerCallID, status string, durationSeconds int, disconnectReason string, endedAt time.Time) error
}

type CallRepository struct {
	DB *sql.DB
}

func (r *CallRepository) Create(ctx context.Context, c *model.CallRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = "initiated"
	}
	query := `
        INSERT INTO calls
        (id, tenant_id, direction, from_number, to_number, started_at, provider_call_id, appointment_id, purpose, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.TenantID, c.Direction, c.FromNumber, c.ToNumber, c.StartedAt,
		c.ProviderCallID, c.AppointmentID, c.Purpose, c.Status,
	)
	return errors.Wrap(err, "insert call record")
}

// MarkEnded stamps end-of-call data. Repeat deliveries rewrite the same values.
func (r *CallRepository) MarkEnded(ctx context.Context, providerCallID, status string, durationSeconds int, disconnectReason string, endedAt time.Time) error {
	query := `
        UPDATE calls
        SET status = $2, duration_seconds = $3, disconnect_reason = $4, ended_at = $5
        WHERE provider_call_id = $1`
	_, err := r.DB.ExecContext(ctx, query, providerCallID, status, durationSeconds, disconnectReason, endedAt)
	return errors.Wrap(err, "mark call ended")
}

var _ CallRepositoryInterface = (*CallRepository)(nil)
