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

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	ListCampaigns(ctx context.Context, tenantID string, offset, limit int, purpose, status string) ([]*model.Campaign, int, error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error
	Create(ctx context.Context, c *model.Campaign) error

	// Aggregate stats
	ApplyStatsDelta(ctx context.Context, campaignID string, d model.CampaignStatsDelta) error
	CompleteIfRunning(ctx context.Context, campaignID string) (bool, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, tenant_id, name, purpose, message_template, status, scheduled_at,
        total_calls, completed_calls, failed_calls, no_answer_calls, booked_calls, transferred_calls,
        created_at, updated_at`

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Purpose, &c.MessageTemplate, &c.Status, &c.ScheduledAt,
		&c.TotalCalls, &c.CompletedCalls, &c.FailedCalls, &c.NoAnswerCalls, &c.BookedCalls, &c.TransferredCalls,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	query := `
        INSERT INTO campaigns (id, tenant_id, name, purpose, message_template, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query, c.ID, c.TenantID, c.Name, c.Purpose, c.MessageTemplate, c.Status, c.ScheduledAt, c.CreatedAt)
	return errors.Wrap(err, "insert campaign")
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, status, time.Now().UTC(), campaignID)
	return errors.Wrap(err, "update campaign status")
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, errors.Wrap(err, "get campaign")
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, tenantID string, offset, limit int, purpose, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	argPos := 2

	if purpose != "" {
		where += fmt.Sprintf(" AND purpose=$%d", argPos)
		args = append(args, purpose)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count campaigns")
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list campaigns")
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate campaigns")
	}

	return campaigns, total, nil
}

// ====================== Aggregate stats ======================

// ApplyStatsDelta folds one terminal outcome into the counters in a single
// statement so concurrent recorders never lose an increment.
func (r *CampaignRepository) ApplyStatsDelta(ctx context.Context, campaignID string, d model.CampaignStatsDelta) error {
	if d.IsZero() {
		return nil
	}
	query := `
        UPDATE campaigns
        SET total_calls = total_calls + $2,
            completed_calls = completed_calls + $3,
            failed_calls = failed_calls + $4,
            no_answer_calls = no_answer_calls + $5,
            booked_calls = booked_calls + $6,
            transferred_calls = transferred_calls + $7,
            updated_at = NOW()
        WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, campaignID, d.Total, d.Completed, d.Failed, d.NoAnswer, d.Booked, d.Transferred)
	return errors.Wrap(err, "apply campaign stats")
}

// CompleteIfRunning marks the campaign completed only from running, and only
// when no queue entry is left to work. Paused or cancelled campaigns stay put.
func (r *CampaignRepository) CompleteIfRunning(ctx context.Context, campaignID string) (bool, error) {
	query := `
        UPDATE campaigns
        SET status = 'completed', updated_at = NOW()
        WHERE id = $1
          AND status = 'running'
          AND NOT EXISTS (
              SELECT 1 FROM outbound_call_queue
              WHERE campaign_id = $1 AND status IN ('pending', 'scheduled', 'calling')
          )`
	res, err := r.DB.ExecContext(ctx, query, campaignID)
	if err != nil {
		return false, errors.Wrap(err, "complete campaign")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "complete campaign")
	}
	return n == 1, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
