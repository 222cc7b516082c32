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

// QueueEntryRepositoryInterface is the durable outbound call queue.
// Every state change is a conditional UPDATE so the processor and the
// webhook recorder can both write without coordinating.
type QueueEntryRepositoryInterface interface {
	Insert(ctx context.Context, e *model.QueueEntry) error
	InsertForCampaign(ctx context.Context, e *model.QueueEntry) (bool, error)
	FindByID(ctx context.Context, id string) (*model.QueueEntry, error)
	FindByProviderCallID(ctx context.Context, providerCallID string) (*model.QueueEntry, error)
	FindByCallID(ctx context.Context, callID string) (*model.QueueEntry, error)
	List(ctx context.Context, f model.QueueFilter) ([]*model.QueueEntry, int, error)

	ListDue(ctx context.Context, tenantID string, now time.Time, limit int) ([]*model.QueueEntry, error)
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	MarkInitiated(ctx context.Context, id, callID, providerCallID string, now time.Time) error
	MarkAttemptFailed(ctx context.Context, id string, status model.QueueStatus, lastError string, now time.Time) error
	RecordOutcome(ctx context.Context, id string, status model.QueueStatus, outcome, providerCallID string, now time.Time) (bool, error)

	Cancel(ctx context.Context, tenantID, id string, now time.Time) error
	Reschedule(ctx context.Context, tenantID, id string, at, now time.Time) error
	PromoteScheduled(ctx context.Context, tenantID string, now time.Time) (int64, error)
	RecoverStale(ctx context.Context, claimedBefore, now time.Time) ([]*model.QueueEntry, error)
	TenantsWithDueEntries(ctx context.Context, now time.Time) ([]string, error)

	CountByStatus(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error)
	CountNonTerminal(ctx context.Context, campaignID string) (int, error)
}

type QueueEntryRepository struct {
	DB *sql.DB
}

const queueEntryColumns = `id, tenant_id, campaign_id, appointment_id, phone_number, contact_name,
        dynamic_variables, metadata, scheduled_for, priority, status, attempt_count, max_attempts,
        last_attempt_at, last_error, call_id, provider_call_id, outcome, outcome_recorded_at,
        created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(row rowScanner) (*model.QueueEntry, error) {
	var e model.QueueEntry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.CampaignID, &e.AppointmentID, &e.PhoneNumber, &e.ContactName,
		&e.DynamicVariables, &e.Metadata, &e.ScheduledFor, &e.Priority, &e.Status,
		&e.AttemptCount, &e.MaxAttempts, &e.LastAttemptAt, &e.LastError,
		&e.CallID, &e.ProviderCallID, &e.Outcome, &e.OutcomeRecordedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanQueueEntries(rows *sql.Rows) ([]*model.QueueEntry, error) {
	defer rows.Close()
	entries := []*model.QueueEntry{}
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan queue entry")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate queue entries")
}

func prepareEntry(e *model.QueueEntry) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = model.QueueStatusPending
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = model.DefaultMaxAttempts
	}
	if e.ScheduledFor.IsZero() {
		e.ScheduledFor = now
	}
	if e.DynamicVariables == nil {
		e.DynamicVariables = model.DynamicVariables{}
	}
	if e.Metadata == nil {
		e.Metadata = model.Metadata{}
	}
	e.CreatedAt = now
	e.UpdatedAt = now
}

const insertQueueEntry = `
        INSERT INTO outbound_call_queue
        (id, tenant_id, campaign_id, appointment_id, phone_number, contact_name, dynamic_variables,
         metadata, scheduled_for, priority, status, attempt_count, max_attempts, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13, $14)`

func insertArgs(e *model.QueueEntry) []any {
	return []any{
		e.ID, e.TenantID, e.CampaignID, e.AppointmentID, e.PhoneNumber, e.ContactName,
		e.DynamicVariables, e.Metadata, e.ScheduledFor, e.Priority, e.Status, e.MaxAttempts,
		e.CreatedAt, e.UpdatedAt,
	}
}

// Insert stores a new entry. Zero-valued fields get queue defaults.
func (r *QueueEntryRepository) Insert(ctx context.Context, e *model.QueueEntry) error {
	prepareEntry(e)
	if _, err := r.DB.ExecContext(ctx, insertQueueEntry, insertArgs(e)...); err != nil {
		return errors.Wrap(err, "insert queue entry")
	}
	return nil
}

// InsertForCampaign is the idempotent campaign fan-out insert: a second
// insert for the same (campaign, phone) is skipped and reports false.
func (r *QueueEntryRepository) InsertForCampaign(ctx context.Context, e *model.QueueEntry) (bool, error) {
	if e.CampaignID == nil {
		return false, appErrors.NewValidation("campaign_id", "required")
	}
	prepareEntry(e)
	query := insertQueueEntry + `
        ON CONFLICT (campaign_id, phone_number) WHERE campaign_id IS NOT NULL DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query, insertArgs(e)...)
	if err != nil {
		return false, errors.Wrap(err, "insert campaign queue entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "insert campaign queue entry")
	}
	return n == 1, nil
}

func (r *QueueEntryRepository) FindByID(ctx context.Context, id string) (*model.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + ` FROM outbound_call_queue WHERE id = $1`
	e, err := scanQueueEntry(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewQueueEntryNotFound(id)
		}
		return nil, errors.Wrap(err, "find queue entry")
	}
	return e, nil
}

// FindByProviderCallID returns nil, nil when no entry matches.
func (r *QueueEntryRepository) FindByProviderCallID(ctx context.Context, providerCallID string) (*model.QueueEntry, error) {
	return r.findOne(ctx, "provider_call_id", providerCallID)
}

// FindByCallID returns nil, nil when no entry matches.
func (r *QueueEntryRepository) FindByCallID(ctx context.Context, callID string) (*model.QueueEntry, error) {
	return r.findOne(ctx, "call_id", callID)
}

func (r *QueueEntryRepository) findOne(ctx context.Context, column, value string) (*model.QueueEntry, error) {
	if value == "" {
		return nil, nil
	}
	query := `SELECT ` + queueEntryColumns + ` FROM outbound_call_queue WHERE ` + column + ` = $1 LIMIT 1`
	e, err := scanQueueEntry(r.DB.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find queue entry by %s", column)
	}
	return e, nil
}

func (r *QueueEntryRepository) List(ctx context.Context, f model.QueueFilter) ([]*model.QueueEntry, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{f.TenantID}
	argPos := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.CampaignID != "" {
		where += fmt.Sprintf(" AND campaign_id = $%d", argPos)
		args = append(args, f.CampaignID)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbound_call_queue`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count queue entries")
	}

	query := `SELECT ` + queueEntryColumns + ` FROM outbound_call_queue` + where +
		fmt.Sprintf(" ORDER BY scheduled_for DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list queue entries")
	}
	entries, err := scanQueueEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListDue selects pending entries whose time has come, highest priority first.
// Entries of campaigns that are not running are held back.
func (r *QueueEntryRepository) ListDue(ctx context.Context, tenantID string, now time.Time, limit int) ([]*model.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + `
        FROM outbound_call_queue
        WHERE tenant_id = $1
          AND status = 'pending'
          AND scheduled_for <= $2
          AND attempt_count < max_attempts
          AND (campaign_id IS NULL OR campaign_id IN (SELECT id FROM campaigns WHERE status = 'running'))
        ORDER BY priority DESC, scheduled_for ASC
        LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list due queue entries")
	}
	return scanQueueEntries(rows)
}

// Claim moves an entry from pending to calling. False means another run got it.
func (r *QueueEntryRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
        UPDATE outbound_call_queue
        SET status = 'calling', last_attempt_at = $2, updated_at = $2
        WHERE id = $1 AND status = 'pending' AND attempt_count < max_attempts`
	res, err := r.DB.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, errors.Wrap(err, "claim queue entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "claim queue entry")
	}
	return n == 1, nil
}

// MarkInitiated records a placed call. A final outcome that the webhook
// already wrote keeps its status.
func (r *QueueEntryRepository) MarkInitiated(ctx context.Context, id, callID, providerCallID string, now time.Time) error {
	query := `
        UPDATE outbound_call_queue
        SET status = CASE WHEN outcome_recorded_at IS NULL THEN 'completed' ELSE status END,
            call_id = $2,
            provider_call_id = $3,
            attempt_count = attempt_count + 1,
            last_attempt_at = $4,
            last_error = '',
            updated_at = $4
        WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, id, nullable(callID), nullable(providerCallID), now)
	return errors.Wrap(err, "mark queue entry initiated")
}

// MarkAttemptFailed writes the next state computed for a failed attempt.
func (r *QueueEntryRepository) MarkAttemptFailed(ctx context.Context, id string, status model.QueueStatus, lastError string, now time.Time) error {
	query := `
        UPDATE outbound_call_queue
        SET status = $2,
            attempt_count = attempt_count + 1,
            last_error = $3,
            last_attempt_at = $4,
            updated_at = $4
        WHERE id = $1 AND status = 'calling'`
	_, err := r.DB.ExecContext(ctx, query, id, status, lastError, now)
	return errors.Wrap(err, "mark queue entry failed")
}

// RecordOutcome applies a webhook outcome once, and only to an entry that is
// calling or completed. False means nothing changed: an outcome was already
// recorded or the entry reached a terminal state some other way.
func (r *QueueEntryRepository) RecordOutcome(ctx context.Context, id string, status model.QueueStatus, outcome, providerCallID string, now time.Time) (bool, error) {
	query := `
        UPDATE outbound_call_queue
        SET status = $2,
            outcome = $3,
            provider_call_id = COALESCE(provider_call_id, $4),
            outcome_recorded_at = $5,
            last_attempt_at = $5,
            updated_at = $5
        WHERE id = $1
          AND outcome_recorded_at IS NULL
          AND status IN ('calling', 'completed')`
	res, err := r.DB.ExecContext(ctx, query, id, status, outcome, nullable(providerCallID), now)
	if err != nil {
		return false, errors.Wrap(err, "record queue outcome")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "record queue outcome")
	}
	return n == 1, nil
}

// Cancel stops a pending or scheduled entry. In-flight entries get
// ErrEntryInFlight and terminal ones ErrInvalidState.
func (r *QueueEntryRepository) Cancel(ctx context.Context, tenantID, id string, now time.Time) error {
	query := `
        UPDATE outbound_call_queue
        SET status = 'cancelled', updated_at = $3
        WHERE id = $1 AND tenant_id = $2 AND status IN ('pending', 'scheduled')`
	res, err := r.DB.ExecContext(ctx, query, id, tenantID, now)
	if err != nil {
		return errors.Wrap(err, "cancel queue entry")
	}
	return r.explainNoop(ctx, res, tenantID, id)
}

// Reschedule moves a pending or scheduled entry to a new time.
func (r *QueueEntryRepository) Reschedule(ctx context.Context, tenantID, id string, at, now time.Time) error {
	status := model.QueueStatusPending
	if at.After(now) {
		status = model.QueueStatusScheduled
	}
	query := `
        UPDATE outbound_call_queue
        SET scheduled_for = $3, status = $4, updated_at = $5
        WHERE id = $1 AND tenant_id = $2 AND status IN ('pending', 'scheduled')`
	res, err := r.DB.ExecContext(ctx, query, id, tenantID, at, status, now)
	if err != nil {
		return errors.Wrap(err, "reschedule queue entry")
	}
	return r.explainNoop(ctx, res, tenantID, id)
}

func (r *QueueEntryRepository) explainNoop(ctx context.Context, res sql.Result, tenantID, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 1 {
		return nil
	}
	e, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if e.TenantID != tenantID {
		return appErrors.NewQueueEntryNotFound(id)
	}
	if e.Status == model.QueueStatusCalling {
		return appErrors.ErrEntryInFlight
	}
	return errors.Wrapf(appErrors.ErrInvalidState, "entry is %s", e.Status)
}

// PromoteScheduled turns due scheduled entries into pending ones.
func (r *QueueEntryRepository) PromoteScheduled(ctx context.Context, tenantID string, now time.Time) (int64, error) {
	query := `
        UPDATE outbound_call_queue
        SET status = 'pending', updated_at = $2
        WHERE tenant_id = $1 AND status = 'scheduled' AND scheduled_for <= $2`
	res, err := r.DB.ExecContext(ctx, query, tenantID, now)
	if err != nil {
		return 0, errors.Wrap(err, "promote scheduled entries")
	}
	return res.RowsAffected()
}

// RecoverStale releases entries left in calling by a crashed run. The
// abandoned attempt counts, so an entry on its last attempt becomes failed.
func (r *QueueEntryRepository) RecoverStale(ctx context.Context, claimedBefore, now time.Time) ([]*model.QueueEntry, error) {
	query := `
        UPDATE outbound_call_queue
        SET status = CASE WHEN attempt_count + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
            attempt_count = attempt_count + 1,
            last_error = 'no result after claim',
            updated_at = $2
        WHERE status = 'calling' AND last_attempt_at < $1
        RETURNING ` + queueEntryColumns
	rows, err := r.DB.QueryContext(ctx, query, claimedBefore, now)
	if err != nil {
		return nil, errors.Wrap(err, "recover stale entries")
	}
	return scanQueueEntries(rows)
}

func (r *QueueEntryRepository) TenantsWithDueEntries(ctx context.Context, now time.Time) ([]string, error) {
	query := `
        SELECT DISTINCT tenant_id
        FROM outbound_call_queue
        WHERE scheduled_for <= $1
          AND (status = 'scheduled' OR (status = 'pending' AND attempt_count < max_attempts))`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, errors.Wrap(err, "list tenants with due entries")
	}
	defer rows.Close()

	tenants := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan tenant id")
		}
		tenants = append(tenants, id)
	}
	return tenants, errors.Wrap(rows.Err(), "iterate tenants")
}

func (r *QueueEntryRepository) CountByStatus(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM outbound_call_queue WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, "count queue entries by status")
	}
	defer rows.Close()

	stats := map[model.QueueStatus]int{}
	for rows.Next() {
		var status model.QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		stats[status] = count
	}
	return stats, errors.Wrap(rows.Err(), "iterate status counts")
}

func (r *QueueEntryRepository) CountNonTerminal(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM outbound_call_queue
        WHERE campaign_id = $1 AND status IN ('pending', 'scheduled', 'calling')`, campaignID).Scan(&n)
	return n, errors.Wrap(err, "count non-terminal entries")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ QueueEntryRepositoryInterface = (*QueueEntryRepository)(nil)
