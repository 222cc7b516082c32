package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var queueColumns = []string{
	"id", "tenant_id", "campaign_id", "appointment_id", "phone_number", "contact_name",
	"dynamic_variables", "metadata", "scheduled_for", "priority", "status", "attempt_count", "max_attempts",
	"last_attempt_at", "last_error", "call_id", "provider_call_id", "outcome", "outcome_recorded_at",
	"created_at", "updated_at",
}

func queueRow(id string, status model.QueueStatus, priority int, at time.Time) []driver.Value {
	return []driver.Value{
		id, "tenant-1", nil, nil, "+14155551234", "Alice",
		[]byte(`{"purpose":"reminder","custom_message":"see you soon"}`), []byte(`{}`),
		at, priority, string(status), 0, 3,
		nil, "", nil, nil, "", nil,
		at, at,
	}
}

func TestQueueEntryRepository_ListDue(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Date(2024, 2, 19, 15, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(queueColumns).
		AddRow(queueRow("q-high", model.QueueStatusPending, 10, now.Add(-time.Minute))...).
		AddRow(queueRow("q-low", model.QueueStatusPending, 0, now.Add(-time.Hour))...)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY priority DESC, scheduled_for ASC")).
		WithArgs("tenant-1", now, 10).
		WillReturnRows(rows)

	entries, err := repo.ListDue(context.Background(), "tenant-1", now, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q-high", entries[0].ID)
	assert.Equal(t, "reminder", entries[0].DynamicVariables.String(model.VarPurpose))
	assert.Equal(t, "see you soon", entries[0].DynamicVariables.String(model.VarCustomMessage))
	assert.Nil(t, entries[0].CampaignID)
	assert.Nil(t, entries[0].ProviderCallID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_Claim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"won the claim", 1, true},
		{"already claimed", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			repo := &QueueEntryRepository{DB: db}
			now := time.Now().UTC()

			mock.ExpectExec(regexp.QuoteMeta("SET status = 'calling'")).
				WithArgs("q-1", now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Claim(context.Background(), "q-1", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueueEntryRepository_MarkInitiatedKeepsRecordedOutcome(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("CASE WHEN outcome_recorded_at IS NULL THEN 'completed' ELSE status END")).
		WithArgs("q-1", "call-1", "prov-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkInitiated(context.Background(), "q-1", "call-1", "prov-1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_RecordOutcomeIsConditional(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("AND status IN ('calling', 'completed')")).
		WithArgs("q-1", "no_answer", "voicemail", "prov-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("AND status IN ('calling', 'completed')")).
		WithArgs("q-1", "no_answer", "voicemail", "prov-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.RecordOutcome(context.Background(), "q-1", model.QueueStatusNoAnswer, "voicemail", "prov-1", now)
	require.NoError(t, err)
	second, err := repo.RecordOutcome(context.Background(), "q-1", model.QueueStatusNoAnswer, "voicemail", "prov-1", now)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_CancelInFlight(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).
		WithArgs("q-1", "tenant-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbound_call_queue WHERE id = $1")).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows(queueColumns).AddRow(queueRow("q-1", model.QueueStatusCalling, 0, now)...))

	err := repo.Cancel(context.Background(), "tenant-1", "q-1", now)
	assert.ErrorIs(t, err, appErrors.ErrEntryInFlight)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_CancelTerminal(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbound_call_queue WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(queueColumns).AddRow(queueRow("q-1", model.QueueStatusCompleted, 0, now)...))

	err := repo.Cancel(context.Background(), "tenant-1", "q-1", now)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_CancelNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbound_call_queue WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)

	err := repo.Cancel(context.Background(), "tenant-1", "missing", time.Now())
	assert.True(t, appErrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_RescheduleFutureIsScheduled(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Now().UTC()
	at := now.Add(2 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("SET scheduled_for = $3, status = $4")).
		WithArgs("q-1", "tenant-1", at, "scheduled", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reschedule(context.Background(), "tenant-1", "q-1", at, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_InsertForCampaignSkipsDuplicates(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	campaignID := "camp-1"

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (campaign_id, phone_number)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := &model.QueueEntry{TenantID: "tenant-1", CampaignID: &campaignID, PhoneNumber: "+14155551234"}
	created, err := repo.InsertForCampaign(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, model.DefaultMaxAttempts, e.MaxAttempts)
	assert.Equal(t, model.QueueStatusPending, e.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_RecoverStale(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}
	now := time.Now().UTC()
	cutoff := now.Add(-10 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'calling' AND last_attempt_at < $1")).
		WithArgs(cutoff, now).
		WillReturnRows(sqlmock.NewRows(queueColumns).
			AddRow(queueRow("q-1", model.QueueStatusPending, 0, now)...).
			AddRow(queueRow("q-2", model.QueueStatusFailed, 0, now)...))

	recovered, err := repo.RecoverStale(context.Background(), cutoff, now)
	require.NoError(t, err)
	require.Len(t, recovered, 2)
	assert.Equal(t, model.QueueStatusFailed, recovered[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_CountByStatus(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("completed", 4).
			AddRow("pending", 2))

	stats, err := repo.CountByStatus(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats[model.QueueStatusCompleted])
	assert.Equal(t, 2, stats[model.QueueStatusPending])
	assert.Equal(t, 0, stats[model.QueueStatusFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEntryRepository_FindByProviderCallIDMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &QueueEntryRepository{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE provider_call_id = $1")).
		WithArgs("prov-x").
		WillReturnError(sql.ErrNoRows)

	e, err := repo.FindByProviderCallID(context.Background(), "prov-x")
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = repo.FindByCallID(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}
