package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://koya:koya@db:5432/koya?sslmode=disable")
	t.Setenv("OUTBOUND_DEFAULTS_FILE", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 10, c.QueueBatchSize)
	assert.Equal(t, time.Minute, c.ProcessInterval)
	assert.Equal(t, 15*time.Minute, c.ReconcileInterval)
	assert.False(t, c.ConsentFailOpen)
	assert.Equal(t, "postgres://koya:koya@db:5432/koya?sslmode=disable", c.DSN())

	assert.Equal(t, 100, c.OutboundDefaults.DailyCallLimit)
	assert.Equal(t, "09:00", c.OutboundDefaults.HoursStart)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, c.OutboundDefaults.AllowedDays)
	assert.Equal(t, 3, c.OutboundDefaults.MaxAttempts)
	assert.Empty(t, c.OutboundDefaults.Settings("t1").Timezone, "business timezone applies by default")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_HOST", "h")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "n")
	t.Setenv("CONSENT_FAIL_OPEN", "true")
	t.Setenv("PROCESS_INTERVAL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@h:6543/n?sslmode=disable", c.DSN())
	assert.True(t, c.ConsentFailOpen)
	assert.Equal(t, 30*time.Second, c.ProcessInterval)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, c.CORSAllowedOrigins)
}

func TestLoadOutboundDefaults_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbound.yaml")
	body := "daily_call_limit: 40\nhours_start: \"08:30\"\nallowed_days: [1, 2, 3]\ntimezone: America/Chicago\nmax_attempts: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	d, err := LoadOutboundDefaults(path)
	require.NoError(t, err)

	assert.Equal(t, 40, d.DailyCallLimit)
	assert.Equal(t, "08:30", d.HoursStart)
	assert.Equal(t, "18:00", d.HoursEnd, "unset keys keep the built-in value")
	assert.Equal(t, []int{1, 2, 3}, d.AllowedDays)
	assert.Equal(t, "America/Chicago", d.Timezone)
	assert.Equal(t, 5, d.MaxAttempts)

	s := d.Settings("tenant-1")
	assert.Equal(t, "tenant-1", s.TenantID)
	assert.Equal(t, 40, s.DailyCallLimit)
	assert.Equal(t, "America/Chicago", s.Timezone)
	assert.True(t, s.Enabled)
}

func TestLoadOutboundDefaults_BadTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbound.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o600))

	_, err := LoadOutboundDefaults(path)
	assert.Error(t, err)
}

func TestLoadOutboundDefaults_MissingFile(t *testing.T) {
	_, err := LoadOutboundDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
