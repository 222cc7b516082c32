package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/service"
)

func nyTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestWithinWindow(t *testing.T) {
	s := model.DefaultOutboundSettings("t1")
	s.Timezone = "America/New_York"

	tests := []struct {
		name string
		at   string
		want bool
	}{
		{"monday before open", "2026-03-02 08:59", false},
		{"monday at open", "2026-03-02 09:00", true},
		{"monday at close", "2026-03-02 18:00", true},
		{"monday after close", "2026-03-02 18:01", false},
		{"saturday at open", "2026-03-07 09:00", false},
		{"sunday midday", "2026-03-08 12:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.WithinWindow(&s, nyTime(t, tt.at)))
		})
	}
}

func TestWithinWindowUsesTenantZone(t *testing.T) {
	s := model.DefaultOutboundSettings("t1")
	s.Timezone = "America/Los_Angeles"

	// 09:30 in New York is 06:30 in Los Angeles
	assert.False(t, service.WithinWindow(&s, nyTime(t, "2026-03-02 09:30")))
	assert.True(t, service.WithinWindow(&s, nyTime(t, "2026-03-02 12:30")))
}

func TestResolveLocation(t *testing.T) {
	s := model.OutboundSettings{BusinessTimezone: "Europe/London"}
	assert.Equal(t, "Europe/London", service.ResolveLocation(&s).String())

	s.Timezone = "Not/AZone"
	assert.Equal(t, "Europe/London", service.ResolveLocation(&s).String())

	s = model.OutboundSettings{}
	assert.Equal(t, model.DefaultTimezone, service.ResolveLocation(&s).String())
}

func TestCheckDailyLimitResetsOnNewDay(t *testing.T) {
	repo := newFakeSettingsRepo()
	s := model.DefaultOutboundSettings("t1")
	s.CallsMadeToday = 100
	s.LastResetDate = "2026-03-01"
	repo.set(s)

	w := &service.CallingWindow{SettingsRepo: repo}
	limit, err := w.CheckDailyLimit(context.Background(), "t1", nyTime(t, "2026-03-02 10:00"))
	require.NoError(t, err)
	assert.Equal(t, service.DailyLimit{Allowed: true, Used: 0, Limit: 100}, limit)
	assert.Equal(t, "2026-03-02", repo.current("t1").LastResetDate)
	assert.Equal(t, 0, repo.current("t1").CallsMadeToday)
}

func TestCheckDailyLimitReached(t *testing.T) {
	repo := newFakeSettingsRepo()
	s := model.DefaultOutboundSettings("t1")
	s.DailyCallLimit = 2
	s.CallsMadeToday = 2
	s.LastResetDate = "2026-03-02"
	repo.set(s)

	w := &service.CallingWindow{SettingsRepo: repo}
	limit, err := w.CheckDailyLimit(context.Background(), "t1", nyTime(t, "2026-03-02 10:00"))
	require.NoError(t, err)
	assert.False(t, limit.Allowed)
	assert.Equal(t, 2, limit.Used)
	assert.Equal(t, 0, repo.resets)
}

func TestCallingWindowCreatesDefaults(t *testing.T) {
	repo := newFakeSettingsRepo()
	w := &service.CallingWindow{SettingsRepo: repo}
	ctx := context.Background()

	open, err := w.IsWithinCallingWindow(ctx, "new-tenant", nyTime(t, "2026-03-02 10:00"))
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, w.RecordCall(ctx, "new-tenant", nyTime(t, "2026-03-02 10:00")))
	assert.Equal(t, 1, repo.current("new-tenant").CallsMadeToday)
}

func TestValidateSettings(t *testing.T) {
	valid := model.DefaultOutboundSettings("t1")
	assert.NoError(t, service.ValidateSettings(&valid))

	tests := []struct {
		name   string
		mutate func(s *model.OutboundSettings)
	}{
		{"negative limit", func(s *model.OutboundSettings) { s.DailyCallLimit = -1 }},
		{"bad start", func(s *model.OutboundSettings) { s.HoursStart = "9am" }},
		{"end before start", func(s *model.OutboundSettings) { s.HoursStart, s.HoursEnd = "17:00", "09:00" }},
		{"bad weekday", func(s *model.OutboundSettings) { s.AllowedDays = []int{1, 7} }},
		{"bad timezone", func(s *model.OutboundSettings) { s.Timezone = "Mars/Olympus" }},
		{"bad reminder setting", func(s *model.OutboundSettings) { s.ReminderCalls = "weekly" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultOutboundSettings("t1")
			tt.mutate(&s)
			assert.Error(t, service.ValidateSettings(&s))
		})
	}
}
