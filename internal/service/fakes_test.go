package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/calendar"
	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
	"github.com/unclebandit/koya-caller/internal/voice"
)

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// queue entries

type fakeQueueRepo struct {
	mu      sync.Mutex
	entries map[string]*model.QueueEntry
	seq     int
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{entries: map[string]*model.QueueEntry{}}
}

func (r *fakeQueueRepo) get(id string) model.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

func (r *fakeQueueRepo) all() []model.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.QueueEntry{}
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

func (r *fakeQueueRepo) put(e *model.QueueEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		r.seq++
		e.ID = fmt.Sprintf("q-%d", r.seq)
	}
	if e.Status == "" {
		e.Status = model.QueueStatusPending
	}
	if e.MaxAttempts == 0 {
		e.MaxAttempts = model.DefaultMaxAttempts
	}
	if e.DynamicVariables == nil {
		e.DynamicVariables = model.DynamicVariables{}
	}
	cp := *e
	r.entries[e.ID] = &cp
}

func (r *fakeQueueRepo) Insert(ctx context.Context, e *model.QueueEntry) error {
	r.put(e)
	return nil
}

func (r *fakeQueueRepo) InsertForCampaign(ctx context.Context, e *model.QueueEntry) (bool, error) {
	r.mu.Lock()
	for _, existing := range r.entries {
		if existing.CampaignID != nil && e.CampaignID != nil && *existing.CampaignID == *e.CampaignID && existing.PhoneNumber == e.PhoneNumber {
			r.mu.Unlock()
			return false, nil
		}
	}
	r.mu.Unlock()
	r.put(e)
	return true, nil
}

func (r *fakeQueueRepo) FindByID(ctx context.Context, id string) (*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, appErrors.NewQueueEntryNotFound(id)
	}
	cp := *e
	return &cp, nil
}

func (r *fakeQueueRepo) findBy(match func(e *model.QueueEntry) bool) *model.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if match(e) {
			cp := *e
			return &cp
		}
	}
	return nil
}

func (r *fakeQueueRepo) FindByProviderCallID(ctx context.Context, id string) (*model.QueueEntry, error) {
	return r.findBy(func(e *model.QueueEntry) bool { return e.ProviderCallID != nil && *e.ProviderCallID == id }), nil
}

func (r *fakeQueueRepo) FindByCallID(ctx context.Context, id string) (*model.QueueEntry, error) {
	return r.findBy(func(e *model.QueueEntry) bool { return e.CallID != nil && *e.CallID == id }), nil
}

func (r *fakeQueueRepo) List(ctx context.Context, f model.QueueFilter) ([]*model.QueueEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []*model.QueueEntry{}
	for _, e := range r.entries {
		if e.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.CampaignID != "" && (e.CampaignID == nil || *e.CampaignID != f.CampaignID) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ScheduledFor.After(matched[j].ScheduledFor) })
	total := len(matched)
	if f.Offset >= total {
		return []*model.QueueEntry{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r *fakeQueueRepo) ListDue(ctx context.Context, tenantID string, now time.Time, limit int) ([]*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := []*model.QueueEntry{}
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.Status == model.QueueStatusPending && !e.ScheduledFor.After(now) && e.AttemptCount < e.MaxAttempts {
			cp := *e
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeQueueRepo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil || e.Status != model.QueueStatusPending {
		return false, nil
	}
	e.Status = model.QueueStatusCalling
	e.LastAttemptAt = &now
	return true, nil
}

func (r *fakeQueueRepo) MarkInitiated(ctx context.Context, id, callID, providerCallID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	e.AttemptCount++
	e.CallID = &callID
	if e.ProviderCallID == nil {
		e.ProviderCallID = &providerCallID
	}
	if e.OutcomeRecordedAt == nil {
		e.Status = model.QueueStatusCompleted
	}
	e.LastAttemptAt = &now
	return nil
}

func (r *fakeQueueRepo) MarkAttemptFailed(ctx context.Context, id string, status model.QueueStatus, lastError string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e.Status != model.QueueStatusCalling {
		return nil
	}
	e.AttemptCount++
	e.Status = status
	e.LastError = lastError
	e.LastAttemptAt = &now
	return nil
}

func (r *fakeQueueRepo) RecordOutcome(ctx context.Context, id string, status model.QueueStatus, outcome, providerCallID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil || e.OutcomeRecordedAt != nil {
		return false, nil
	}
	if e.Status != model.QueueStatusCalling && e.Status != model.QueueStatusCompleted {
		return false, nil
	}
	e.Status = status
	e.Outcome = outcome
	if e.ProviderCallID == nil && providerCallID != "" {
		e.ProviderCallID = &providerCallID
	}
	e.OutcomeRecordedAt = &now
	return true, nil
}

func (r *fakeQueueRepo) transitionIdle(tenantID, id string, apply func(e *model.QueueEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil || e.TenantID != tenantID {
		return appErrors.NewQueueEntryNotFound(id)
	}
	switch e.Status {
	case model.QueueStatusPending, model.QueueStatusScheduled:
		apply(e)
		return nil
	case model.QueueStatusCalling:
		return appErrors.ErrEntryInFlight
	}
	return errors.Wrapf(appErrors.ErrInvalidState, "entry is %s", e.Status)
}

func (r *fakeQueueRepo) Cancel(ctx context.Context, tenantID, id string, now time.Time) error {
	return r.transitionIdle(tenantID, id, func(e *model.QueueEntry) { e.Status = model.QueueStatusCancelled })
}

func (r *fakeQueueRepo) Reschedule(ctx context.Context, tenantID, id string, at, now time.Time) error {
	return r.transitionIdle(tenantID, id, func(e *model.QueueEntry) {
		e.ScheduledFor = at
		e.Status = model.QueueStatusPending
		if at.After(now) {
			e.Status = model.QueueStatusScheduled
		}
	})
}

func (r *fakeQueueRepo) PromoteScheduled(ctx context.Context, tenantID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.Status == model.QueueStatusScheduled && !e.ScheduledFor.After(now) {
			e.Status = model.QueueStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeQueueRepo) RecoverStale(ctx context.Context, claimedBefore, now time.Time) ([]*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.QueueEntry{}
	for _, e := range r.entries {
		if e.Status != model.QueueStatusCalling || e.LastAttemptAt == nil || !e.LastAttemptAt.Before(claimedBefore) {
			continue
		}
		e.AttemptCount++
		e.Status = model.QueueStatusPending
		if e.AttemptCount >= e.MaxAttempts {
			e.Status = model.QueueStatusFailed
		}
		e.LastError = "call initiation did not complete"
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeQueueRepo) TenantsWithDueEntries(ctx context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, e := range r.entries {
		due := !e.ScheduledFor.After(now) &&
			(e.Status == model.QueueStatusScheduled || (e.Status == model.QueueStatusPending && e.AttemptCount < e.MaxAttempts))
		if due && !seen[e.TenantID] {
			seen[e.TenantID] = true
			out = append(out, e.TenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeQueueRepo) CountByStatus(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.QueueStatus]int{}
	for _, e := range r.entries {
		if e.CampaignID != nil && *e.CampaignID == campaignID {
			out[e.Status]++
		}
	}
	return out, nil
}

func (r *fakeQueueRepo) CountNonTerminal(ctx context.Context, campaignID string) (int, error) {
	counts, _ := r.CountByStatus(ctx, campaignID)
	n := 0
	for st, c := range counts {
		if !st.Terminal() {
			n += c
		}
	}
	return n, nil
}

var _ repository.QueueEntryRepositoryInterface = (*fakeQueueRepo)(nil)

// ---------------------------------------------------------------------------
// settings

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*model.OutboundSettings
	resets   int
	err      error
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: map[string]*model.OutboundSettings{}}
}

func (r *fakeSettingsRepo) set(s model.OutboundSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.TenantID] = &s
}

func (r *fakeSettingsRepo) current(tenantID string) model.OutboundSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.settings[tenantID]
}

func (r *fakeSettingsRepo) Get(ctx context.Context, tenantID string) (*model.OutboundSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.settings[tenantID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSettingsRepo) GetOrCreate(ctx context.Context, defaults model.OutboundSettings) (*model.OutboundSettings, error) {
	s, err := r.Get(ctx, defaults.TenantID)
	if err != nil || s != nil {
		return s, err
	}
	r.set(defaults)
	return &defaults, nil
}

func (r *fakeSettingsRepo) Update(ctx context.Context, s *model.OutboundSettings) error {
	r.set(*s)
	return nil
}

func (r *fakeSettingsRepo) ResetDailyCounter(ctx context.Context, tenantID, today string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.settings[tenantID]
	if s.LastResetDate == today {
		return false, nil
	}
	s.CallsMadeToday = 0
	s.LastResetDate = today
	r.resets++
	return true, nil
}

func (r *fakeSettingsRepo) IncrementCallsMade(ctx context.Context, tenantID, today string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.settings[tenantID]
	if s.LastResetDate == today {
		s.CallsMadeToday++
	} else {
		s.CallsMadeToday = 1
		s.LastResetDate = today
	}
	return nil
}

// ---------------------------------------------------------------------------
// compliance

type fakeDNCRepo struct {
	entries []model.DNCEntry
	err     error
}

func (r *fakeDNCRepo) IsBlocked(ctx context.Context, tenantID, phone string, now time.Time) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.PhoneNumber == phone && e.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDNCRepo) Add(ctx context.Context, e *model.DNCEntry) error {
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeDNCRepo) Remove(ctx context.Context, tenantID, phone string) error {
	for i, e := range r.entries {
		if e.TenantID == tenantID && e.PhoneNumber == phone {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return appErrors.NewDNCEntryNotFound(phone)
}

func (r *fakeDNCRepo) List(ctx context.Context, tenantID, search string, offset, limit int) ([]*model.DNCEntry, int, error) {
	out := []*model.DNCEntry{}
	for i := range r.entries {
		out = append(out, &r.entries[i])
	}
	return out, len(out), nil
}

type fakeConsentRepo struct {
	consents map[string]*model.Consent
	err      error
}

func (r *fakeConsentRepo) Get(ctx context.Context, tenantID, phone string) (*model.Consent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.consents[tenantID+"|"+phone], nil
}

func (r *fakeConsentRepo) Grant(ctx context.Context, tenantID, phone string, at time.Time) error {
	r.consents[tenantID+"|"+phone] = &model.Consent{TenantID: tenantID, PhoneNumber: phone, GrantedAt: &at}
	return nil
}

func (r *fakeConsentRepo) Revoke(ctx context.Context, tenantID, phone string, at time.Time) error {
	r.consents[tenantID+"|"+phone] = &model.Consent{TenantID: tenantID, PhoneNumber: phone, RevokedAt: &at}
	return nil
}

// ---------------------------------------------------------------------------
// tenants, calls and the voice provider

type fakeTenantRepo struct {
	profiles map[string]*model.TenantProfile
	err      error
}

func (r *fakeTenantRepo) GetProfile(ctx context.Context, tenantID string) (*model.TenantProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[tenantID]
	if !ok {
		return nil, appErrors.NewTenantNotFound(tenantID)
	}
	cp := *p
	return &cp, nil
}

type fakeCallRepo struct {
	mu      sync.Mutex
	records []model.CallRecord
	ended   map[string]string
	err     error
}

func (r *fakeCallRepo) Create(ctx context.Context, c *model.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, *c)
	return nil
}

func (r *fakeCallRepo) MarkEnded(ctx context.Context, providerCallID, status string, durationSeconds int, disconnectReason string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended == nil {
		r.ended = map[string]string{}
	}
	r.ended[providerCallID] = status
	return nil
}

type fakeVoice struct {
	mu        sync.Mutex
	requests  []voice.CreateCallRequest
	err       error
	lineErr   error
	lineAgent string
}

func (v *fakeVoice) CreatePhoneCall(ctx context.Context, req voice.CreateCallRequest) (*voice.CreateCallResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	v.requests = append(v.requests, req)
	return &voice.CreateCallResponse{CallID: fmt.Sprintf("prov-%d", len(v.requests))}, nil
}

func (v *fakeVoice) GetPhoneNumber(ctx context.Context, number string) (*voice.PhoneNumber, error) {
	if v.lineErr != nil {
		return nil, v.lineErr
	}
	return &voice.PhoneNumber{Number: number, OutboundAgentID: v.lineAgent}, nil
}

func (v *fakeVoice) calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.requests)
}

// ---------------------------------------------------------------------------
// campaigns and contacts

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
	queue     *fakeQueueRepo
	deltas    []model.CampaignStatsDelta
}

func newFakeCampaignRepo(queue *fakeQueueRepo, campaigns ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[string]*model.Campaign{}, queue: queue}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) ListCampaigns(ctx context.Context, tenantID string, offset, limit int, purpose, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.TenantID == tenantID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[id].Status = status
	return nil
}

func (r *fakeCampaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = fmt.Sprintf("camp-%d", len(r.campaigns)+1)
	}
	c.CreatedAt = time.Now()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) ApplyStatsDelta(ctx context.Context, id string, d model.CampaignStatsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.campaigns[id]
	c.TotalCalls += d.Total
	c.CompletedCalls += d.Completed
	c.FailedCalls += d.Failed
	c.NoAnswerCalls += d.NoAnswer
	c.BookedCalls += d.Booked
	c.TransferredCalls += d.Transferred
	r.deltas = append(r.deltas, d)
	return nil
}

func (r *fakeCampaignRepo) CompleteIfRunning(ctx context.Context, id string) (bool, error) {
	n, _ := r.queue.CountNonTerminal(ctx, id)
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.campaigns[id]
	if c.Status != model.CampaignStatusRunning || n > 0 {
		return false, nil
	}
	c.Status = model.CampaignStatusCompleted
	return true, nil
}

func (r *fakeCampaignRepo) campaign(id string) model.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.campaigns[id]
}

type fakeContactRepo struct {
	contacts []model.Contact
}

func (r *fakeContactRepo) GetByID(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	for _, c := range r.contacts {
		if c.TenantID == tenantID && c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, appErrors.NewContactNotFound(id)
}

func (r *fakeContactRepo) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]model.Contact, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []model.Contact{}
	for _, c := range r.contacts {
		if c.TenantID == tenantID && want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// appointments and calendars

type fakeAppointmentRepo struct {
	mu    sync.Mutex
	appts map[string]*model.Appointment
}

func newFakeAppointmentRepo(appts ...*model.Appointment) *fakeAppointmentRepo {
	r := &fakeAppointmentRepo{appts: map[string]*model.Appointment{}}
	for _, a := range appts {
		r.appts[a.ID] = a
	}
	return r
}

func (r *fakeAppointmentRepo) appt(id string) model.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.appts[id]
}

func (r *fakeAppointmentRepo) ListForReconcile(ctx context.Context, tenantID string, from, to time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.appts {
		if a.TenantID == tenantID && a.Status.Syncable() && a.ExternalEventID != "" &&
			!a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAppointmentRepo) ListForReminder(ctx context.Context, kind model.ReminderKind, from, to time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.appts {
		switch a.Status {
		case model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, model.AppointmentStatusRescheduled:
		default:
			continue
		}
		if a.ReminderSent(kind) || a.ScheduledAt.Before(from) || a.ScheduledAt.After(to) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAppointmentRepo) Cancel(ctx context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.appts[id]
	a.Status = model.AppointmentStatusCancelled
	a.CancellationReason = reason
	return nil
}

func (r *fakeAppointmentRepo) Reschedule(ctx context.Context, id string, at time.Time, durationMinutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.appts[id]
	a.Status = model.AppointmentStatusRescheduled
	a.ScheduledAt = at
	a.DurationMinutes = durationMinutes
	return nil
}

func (r *fakeAppointmentRepo) MarkReminderSent(ctx context.Context, id string, kind model.ReminderKind, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.appts[id]
	if a.ReminderSent(kind) {
		return false, nil
	}
	if kind == model.Reminder24hr {
		a.Reminder24hrSentAt = &at
	} else {
		a.Reminder1hrSentAt = &at
	}
	return true, nil
}

type fakeConnRepo struct {
	conns []*model.CalendarConnection
}

func (r *fakeConnRepo) ListActiveExternal(ctx context.Context) ([]*model.CalendarConnection, error) {
	return r.conns, nil
}

func (r *fakeConnRepo) UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiry time.Time) error {
	return nil
}

// fakeCalendar serves events by id; a missing id is a deleted event.
type fakeCalendar struct {
	events map[string]*calendar.Event
	errs   map[string]error
}

func (c *fakeCalendar) ClientFor(ctx context.Context, conn *model.CalendarConnection) (calendar.Client, error) {
	return c, nil
}

func (c *fakeCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	if err := c.errs[eventID]; err != nil {
		return nil, err
	}
	return c.events[eventID], nil
}
