package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

const ReminderPriority = 10

type reminderWindow struct {
	kind     model.ReminderKind
	from, to time.Duration
}

var reminderWindows = []reminderWindow{
	{kind: model.Reminder24hr, from: 23 * time.Hour, to: 25 * time.Hour},
	{kind: model.Reminder1hr, from: 55 * time.Minute, to: 65 * time.Minute},
}

type ReminderResult struct {
	Enqueued map[model.ReminderKind]int `json:"enqueued"`
	Skipped  int                        `json:"skipped"`
	Errors   []string                   `json:"errors"`
}

// ReminderScheduler enqueues reminder calls for upcoming appointments. It
// only enqueues; compliance and hours are checked when the entry is dialed.
type ReminderScheduler struct {
	AppointmentRepo repository.AppointmentRepositoryInterface
	SettingsRepo    repository.SettingsRepositoryInterface
	QueueRepo       repository.QueueEntryRepositoryInterface
	Queue           *QueueService
	Log             *zap.Logger
	Now             func() time.Time
}

func (s *ReminderScheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ReminderScheduler) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *ReminderScheduler) Run(ctx context.Context) (*ReminderResult, error) {
	now := s.now()
	result := &ReminderResult{Enqueued: map[model.ReminderKind]int{}, Errors: []string{}}
	settingsCache := map[string]*model.OutboundSettings{}

	for _, w := range reminderWindows {
		appts, err := s.AppointmentRepo.ListForReminder(ctx, w.kind, now.Add(w.from), now.Add(w.to))
		if err != nil {
			return result, err
		}

		for _, appt := range appts {
			settings, ok := settingsCache[appt.TenantID]
			if !ok {
				settings, err = s.SettingsRepo.Get(ctx, appt.TenantID)
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("tenant %s: %v", appt.TenantID, err))
					continue
				}
				if settings == nil {
					def := model.DefaultOutboundSettings(appt.TenantID)
					settings = &def
				}
				settingsCache[appt.TenantID] = settings
			}

			if !settings.Enabled || !settings.ReminderCalls.Wants(w.kind) || appt.CustomerPhone == "" || appt.ReminderSent(w.kind) {
				result.Skipped++
				continue
			}

			queued, err := s.enqueue(ctx, appt, w.kind, settings, now)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("appointment %s: %v", appt.ID, err))
				continue
			}
			if !queued {
				result.Skipped++
				continue
			}
			result.Enqueued[w.kind]++
		}
	}

	s.log().Info("reminders scheduled",
		zap.Int("enqueued_24hr", result.Enqueued[model.Reminder24hr]),
		zap.Int("enqueued_1hr", result.Enqueued[model.Reminder1hr]),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// enqueue adds the reminder entry and then stamps the write-once marker.
// Losing the stamp to a concurrent run cancels the new entry.
func (s *ReminderScheduler) enqueue(ctx context.Context, appt *model.Appointment, kind model.ReminderKind, settings *model.OutboundSettings, now time.Time) (bool, error) {
	local := appt.ScheduledAt.In(ResolveLocation(settings))
	vars := model.DynamicVariables{
		model.VarCustomerName:    appt.CustomerName,
		model.VarAppointmentTime: local.Format("Monday, January 2 at 3:04 PM"),
		model.VarReminderType:    string(kind),
	}
	if appt.ServiceName != "" {
		vars["service_name"] = appt.ServiceName
	}

	entry, err := s.Queue.Enqueue(ctx, appt.TenantID, EnqueueRequest{
		PhoneNumber:   appt.CustomerPhone,
		ContactName:   appt.CustomerName,
		AppointmentID: &appt.ID,
		Purpose:       "reminder",
		Variables:     vars,
		Metadata:      model.Metadata{"reminder_type": string(kind)},
		Priority:      ReminderPriority,
	})
	if err != nil {
		return false, err
	}

	stamped, err := s.AppointmentRepo.MarkReminderSent(ctx, appt.ID, kind, now)
	if err != nil || !stamped {
		if cerr := s.QueueRepo.Cancel(ctx, appt.TenantID, entry.ID, now); cerr != nil {
			s.log().Warn("cancel duplicate reminder entry", zap.String("queue_entry_id", entry.ID), zap.Error(cerr))
		}
		return false, err
	}
	return true, nil
}
