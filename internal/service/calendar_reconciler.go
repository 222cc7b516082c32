package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/calendar"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/repository"
)

const (
	ReasonEventDeleted   = "calendar event was deleted"
	ReasonEventCancelled = "calendar event was cancelled"

	rescheduleTolerance = 60 * time.Second
	defaultLookahead    = 30 * 24 * time.Hour
	defaultLookback     = 24 * time.Hour
)

type ReconcileResult struct {
	TenantID    string   `json:"tenant_id"`
	Cancelled   []string `json:"cancelled"`
	Rescheduled []string `json:"rescheduled"`
	Unchanged   int      `json:"unchanged"`
	Excluded    int      `json:"excluded"`
	Errors      []string `json:"errors"`
}

// CalendarReconciler brings appointments in line with the tenant's
// external calendar.
type CalendarReconciler struct {
	ConnRepo        repository.CalendarConnectionRepositoryInterface
	AppointmentRepo repository.AppointmentRepositoryInterface
	Calendars       calendar.Provider

	Lookahead time.Duration
	Lookback  time.Duration
	Log       *zap.Logger
	Now       func() time.Time
}

func (r *CalendarReconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *CalendarReconciler) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// ReconcileTenant checks every syncable appointment in the window against
// its calendar event. Per-appointment failures land in Errors.
func (r *CalendarReconciler) ReconcileTenant(ctx context.Context, conn *model.CalendarConnection) (*ReconcileResult, error) {
	result := &ReconcileResult{TenantID: conn.TenantID, Cancelled: []string{}, Rescheduled: []string{}, Errors: []string{}}
	if conn.Provider == model.CalendarProviderBuiltin {
		return result, nil
	}

	client, err := r.Calendars.ClientFor(ctx, conn)
	if err != nil {
		return nil, err
	}

	now := r.now()
	lookahead, lookback := r.Lookahead, r.Lookback
	if lookahead <= 0 {
		lookahead = defaultLookahead
	}
	if lookback <= 0 {
		lookback = defaultLookback
	}
	appts, err := r.AppointmentRepo.ListForReconcile(ctx, conn.TenantID, now.Add(-lookback), now.Add(lookahead))
	if err != nil {
		return nil, err
	}

	for _, appt := range appts {
		if !appt.Status.Syncable() || appt.ExternalEventID == "" {
			continue
		}
		if err := r.reconcileOne(ctx, client, conn, appt, now, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("appointment %s: %v", appt.ID, err))
		}
	}

	r.log().Info("calendar reconciled",
		zap.String("tenant_id", conn.TenantID),
		zap.Int("cancelled", len(result.Cancelled)),
		zap.Int("rescheduled", len(result.Rescheduled)),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (r *CalendarReconciler) reconcileOne(ctx context.Context, client calendar.Client, conn *model.CalendarConnection, appt *model.Appointment, now time.Time, result *ReconcileResult) error {
	ev, err := client.GetEvent(ctx, conn.CalendarID, appt.ExternalEventID)
	if err != nil {
		return err
	}

	if ev == nil {
		if !appt.ScheduledAt.After(now) {
			result.Unchanged++
			return nil
		}
		if err := r.AppointmentRepo.Cancel(ctx, appt.ID, ReasonEventDeleted); err != nil {
			return err
		}
		result.Cancelled = append(result.Cancelled, appt.ID)
		return nil
	}

	if ev.AllDay || ev.End.Sub(ev.Start) >= 24*time.Hour {
		result.Excluded++
		return nil
	}

	if ev.Cancelled() {
		if err := r.AppointmentRepo.Cancel(ctx, appt.ID, ReasonEventCancelled); err != nil {
			return err
		}
		result.Cancelled = append(result.Cancelled, appt.ID)
		return nil
	}

	drift := ev.Start.Sub(appt.ScheduledAt)
	if drift < 0 {
		drift = -drift
	}
	if drift <= rescheduleTolerance {
		result.Unchanged++
		return nil
	}

	duration := int(ev.End.Sub(ev.Start) / time.Minute)
	if duration <= 0 {
		duration = appt.DurationMinutes
	}
	if err := r.AppointmentRepo.Reschedule(ctx, appt.ID, ev.Start, duration); err != nil {
		return err
	}
	result.Rescheduled = append(result.Rescheduled, appt.ID)
	return nil
}

// ReconcileAll runs every tenant with an active external calendar.
func (r *CalendarReconciler) ReconcileAll(ctx context.Context) ([]*ReconcileResult, error) {
	conns, err := r.ConnRepo.ListActiveExternal(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*ReconcileResult, 0, len(conns))
	for _, conn := range conns {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res, err := r.ReconcileTenant(ctx, conn)
		if err != nil {
			r.log().Error("reconcile tenant calendar", zap.String("tenant_id", conn.TenantID), zap.Error(err))
			res = &ReconcileResult{TenantID: conn.TenantID, Errors: []string{err.Error()}}
		}
		results = append(results, res)
	}
	return results, nil
}
