package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/lock"
)

// Job is one periodic unit of background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Worker runs jobs on tickers. A job never overlaps itself, across
// processes either, as long as they share the Locker.
type Worker struct {
	Jobs    []Job
	Locker  lock.Locker
	LockTTL time.Duration
	Log     *zap.Logger
}

// Constructor
func NewWorker(locker lock.Locker, log *zap.Logger, jobs ...Job) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{Jobs: jobs, Locker: locker, LockTTL: 5 * time.Minute, Log: log}
}

// RunOnce runs the named job now. ErrLockHeld means it is already running.
func (w *Worker) RunOnce(ctx context.Context, name string) error {
	for _, job := range w.Jobs {
		if job.Name == name {
			return w.run(ctx, job)
		}
	}
	return appErrors.NewValidation("job", "unknown job "+name)
}

func (w *Worker) run(ctx context.Context, job Job) error {
	if w.Locker != nil {
		release, ok, err := w.Locker.TryLock(ctx, "job:"+job.Name, w.LockTTL)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.ErrLockHeld
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				w.Log.Warn("release job lock", zap.String("job", job.Name), zap.Error(err))
			}
		}()
	}

	start := time.Now()
	err := job.Run(ctx)
	w.Log.Debug("job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
	return err
}

// Start begins processing jobs and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range w.Jobs {
		if job.Interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			w.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	w.Log.Info("job scheduled", zap.String("job", job.Name), zap.Duration("interval", job.Interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.run(ctx, job); err != nil {
				if errors.Is(err, appErrors.ErrLockHeld) {
					w.Log.Debug("job skipped, already running", zap.String("job", job.Name))
					continue
				}
				w.Log.Error("job failed", zap.String("job", job.Name), zap.Error(err))
			}
		}
	}
}

// Job names shared by the worker and the cron endpoints.
const (
	JobProcessQueue      = "process-queue"
	JobRecoverStale      = "recover-stale"
	JobReconcileCalendar = "reconcile-calendars"
	JobSendReminders     = "send-reminders"
)

func ProcessQueueJob(p *QueueProcessor, interval time.Duration) Job {
	return Job{Name: JobProcessQueue, Interval: interval, Run: func(ctx context.Context) error {
		_, err := p.ProcessAll(ctx)
		return err
	}}
}

func RecoverStaleJob(p *QueueProcessor, interval, olderThan time.Duration) Job {
	return Job{Name: JobRecoverStale, Interval: interval, Run: func(ctx context.Context) error {
		_, err := p.RecoverStale(ctx, olderThan)
		return err
	}}
}

func ReconcileCalendarsJob(r *CalendarReconciler, interval time.Duration) Job {
	return Job{Name: JobReconcileCalendar, Interval: interval, Run: func(ctx context.Context) error {
		_, err := r.ReconcileAll(ctx)
		return err
	}}
}

func SendRemindersJob(s *ReminderScheduler, interval time.Duration) Job {
	return Job{Name: JobSendReminders, Interval: interval, Run: func(ctx context.Context) error {
		_, err := s.Run(ctx)
		return err
	}}
}
