package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/app"
	"github.com/unclebandit/koya-caller/internal/config"
	"github.com/unclebandit/koya-caller/internal/logger"
	"github.com/unclebandit/koya-caller/internal/service"
	"github.com/unclebandit/koya-caller/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	once := flag.String("once", "", "run a single job by name and exit")
	only := flag.String("jobs", "", "comma-separated job names to schedule (default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	shutdownTelemetry := telemetry.Setup("koya-caller-worker", cfg.OtelEndpoint, cfg.OtelInsecure, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer infra.Close()

	services := app.New(cfg, infra, log)
	jobs, err := selectJobs(services.Jobs(cfg), *only)
	if err != nil {
		log.Fatal("invalid -jobs", zap.Error(err))
	}

	worker := service.NewWorker(services.Locker, log, jobs...)
	if cfg.LockTTL > 0 {
		worker.LockTTL = cfg.LockTTL
	}

	if *once != "" {
		if err := worker.RunOnce(ctx, *once); err != nil {
			log.Error("job failed", zap.String("job", *once), zap.Error(err))
			return 1
		}
		log.Info("job finished", zap.String("job", *once))
		return 0
	}

	// With RabbitMQ the worker shares outcome consumption with the API.
	if cfg.AMQPURL != "" {
		if err := services.StartOutcomeConsumer(log); err != nil {
			log.Fatal("outcome consumer failed", zap.Error(err))
		}
	}

	log.Info("worker running", zap.Int("jobs", len(jobs)))
	worker.Start(ctx)
	log.Info("worker stopped")
	return 0
}

// selectJobs keeps the jobs named in csv, in their original order. An empty
// csv keeps all of them.
func selectJobs(all []service.Job, csv string) ([]service.Job, error) {
	if strings.TrimSpace(csv) == "" {
		return all, nil
	}
	wanted := map[string]bool{}
	for _, name := range strings.Split(csv, ",") {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}

	var out []service.Job
	for _, job := range all {
		if wanted[job.Name] {
			out = append(out, job)
			delete(wanted, job.Name)
		}
	}
	for name := range wanted {
		return nil, errors.Errorf("unknown job %q", name)
	}
	return out, nil
}
