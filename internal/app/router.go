package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/config"
	"github.com/unclebandit/koya-caller/internal/controller"
	"github.com/unclebandit/koya-caller/internal/handler"
	"github.com/unclebandit/koya-caller/internal/logger"
	"github.com/unclebandit/koya-caller/internal/queue"
)

// Router builds the HTTP surface.
func (s *Services) Router(cfg config.Config, log *zap.Logger) http.Handler {
	campaignController := &controller.CampaignController{CampaignService: s.Campaigns}
	campaignHandler := handler.NewCampaignHandler(s.Campaigns, log)
	dncController := &controller.DNCController{Compliance: s.Compliance}
	queueController := &controller.QueueController{Queue: s.Queue}
	settingsController := &controller.SettingsController{Window: s.Window}
	callController := &controller.CallController{Initiator: s.Initiator}

	webhooks := &handler.WebhookHandler{Secret: cfg.WebhookSecret, Queue: s.Events, Log: log}
	// The in-memory queue does not survive a restart, so outcomes are
	// recorded before the provider gets its 200.
	if _, ok := s.Events.(*queue.InMemoryQueue); ok {
		webhooks.Recorder = s.Recorder
	}
	jobs := &handler.JobsHandler{
		CronSecret: cfg.CronSecret,
		Queue:      s.Processor,
		Calendars:  s.Reconciler,
		Reminders:  s.Reminders,
		StaleAfter: cfg.StaleAfter,
		Log:        log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(logger.Middleware(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/voice", webhooks.HandleVoiceWebhook)

	r.Route("/jobs", func(r chi.Router) {
		r.Use(jobs.Authorize)
		r.Post("/process-queue", jobs.ProcessQueue)
		r.Post("/reconcile-calendars", jobs.ReconcileCalendars)
		r.Post("/send-reminders", jobs.SendReminders)
	})

	r.Route("/api/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Route("/dnc", func(r chi.Router) {
			r.Post("/", dncController.Add)
			r.Get("/", dncController.List)
			r.Delete("/{phone}", dncController.Remove)
		})
		r.Post("/consent", dncController.SetConsent)

		r.Route("/queue", func(r chi.Router) {
			r.Post("/", queueController.Enqueue)
			r.Get("/", queueController.List)
			r.Get("/{id}", queueController.Get)
			r.Post("/{id}/cancel", queueController.Cancel)
			r.Post("/{id}/reschedule", queueController.Reschedule)
		})

		r.Get("/outbound-settings", settingsController.Get)
		r.Put("/outbound-settings", settingsController.Update)

		r.Post("/calls", callController.Initiate)

		// Campaign routes
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", campaignController.CreateCampaign)
			r.Get("/", campaignController.ListCampaigns)
			r.Get("/{id}", campaignHandler.GetCampaignHandlerWithStats)
			r.Post("/{id}/launch", campaignController.LaunchCampaign)
			r.Post("/{id}/status", campaignController.ChangeStatus)
			r.Post("/{id}/personalized-preview", campaignController.PersonalizedPreview)
		})
	})

	return otelhttp.NewHandler(r, "koya-caller")
}
