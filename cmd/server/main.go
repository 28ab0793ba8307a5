package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/folio/backend/internal/app"
	"github.com/folio/backend/internal/classifier"
	"github.com/folio/backend/internal/config"
	"github.com/folio/backend/internal/events"
	"github.com/folio/backend/internal/handler"
	"github.com/folio/backend/internal/logging"
	"github.com/folio/backend/internal/maintenance"
	"github.com/folio/backend/internal/metrics"
	"github.com/folio/backend/internal/notify"
	"github.com/folio/backend/internal/service"
)

// trustedProxyCount is the number of reverse proxies in front of the API.
const trustedProxyCount = 1

func main() {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, "contact-api")

	ctx := context.Background()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logging.Fatal("store init failed", "error", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	cls, err := classifier.Load(cfg.ClassifierRulesPath)
	if err != nil {
		logging.Fatal("classifier init failed", "error", err)
	}
	slog.Info("classifier loaded", "version", cls.Version())

	ses, err := notify.NewSESMailer(ctx, notify.SESConfig{
		Region:          cfg.Mail.Region,
		AccessKeyID:     cfg.Mail.AccessKeyID,
		SecretAccessKey: cfg.Mail.SecretAccessKey,
		From:            cfg.Mail.From,
	})
	if err != nil {
		logging.Fatal("mailer init failed", "error", err)
	}
	renderer, err := notify.NewRenderer(cfg.Mail.SiteName)
	if err != nil {
		logging.Fatal("template init failed", "error", err)
	}

	var publisher events.Publisher = events.NewNoopPublisher(nil)
	if cfg.AMQPURL != "" {
		rp, err := events.NewRabbitMQPublisher(cfg.AMQPURL, nil)
		if err != nil {
			logging.Fatal("event publisher init failed", "error", err)
		}
		publisher = rp
	}
	defer publisher.Close()

	mailer := notify.NewBreakerMailer(ses, notify.BreakerSettings{})
	dispatcher := notify.NewDispatcher(mailer, renderer, notify.DispatcherConfig{
		OwnerAddress: cfg.Mail.OwnerAddress,
		Workers:      cfg.Notify.Workers,
		QueueSize:    cfg.Notify.QueueSize,
		SendTimeout:  cfg.Mail.SendTimeout,
		MaxAttempts:  cfg.Mail.MaxAttempts,
		RetryBackoff: cfg.Mail.RetryBackoff,
		Publisher:    publisher,
		Metrics:      met,
	})
	dispatcher.Start()

	contactService := service.NewContactService(store.Contacts, cls, dispatcher, service.ContactServiceConfig{
		StoreTimeout: cfg.StoreTimeout,
		Metrics:      met,
	})

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	purger := maintenance.NewPurger(contactService, store.PurgeLock(), cfg.PurgeRetention, cfg.PurgeInterval)
	go purger.Run(bgCtx)

	h := handler.New(store.DB, cfg.FrontendURL, mailer)
	contactHandler := handler.NewContactHandler(contactService)

	rateLimiter := handler.NewRateLimiter(cfg.RateLimitPerMinute)
	defer rateLimiter.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Public submission (rate limited per client IP)
	mux.Handle("POST /api/contact", rateLimiter.Middleware(http.HandlerFunc(contactHandler.Submit)))

	// Operator routes. Authentication is expected at the proxy in front of the API.
	mux.HandleFunc("GET /api/admin/contacts", contactHandler.AdminList)
	mux.HandleFunc("GET /api/admin/contacts/stats", contactHandler.Stats)
	mux.HandleFunc("GET /api/admin/contacts/{id}", contactHandler.Get)
	mux.HandleFunc("PATCH /api/admin/contacts/{id}/status", contactHandler.UpdateStatus)
	mux.HandleFunc("DELETE /api/admin/contacts/{id}", contactHandler.Delete)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.RequestMetadata(trustedProxyCount)(handler.RequestLogger(handler.SecurityHeaders(h.CORS(mux)))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr, "store", cfg.StoreDriver, "mail_enabled", dispatcher.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	stopBackground()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Mail.SendTimeout)
	defer cancelDrain()
	if err := dispatcher.Close(drainCtx); err != nil {
		slog.Error("notification drain incomplete", "error", err)
	}
}
