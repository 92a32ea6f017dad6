package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quizgate/mailer/internal/mailer/app"
	"github.com/quizgate/mailer/internal/mailer/dnscheck"
	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/ratelimit"
	"github.com/quizgate/mailer/internal/mailer/repository/postgres"
	"github.com/quizgate/mailer/internal/mailer/smtp"
	httptransport "github.com/quizgate/mailer/internal/mailer/transport/http"
	"github.com/quizgate/mailer/internal/platform/config"
	"github.com/quizgate/mailer/internal/platform/database"
	"github.com/quizgate/mailer/internal/platform/logger"
	"github.com/quizgate/mailer/internal/platform/messagebroker"
)

const serviceName = "mailer_service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Mailer service starting...", "port", cfg.HTTPPort, "log_level", cfg.LogLevel)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	settings := domain.MailSettings{
		SenderName:     cfg.SenderName,
		SenderEmail:    cfg.SenderEmail,
		ReplyTo:        cfg.ReplyTo,
		AdminEmails:    cfg.AdminEmailList(),
		DKIMSelector:   cfg.DKIMSelector,
		DKIMDomain:     cfg.DKIMDomain,
		SendingEnabled: cfg.SendingEnabled,
	}

	queueRepo := postgres.NewPgQueueRepository(dbPool)
	logRepo := postgres.NewPgDeliveryLogRepository(dbPool)
	eventRepo := postgres.NewPgProviderEventRepository(dbPool)
	resultRepo := postgres.NewPgResultRepository(dbPool)

	smtpClient := smtp.NewClient(smtp.RelayConfig{
		Host:        cfg.RelayHost,
		Port:        cfg.RelayPort,
		Username:    cfg.RelayUsername,
		Password:    cfg.RelayPassword,
		ImplicitTLS: cfg.RelayImplicitTLS,
		Timeout:     time.Duration(cfg.RelayTimeoutSecs) * time.Second,
	}, appLogger)
	retrier := app.NewDeliveryRetrier(smtpClient, 2*time.Second, appLogger)

	dnsValidator := dnscheck.NewValidator(net.DefaultResolver, appLogger)

	submissionSvc := app.NewSubmissionService(resultRepo, queueRepo, logRepo, natsClient, settings, appLogger)
	webhookProc := app.NewWebhookProcessor(logRepo, eventRepo, appLogger)
	diagnosticsSvc := app.NewDiagnosticsService(dnsValidator, smtpClient, retrier, settings, appLogger)

	worker := app.NewQueueWorker(queueRepo, logRepo, retrier, natsClient, cfg.ReplyTo,
		time.Duration(cfg.WorkerPollIntervalSecs)*time.Second, appLogger)
	if err := worker.StartConsuming(rootCtx); err != nil {
		appLogger.Error("Failed to start send job consumer", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Send job consumer started",
		"subject", app.NatsSendJobSubject, "queue_group", app.NatsSendJobQueueGroup)

	limiter := ratelimit.New(cfg.RateLimitMax, time.Duration(cfg.RateLimitWindowMinutes)*time.Minute)

	submissionHandler := httptransport.NewSubmissionHandler(submissionSvc, diagnosticsSvc, limiter, appLogger)
	webhookHandler := httptransport.NewWebhookHandler(webhookProc, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httptransport.PrometheusMetricsMiddleware)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "Mailer service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		submissionHandler.RegisterRoutes(v1)
		webhookHandler.RegisterRoutes(v1)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		worker.RunPoller(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error", "error", err)
	}

	// In-flight deliveries finish before the process exits.
	worker.Stop()
	appLogger.Info("Mailer service shut down.")
}
