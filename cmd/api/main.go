package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/app"
	"github.com/bernardodieta/bookingApp-sub001/internal/calendar"
	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/config"
	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/bernardodieta/bookingApp-sub001/internal/payments"
	"github.com/bernardodieta/bookingApp-sub001/internal/queue"
	"github.com/bernardodieta/bookingApp-sub001/internal/storage/postgres"
	transporthttp "github.com/bernardodieta/bookingApp-sub001/internal/transport/http"
	"github.com/bernardodieta/bookingApp-sub001/internal/worker"
	"github.com/bernardodieta/bookingApp-sub001/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.Init(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.SyncExchange)
	if err != nil {
		logger.Fatal("connect to rabbitmq", zap.Error(err))
	}
	defer func() { _ = publisher.Close() }()

	consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.SyncExchange, cfg.SyncQueue,
		[]string{queue.RoutingSyncAccount})
	if err != nil {
		logger.Fatal("bind sync queue", zap.Error(err))
	}
	defer func() { _ = consumer.Close() }()

	clk := clock.NewSystem()
	providerTimeout := time.Duration(cfg.ProviderTimeoutS) * time.Second
	calClient := calendar.NewClient(
		calendar.Credentials{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		calendar.Credentials{ClientID: cfg.MicrosoftClientID, ClientSecret: cfg.MicrosoftClientSecret},
		cfg.OAuthRedirectURL,
		providerTimeout,
	)
	gateway := payments.NewGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	bookingRepo := postgres.NewBookingRepository(pool)
	availabilityRepo := postgres.NewAvailabilityRepository(pool)
	waitlistRepo := postgres.NewWaitlistRepository(pool)
	calendarRepo := postgres.NewCalendarRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)

	availabilitySvc := app.NewAvailabilityService(availabilityRepo, clk)
	slotSvc := app.NewSlotService(bookingRepo, availabilitySvc, clk)
	waitlistSvc := app.NewWaitlistService(waitlistRepo, slotSvc, slotSvc, publisher, clk)
	syncSvc := app.NewSyncService(calendarRepo, calClient, clk, cfg.SyncPageSize,
		providerTimeout, time.Duration(cfg.StaleAfterHours)*time.Hour)
	conflictSvc := app.NewConflictService(calendarRepo, bookingRepo, publisher, clk, cfg.SyncQueue)
	paymentSvc := app.NewPaymentService(paymentRepo, gateway, bookingRepo, clk, cfg.Currency)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Slots:           slotSvc,
		Reserver:        slotSvc,
		Canceller:       slotSvc,
		BookingHistory:  slotSvc,
		WaitlistJoin:    waitlistSvc,
		WaitlistEst:     waitlistSvc,
		WaitlistAccept:  waitlistSvc,
		WaitlistPromote: waitlistSvc,
		WaitlistHistory: waitlistSvc,
		Rules:           availabilitySvc,
		Authorizer:      calClient,
		SyncPublisher:   publisher,
		ConflictList:    conflictSvc,
		ConflictPreview: conflictSvc,
		ConflictResolve: conflictSvc,
		ConflictMetrics: conflictSvc,
		Checkout:        paymentSvc,
		SessionConfirm:  paymentSvc,
		StripeWebhook:   paymentSvc,
	}, logger, parseCSV(cfg.CORSOrigins))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	for i := 0; i < cfg.SyncWorkers; i++ {
		w := worker.NewSyncWorker(consumer, syncSvc, logger)
		go func() {
			if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sync worker stopped", zap.Error(err))
			}
		}()
	}
	poller := worker.NewPoller(syncSvc, time.Duration(cfg.PollIntervalS)*time.Second, logger)
	go func() {
		if err := poller.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync poller stopped", zap.Error(err))
		}
	}()

	logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopWorkers()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
