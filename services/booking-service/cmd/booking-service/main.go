package main

import (
	"context"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/locking"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(config.String("SERVICE_NAME", "booking-service"), config.String("LOG_LEVEL", "info"))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	engine, err := availability.NewEngine(cfg.Engine)
	if err != nil {
		logger.Error("invalid business hours", "err", err)
		os.Exit(1)
	}
	if 60%cfg.Engine.SlotMinutes != 0 {
		logger.Warn("slot duration does not divide an hour; minute offsets restart every hour",
			"slot_minutes", cfg.Engine.SlotMinutes)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer runtime.Shutdown(logger, "otel", 5*time.Second, otelShutdown)
	}

	cal, err := calendar.NewClient(ctx, calendar.Config{
		CalendarID:       cfg.CalendarID,
		ClientEmail:      cfg.ClientEmail,
		PrivateKey:       cfg.PrivateKey,
		CredentialsFile:  cfg.CredentialsFile,
		BusinessLocation: cfg.Engine.Location,
		WindowLocation:   cfg.WindowLoc,
		SlotDuration:     engine.SlotDuration(),
	})
	if err != nil {
		logger.Error("calendar client init failed", "err", err)
		os.Exit(1)
	}

	checks := []runtime.ReadyCheck{{Name: "calendar", Check: cal.Ping}}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	opts := handlers.Options{}
	var limiter httpx.Limiter
	if rdb != nil {
		opts.Locker = locking.NewRedisLocker(rdb, cfg.SlotLockTTL, cfg.Service+":slotlock")
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.RatePerMin, time.Minute, cfg.Service+":rl")
	} else {
		logger.Warn("REDIS_ADDR not set; slot locks and rate limits are per instance")
		opts.Locker = locking.NewMemoryLocker(cfg.SlotLockTTL)
		limiter = httpx.NewMemoryRateLimiter(cfg.RatePerMin, time.Minute)
	}
	if cfg.CheckSlots {
		opts.Checker = cal
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.BookedTopic)
		defer func() { _ = publisher.Close() }()
		opts.Publisher = publisher
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	} else {
		logger.Info("KAFKA_BROKERS not set; booked events are not published")
	}

	appointments := handlers.NewAppointmentHandler(engine, cal, cal, logger, opts)
	limit := httpx.RateLimit(limiter, logger, cfg.RateFailOpen)
	slots := limit(http.HandlerFunc(appointments.Slots))
	create := limit(http.HandlerFunc(appointments.Create))

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/public/slots", slots)
	mux.Handle("/api/v1/public/appointments", create)
	// Paths the website called before the move to a long-running service.
	mux.Handle("/get-available-slots", slots)
	mux.Handle("/create-appointment", create)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.ReqTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.GRPCPort != "" {
		if err := startGrpcHealth(ctx, logger, cfg.GRPCPort, cfg.Service, checks); err != nil {
			logger.Error("grpc health server failed to start", "err", err)
		}
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr,
			"business_timezone", cfg.Engine.Location.String(),
			"busy_window_timezone", cfg.WindowLoc.String(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	runtime.Shutdown(logger, "http server", 10*time.Second, srv.Shutdown)
	logger.Info("http server stopped")
}
