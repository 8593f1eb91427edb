package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/config"
	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/db"
	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/httpx"
	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/kafkax"
	otelx "github.com/TOMBRITO1979/odowell.pro-sub001/libs/otel"
	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/runtime"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/availability"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/handlers"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/outbox"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/policy"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewAppointmentRepository(pool)
	settingsRepo := storage.NewSettingsRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	storePolicies := policy.NewStoreProvider(settingsRepo, policy.Default())
	policies, err := policy.NewSettingsServiceProvider(logger, storePolicies, config.String("SETTINGS_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("settings provider init failed; using local store", "err", err)
		policies = storePolicies
	}
	engine := availability.NewEngine(repo, policies)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	h := handlers.New(repo, settingsRepo, outboxRepo, engine, policies, logger)
	jwtSecret := config.String("JWT_SECRET", "dev-secret")

	limitPerMinute := 30
	if v, err := strconv.Atoi(config.String("PORTAL_RATE_LIMIT_PER_MINUTE", "30")); err == nil && v > 0 {
		limitPerMinute = v
	}
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	var portalRL httpx.Middleware
	redisAddr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if redisAddr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		portalRL = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("portal rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", redisAddr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		portalRL = rl.Middleware()
		logger.Info("portal rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	staff := func(fn http.HandlerFunc) http.Handler {
		return handlers.RequireStaff(fn, jwtSecret)
	}
	portal := func(fn http.HandlerFunc) http.Handler {
		return portalRL(handlers.RequirePatient(fn, jwtSecret))
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("GET /appointments", staff(h.List))
	mux.Handle("POST /appointments", staff(h.Create))
	mux.Handle("GET /appointments/{id}", staff(h.Get))
	mux.Handle("PATCH /appointments/{id}/status", staff(h.UpdateStatus))
	mux.Handle("DELETE /appointments/{id}", staff(h.Delete))
	mux.Handle("GET /holidays", staff(h.Holidays))
	mux.Handle("GET /settings", staff(h.GetSettings))
	mux.Handle("PUT /settings", staff(h.UpdateSettings))
	mux.Handle("GET /patient-portal/available-slots", portal(h.Slots))
	mux.Handle("POST /patient-portal/appointments", portal(h.Book))
	mux.Handle("POST /patient-portal/appointments/{id}/cancel", portal(h.PortalCancel))

	bodyLimit := int64(1 << 20)
	if v, err := strconv.Atoi(config.String("REQUEST_BODY_LIMIT_BYTES", "1048576")); err == nil && v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 10 * time.Second
	if v, err := strconv.Atoi(config.String("REQUEST_TIMEOUT_SECONDS", "10")); err == nil && v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
