package main

import (
	"context"
	"encoding/json"
	"log/slog"
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
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/consumer"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/email"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/inbox"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/jobs"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/outbox"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/sms"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type bookedPayload struct {
	AppointmentID string `json:"appointment_id"`
	ClinicID      string `json:"clinic_id"`
	PatientID     string `json:"patient_id"`
	DentistID     string `json:"dentist_id"`
	Procedure     string `json:"procedure"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type cancelledPayload struct {
	AppointmentID string `json:"appointment_id"`
	ClinicID      string `json:"clinic_id"`
}

type contactPayload struct {
	ClinicID  string `json:"clinic_id"`
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "reminder-service")
	port, err := config.Port("PORT", "8082")
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

	inboxRepo := inbox.NewRepository(pool)
	jobRepo := jobs.NewRepository()
	outboxRepo := outbox.NewRepository(pool)
	contactsRepo := storage.NewContactsRepository(pool)
	remindersRepo := storage.NewRemindersRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)
	var smsSender sms.Sender
	if url := strings.TrimSpace(config.String("SMS_WEBHOOK_URL", "")); url != "" {
		smsSender = sms.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
	} else {
		smsSender = sms.NewNoopSender()
	}

	backoffSeconds, err := strconv.Atoi(config.String("REMINDER_BACKOFF_SECONDS", "60"))
	if err != nil || backoffSeconds <= 0 {
		backoffSeconds = 60
	}
	jobWorker := jobs.NewWorker(pool, jobRepo, contactsRepo, remindersRepo, outboxRepo, emailSender, smsSender, logger, jobs.WorkerConfig{
		Interval:  2 * time.Second,
		BatchSize: 50,
		Backoff:   time.Duration(backoffSeconds) * time.Second,
	})
	go jobWorker.Run(ctx)

	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "reminder-service")

	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	startConsumer(config.String("KAFKA_BOOKED_TOPIC", "scheduling.appointment.booked.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload bookedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booked payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.ClinicID == "" || payload.PatientID == "" || payload.StartTime == "" {
			logger.Error("missing booked fields", "appointment_id", payload.AppointmentID)
			return nil
		}
		startTime, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			logger.Error("invalid start_time", "err", err)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		for _, offset := range offsets {
			remindAt := startTime.Add(-offset)
			if remindAt.Before(time.Now().UTC()) {
				continue
			}
			if err := jobRepo.Insert(ctx, tx, jobs.Job{
				IdempotencyKey: payload.AppointmentID + "|" + remindAt.UTC().Format(time.RFC3339),
				AppointmentID:  payload.AppointmentID,
				ClinicID:       payload.ClinicID,
				PatientID:      payload.PatientID,
				RemindAt:       remindAt,
				TemplateData: map[string]any{
					"procedure":  payload.Procedure,
					"start_time": payload.StartTime,
					"dentist_id": payload.DentistID,
				},
			}); err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})

	startConsumer(config.String("KAFKA_CANCELLED_TOPIC", "scheduling.appointment.cancelled.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload cancelledPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancelled payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.ClinicID == "" {
			logger.Error("missing cancelled fields")
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := jobRepo.CancelByAppointment(ctx, tx, payload.ClinicID, payload.AppointmentID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})

	startConsumer(config.String("KAFKA_CONTACTS_TOPIC", "patients.contact.updated.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload contactPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid contact payload", "err", err)
			return nil
		}
		if payload.ClinicID == "" || payload.PatientID == "" {
			logger.Error("missing contact fields")
			return nil
		}
		return contactsRepo.Upsert(ctx, storage.PatientContact{
			ClinicID:  payload.ClinicID,
			PatientID: payload.PatientID,
			Name:      payload.Name,
			Email:     payload.Email,
			Phone:     payload.Phone,
		})
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "reminder")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
