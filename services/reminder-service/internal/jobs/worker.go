package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/db"
	otelx "github.com/TOMBRITO1979/odowell.pro-sub001/libs/otel"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/email"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/outbox"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/sms"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/reminder-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

type Worker struct {
	pool      *db.Pool
	repo      *Repository
	contacts  *storage.ContactsRepository
	reminders *storage.RemindersRepository
	outbox    *outbox.Repository
	email     email.Sender
	sms       sms.Sender
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, contacts *storage.ContactsRepository, reminders *storage.RemindersRepository, outboxRepo *outbox.Repository, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		contacts:  contacts,
		reminders: reminders,
		outbox:    outboxRepo,
		email:     emailSender,
		sms:       smsSender,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	jobs, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return tx.Commit(ctx)
	}

	var ids []int64
	var failed []failedJob
	for _, job := range jobs {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)
		channel, recipient, err := w.deliver(jobCtx, job)
		if err != nil {
			failed = append(failed, failedJob{job: job, reason: err.Error()})
			continue
		}

		if err := w.reminders.Insert(jobCtx, storage.Reminder{
			AppointmentID: job.AppointmentID,
			ClinicID:      job.ClinicID,
			PatientID:     job.PatientID,
			Channel:       channel,
			Recipient:     recipient,
			Payload:       job.TemplateData,
			Status:        "sent",
		}); err != nil {
			failed = append(failed, failedJob{job: job, reason: "reminder record failed"})
			continue
		}

		if err := w.writeSent(jobCtx, tx, job, channel); err != nil {
			failed = append(failed, failedJob{job: job, reason: "outbox enqueue failed"})
			continue
		}
		ids = append(ids, job.ID)
	}

	if err := w.repo.MarkProcessed(ctx, tx, ids); err != nil {
		return err
	}

	for _, f := range failed {
		jobCtx := otelx.ContextWithTraceContext(ctx, f.job.Traceparent, f.job.Tracestate)
		nextRunAt := time.Now().UTC().Add(w.backoff)
		attempts := f.job.Attempts + 1
		if err := w.repo.MarkFailed(ctx, tx, f.job.ID, attempts, f.job.MaxAttempts, nextRunAt, f.reason); err != nil {
			return err
		}

		if attempts >= f.job.MaxAttempts {
			if err := w.enqueueDLQ(jobCtx, tx, f.job, f.reason); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

type failedJob struct {
	job    Job
	reason string
}

// deliver resolves the patient contact and sends through the first
// channel that has an address: email, then sms.
func (w *Worker) deliver(ctx context.Context, job Job) (channel string, recipient string, err error) {
	contact, ok, err := w.contacts.Get(ctx, job.ClinicID, job.PatientID)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", fmt.Errorf("no contact for patient %s", job.PatientID)
	}

	subject, body := renderMessage(contact.Name, job.TemplateData)
	if contact.Email != "" {
		if err := w.email.Send(contact.Email, subject, body); err != nil {
			return "", "", err
		}
		return "email", contact.Email, nil
	}
	if contact.Phone != "" {
		if err := w.sms.Send(ctx, contact.Phone, body); err != nil {
			return "", "", err
		}
		return "sms", contact.Phone, nil
	}
	return "", "", fmt.Errorf("patient %s has no email or phone", job.PatientID)
}

func renderMessage(name string, data map[string]any) (subject string, body string) {
	procedure, _ := data["procedure"].(string)
	startTime, _ := data["start_time"].(string)

	subject = "Appointment reminder"
	if procedure != "" {
		subject = fmt.Sprintf("Appointment reminder: %s", procedure)
	}
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	body = fmt.Sprintf("%s, this is a reminder of your upcoming appointment", greeting)
	if procedure != "" {
		body += fmt.Sprintf(" (%s)", procedure)
	}
	if startTime != "" {
		body += " at " + startTime
	}
	body += "."
	return subject, body
}

func (w *Worker) writeSent(ctx context.Context, tx pgx.Tx, job Job, channel string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": job.AppointmentID,
		"clinic_id":      job.ClinicID,
		"patient_id":     job.PatientID,
		"channel":        channel,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reminder",
		AggregateID:   job.AppointmentID,
		EventType:     outbox.EventReminderSent,
		Payload:       payload,
	})
}

func (w *Worker) enqueueDLQ(ctx context.Context, tx pgx.Tx, job Job, reason string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": job.AppointmentID,
		"clinic_id":      job.ClinicID,
		"patient_id":     job.PatientID,
		"remind_at":      job.RemindAt.UTC().Format(time.RFC3339),
		"template_data":  job.TemplateData,
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reminder",
		AggregateID:   job.AppointmentID,
		EventType:     outbox.EventReminderDLQ,
		Payload:       payload,
	})
}
