package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of db.Pool the repositories need; pgxmock
// stands in for it in tests.
type Querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AppointmentRepository struct {
	pool Querier
}

func NewAppointmentRepository(pool Querier) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `id, clinic_id, patient_id, dentist_id, procedure,
	start_time, end_time, status, COALESCE(room, ''), COALESCE(notes, ''), channel, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.PatientID,
		&a.DentistID,
		&a.Procedure,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Room,
		&a.Notes,
		&a.Channel,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// Create inserts inside tx. Overlap with another active appointment of the
// same dentist trips the exclusion constraint; callers detect it with
// IsConflict and must recompute availability before retrying.
func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, clinic_id, patient_id, dentist_id, procedure, start_time, end_time, status, room, notes, channel)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
		RETURNING created_at, updated_at
	`, a.ID, a.ClinicID, a.PatientID, a.DentistID, a.Procedure, a.StartTime, a.EndTime, a.Status,
		a.Room, a.Notes, a.Channel).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AppointmentRepository) Get(ctx context.Context, clinicID, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID))
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, clinicID, id string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
		FOR UPDATE
	`, id, clinicID))
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, clinicID, id, status string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND clinic_id = $2
		RETURNING `+appointmentColumns+`
	`, id, clinicID, status))
}

// Delete is the administrative hard delete; it bypasses the state machine.
func (r *AppointmentRepository) Delete(ctx context.Context, clinicID, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type AppointmentFilter struct {
	DentistID string
	Status    string
	Procedure string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// List applies the optional filters and returns one page plus the total
// match count.
func (r *AppointmentRepository) List(ctx context.Context, clinicID string, f AppointmentFilter) ([]model.Appointment, int, error) {
	where := []string{"clinic_id = $1"}
	args := []any{clinicID}

	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DentistID != "" {
		add("dentist_id = $%d", f.DentistID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Procedure != "" {
		add("procedure = $%d", f.Procedure)
	}
	if f.StartDate != nil {
		add("start_time >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("start_time < $%d", *f.EndDate)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+whereClause+`
		ORDER BY start_time ASC
		LIMIT $%d OFFSET $%d
	`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return appts, total, nil
}

// ListActiveIntervals returns the dentist's appointments overlapping
// [start, end) whose status still blocks the calendar.
func (r *AppointmentRepository) ListActiveIntervals(ctx context.Context, clinicID, dentistID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
			AND dentist_id = $2
			AND status IN ('scheduled', 'confirmed', 'in_progress')
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, clinicID, dentistID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// LockPatient serializes portal bookings for one patient within tx so the
// pending-appointment check and the insert form one atomic unit.
func (r *AppointmentRepository) LockPatient(ctx context.Context, tx pgx.Tx, clinicID, patientID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, clinicID, patientID)
	return err
}

func (r *AppointmentRepository) CountActiveByPatient(ctx context.Context, tx pgx.Tx, clinicID, patientID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE clinic_id = $1
			AND patient_id = $2
			AND status IN ('scheduled', 'confirmed', 'in_progress')
	`, clinicID, patientID).Scan(&n)
	return n, err
}

type IdempotencyRecord struct {
	ClinicID        string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

func (r *AppointmentRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, clinicID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, clinicID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (clinic_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (clinic_id, idempotency_key) DO NOTHING
	`, clinicID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, clinicID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *AppointmentRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, clinicID, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE clinic_id = $1 AND idempotency_key = $2
	`, clinicID, key, appointmentID, statusCode, response)
	return err
}

func (r *AppointmentRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, clinicID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT clinic_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE clinic_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, clinicID, key).Scan(
		&rec.ClinicID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

// IsConflict reports an exclusion-constraint violation (SQLSTATE 23P01),
// raised when two active appointments of one dentist would overlap.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
