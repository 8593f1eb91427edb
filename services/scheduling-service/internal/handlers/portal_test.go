package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/outbox"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockedHandler(t *testing.T) (*Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	repo := storage.NewAppointmentRepository(mock)
	return New(repo, nil, outbox.NewRepository(nil), nil, nil, discardLogger()), mock
}

// anyArgs builds n pgxmock.AnyArg matchers; pgxmock requires the
// expected argument count to match even when values don't matter.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var appointmentCols = []string{
	"id", "clinic_id", "patient_id", "dentist_id", "procedure",
	"start_time", "end_time", "status", "room", "notes", "channel",
	"created_at", "updated_at",
}

func appointmentRow(id, patientID, status string, start time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		id, "clinic-1", patientID, "dentist-1", "cleaning",
		start, start.Add(time.Hour), status, "", "", "portal",
		start.Add(-24*time.Hour), start.Add(-24*time.Hour),
	)
}

func portalBookBody() string {
	return `{"dentist_id":"dentist-1","procedure":"cleaning","start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T10:00:00Z"}`
}

func TestPortalBookRejectsPendingAppointment(t *testing.T) {
	h, mock := newMockedHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("clinic-1", "patient-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT count").WithArgs("clinic-1", "patient-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments", strings.NewReader(portalBookBody())), patientIdentity())
	rw := httptest.NewRecorder()
	h.Book(rw, req)

	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rw.Code, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), "pending appointment") {
		t.Fatalf("unexpected error body: %s", rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPortalBookSlotConflict(t *testing.T) {
	h, mock := newMockedHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("clinic-1", "patient-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT count").WithArgs("clinic-1", "patient-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: "23P01"})
	mock.ExpectRollback()

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments", strings.NewReader(portalBookBody())), patientIdentity())
	rw := httptest.NewRecorder()
	h.Book(rw, req)

	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rw.Code, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), "conflicts") {
		t.Fatalf("unexpected error body: %s", rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateSlotConflict(t *testing.T) {
	h, mock := newMockedHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: "23P01"})
	mock.ExpectRollback()

	body := `{"patient_id":"patient-1","dentist_id":"dentist-1","procedure":"cleaning","start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T10:00:00Z"}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)), staffIdentity())
	rw := httptest.NewRecorder()
	h.Create(rw, req)

	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rw.Code, rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestPortalCancelThenBook walks the patient flow: a pending appointment
// blocks a second booking, cancelling it frees the slot for a new one.
func TestPortalCancelThenBook(t *testing.T) {
	h, mock := newMockedHandler(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("a1", "clinic-1").
		WillReturnRows(appointmentRow("a1", "patient-1", "scheduled", start))
	mock.ExpectQuery("UPDATE appointments").WithArgs("a1", "clinic-1", "cancelled").
		WillReturnRows(appointmentRow("a1", "patient-1", "cancelled", start))
	mock.ExpectExec("INSERT INTO outbox_events").WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments/a1/cancel", nil), patientIdentity())
	req.SetPathValue("id", "a1")
	rw := httptest.NewRecorder()
	h.PortalCancel(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var cancelled appointmentResponse
	if err := json.NewDecoder(rw.Body).Decode(&cancelled); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("clinic-1", "patient-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT count").WithArgs("clinic-1", "patient-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(anyArgs(11)...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(start, start))
	mock.ExpectExec("INSERT INTO outbox_events").WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	req = withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments", strings.NewReader(portalBookBody())), patientIdentity())
	rw = httptest.NewRecorder()
	h.Book(rw, req)

	if rw.Code != http.StatusCreated {
		t.Fatalf("book: expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPortalCancelInProgress(t *testing.T) {
	h, mock := newMockedHandler(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("a1", "clinic-1").
		WillReturnRows(appointmentRow("a1", "patient-1", "in_progress", start))
	mock.ExpectRollback()

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments/a1/cancel", nil), patientIdentity())
	req.SetPathValue("id", "a1")
	rw := httptest.NewRecorder()
	h.PortalCancel(rw, req)

	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rw.Code, rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPortalCancelOtherPatient(t *testing.T) {
	h, mock := newMockedHandler(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("a1", "clinic-1").
		WillReturnRows(appointmentRow("a1", "patient-2", "scheduled", start))
	mock.ExpectRollback()

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments/a1/cancel", nil), patientIdentity())
	req.SetPathValue("id", "a1")
	rw := httptest.NewRecorder()
	h.PortalCancel(rw, req)

	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rw.Code, rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
