package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler() *Handler {
	return New(nil, nil, nil, nil, nil, discardLogger())
}

func withIdentity(r *http.Request, ident Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, ident))
}

func staffIdentity() Identity {
	return Identity{Sub: "user-1", ClinicID: "clinic-1", Role: "admin"}
}

func patientIdentity() Identity {
	return Identity{Sub: "patient-1", ClinicID: "clinic-1", Role: "patient"}
}

func TestHolidaysEndpoint(t *testing.T) {
	h := newTestHandler()

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/holidays?year=2024", nil), staffIdentity())
	rw := httptest.NewRecorder()
	h.Holidays(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	var resp struct {
		Holidays []holidayItem `json:"holidays"`
	}
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Holidays) != 12 {
		t.Fatalf("expected 12 holidays, got %d", len(resp.Holidays))
	}
	found := false
	for _, hd := range resp.Holidays {
		if hd.Name == "Carnaval" {
			found = true
			if hd.Date != "2024-02-13" {
				t.Fatalf("Carnaval = %s, want 2024-02-13", hd.Date)
			}
			if hd.Kind != "movable" {
				t.Fatalf("Carnaval kind = %s, want movable", hd.Kind)
			}
		}
	}
	if !found {
		t.Fatal("Carnaval missing from response")
	}
}

func TestHolidaysEndpointBadYear(t *testing.T) {
	h := newTestHandler()
	for _, q := range []string{"", "abc", "1200"} {
		req := httptest.NewRequest(http.MethodGet, "/holidays?year="+q, nil)
		rw := httptest.NewRecorder()
		h.Holidays(rw, req)
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("year=%q: expected 400, got %d", q, rw.Code)
		}
	}
}

func TestRequireStaff(t *testing.T) {
	secret := "test-secret"
	var seen Identity
	h := RequireStaff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = identityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), secret)

	token, err := auth.SignHS256(auth.Claims{
		Sub:      "user-1",
		ClinicID: "clinic-1",
		Role:     "admin",
		Iat:      time.Now().Unix(),
		Exp:      time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if seen.ClinicID != "clinic-1" || seen.Sub != "user-1" {
		t.Fatalf("identity not propagated: %+v", seen)
	}

	// Missing token.
	rwNo := httptest.NewRecorder()
	h.ServeHTTP(rwNo, httptest.NewRequest(http.MethodGet, "/appointments", nil))
	if rwNo.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwNo.Code)
	}

	// Patient token on staff route.
	patientToken, err := auth.SignHS256(auth.Claims{
		Sub:      "patient-1",
		ClinicID: "clinic-1",
		Role:     "patient",
		Exp:      time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	reqPat := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	reqPat.Header.Set("Authorization", "Bearer "+patientToken)
	rwPat := httptest.NewRecorder()
	h.ServeHTTP(rwPat, reqPat)
	if rwPat.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rwPat.Code)
	}
}

func TestRequirePatient(t *testing.T) {
	secret := "test-secret"
	h := RequirePatient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), secret)

	staffToken, err := auth.SignHS256(auth.Claims{
		Sub:      "user-1",
		ClinicID: "clinic-1",
		Role:     "admin",
		Exp:      time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/patient-portal/available-slots", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff token on portal route, got %d", rw.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newTestHandler()
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing fields", `{"patient_id":"p1"}`},
		{"unknown procedure", `{"patient_id":"p1","dentist_id":"d1","procedure":"haircut","start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T11:00:00Z"}`},
		{"bad start_time", `{"patient_id":"p1","dentist_id":"d1","procedure":"cleaning","start_time":"10am","end_time":"2026-03-02T11:00:00Z"}`},
		{"bad end_time", `{"patient_id":"p1","dentist_id":"d1","procedure":"cleaning","start_time":"2026-03-02T10:00:00Z","end_time":"later"}`},
		{"end before start", `{"patient_id":"p1","dentist_id":"d1","procedure":"cleaning","start_time":"2026-03-02T11:00:00Z","end_time":"2026-03-02T10:00:00Z"}`},
		{"zero length", `{"patient_id":"p1","dentist_id":"d1","procedure":"cleaning","start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T10:00:00Z"}`},
	}
	for _, c := range cases {
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(c.body)), staffIdentity())
		rw := httptest.NewRecorder()
		h.Create(rw, req)
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", c.name, rw.Code)
		}
	}
}

func TestPortalBookValidation(t *testing.T) {
	h := newTestHandler()
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"missing dentist", `{"procedure":"cleaning","start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T11:00:00Z"}`},
		{"unknown procedure", `{"dentist_id":"d1","procedure":"surfing","start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T11:00:00Z"}`},
		{"end before start", `{"dentist_id":"d1","procedure":"cleaning","start_time":"2026-03-02T11:00:00Z","end_time":"2026-03-02T10:00:00Z"}`},
	}
	for _, c := range cases {
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/patient-portal/appointments", strings.NewReader(c.body)), patientIdentity())
		rw := httptest.NewRecorder()
		h.Book(rw, req)
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", c.name, rw.Code)
		}
	}
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	h := newTestHandler()
	req := withIdentity(httptest.NewRequest(http.MethodPatch, "/appointments/a1/status", strings.NewReader(`{"status":"booked"}`)), staffIdentity())
	req.SetPathValue("id", "a1")
	rw := httptest.NewRecorder()
	h.UpdateStatus(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestSlotsValidation(t *testing.T) {
	h := newTestHandler()

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/patient-portal/available-slots?date=2026-03-02", nil), patientIdentity())
	rw := httptest.NewRecorder()
	h.Slots(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("missing dentist_id: expected 400, got %d", rw.Code)
	}

	reqBad := withIdentity(httptest.NewRequest(http.MethodGet, "/patient-portal/available-slots?dentist_id=d1&date=03-02-2026", nil), patientIdentity())
	rwBad := httptest.NewRecorder()
	h.Slots(rwBad, reqBad)
	if rwBad.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", rwBad.Code)
	}
}

func TestListRejectsUnknownFilters(t *testing.T) {
	h := newTestHandler()

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/appointments?status=booked", nil), staffIdentity())
	rw := httptest.NewRecorder()
	h.List(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", rw.Code)
	}

	reqProc := withIdentity(httptest.NewRequest(http.MethodGet, "/appointments?procedure=surfing", nil), staffIdentity())
	rwProc := httptest.NewRecorder()
	h.List(rwProc, reqProc)
	if rwProc.Code != http.StatusBadRequest {
		t.Fatalf("unknown procedure: expected 400, got %d", rwProc.Code)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	h := newTestHandler()
	cases := []struct {
		name string
		body string
	}{
		{"open after close", `{"open_hour":18,"close_hour":8,"slot_minutes":60}`},
		{"lunch outside hours", `{"open_hour":8,"close_hour":18,"lunch_enabled":true,"lunch_start_hour":7,"lunch_end_hour":9,"slot_minutes":60}`},
		{"bad slot minutes", `{"open_hour":8,"close_hour":18,"slot_minutes":45}`},
		{"bad timezone", `{"open_hour":8,"close_hour":18,"slot_minutes":60,"timezone":"Mars/Olympus"}`},
	}
	for _, c := range cases {
		req := withIdentity(httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(c.body)), staffIdentity())
		rw := httptest.NewRecorder()
		h.UpdateSettings(rw, req)
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", c.name, rw.Code)
		}
	}
}
