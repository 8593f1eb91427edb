package jobs

import "testing"

func TestRenderMessage(t *testing.T) {
	subject, body := renderMessage("Ana", map[string]any{
		"procedure":  "cleaning",
		"start_time": "2026-03-02T10:00:00Z",
	})
	if subject != "Appointment reminder: cleaning" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	want := "Hello Ana, this is a reminder of your upcoming appointment (cleaning) at 2026-03-02T10:00:00Z."
	if body != want {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestRenderMessageMissingData(t *testing.T) {
	subject, body := renderMessage("", map[string]any{})
	if subject != "Appointment reminder" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if body != "Hello, this is a reminder of your upcoming appointment." {
		t.Fatalf("unexpected body: %q", body)
	}
}
