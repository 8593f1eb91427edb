package holidays

import (
	"testing"
	"time"
)

func TestEaster(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		day   int
	}{
		{2024, time.March, 31},
		{2025, time.April, 20},
		{2026, time.April, 5},
		{2000, time.April, 23},
		{1999, time.April, 4},
	}
	for _, c := range cases {
		got := Easter(c.year)
		want := time.Date(c.year, c.month, c.day, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("Easter(%d) = %s, want %s", c.year, got.Format("2006-01-02"), want.Format("2006-01-02"))
		}
	}
}

func TestForYear2024(t *testing.T) {
	list, err := ForYear(2024)
	if err != nil {
		t.Fatalf("ForYear failed: %v", err)
	}
	if len(list) != 12 {
		t.Fatalf("expected 12 holidays, got %d", len(list))
	}

	byName := map[string]Holiday{}
	for _, h := range list {
		byName[h.Name] = h
	}

	carnaval := byName["Carnaval"]
	if got := carnaval.Date.Format("2006-01-02"); got != "2024-02-13" {
		t.Fatalf("Carnaval 2024 = %s, want 2024-02-13", got)
	}
	if carnaval.Kind != KindMovable {
		t.Fatalf("Carnaval should be movable")
	}

	if got := byName["Páscoa"].Date.Format("2006-01-02"); got != "2024-03-31" {
		t.Fatalf("Páscoa 2024 = %s, want 2024-03-31", got)
	}
	if got := byName["Sexta-feira Santa"].Date.Format("2006-01-02"); got != "2024-03-29" {
		t.Fatalf("Sexta-feira Santa 2024 = %s, want 2024-03-29", got)
	}
	if got := byName["Corpus Christi"].Date.Format("2006-01-02"); got != "2024-05-30" {
		t.Fatalf("Corpus Christi 2024 = %s, want 2024-05-30", got)
	}

	natal := byName["Natal"]
	if got := natal.Date.Format("2006-01-02"); got != "2024-12-25" {
		t.Fatalf("Natal = %s, want 2024-12-25", got)
	}
	if natal.Kind != KindFixed {
		t.Fatalf("Natal should be fixed")
	}
}

func TestForYearOrderedAndPure(t *testing.T) {
	first, err := ForYear(2026)
	if err != nil {
		t.Fatalf("ForYear failed: %v", err)
	}
	for i := 1; i < len(first); i++ {
		if first[i].Date.Before(first[i-1].Date) {
			t.Fatalf("holidays out of order at %d: %s after %s", i, first[i].Name, first[i-1].Name)
		}
	}

	second, err := ForYear(2026)
	if err != nil {
		t.Fatalf("ForYear failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("length changed between calls")
	}
	for i := range first {
		if !first[i].Date.Equal(second[i].Date) || first[i].Name != second[i].Name {
			t.Fatalf("result changed between calls at %d", i)
		}
	}
}

func TestForYearRejectsBadYear(t *testing.T) {
	for _, year := range []int{0, -1, 1500, 9999} {
		if _, err := ForYear(year); err == nil {
			t.Fatalf("expected error for year %d", year)
		}
	}
}
