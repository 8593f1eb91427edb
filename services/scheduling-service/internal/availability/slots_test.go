package availability

import (
	"testing"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/policy"
)

func hourPolicy(open, close int, lunch *policy.LunchBreak) policy.Policy {
	return policy.Policy{OpenHour: open, CloseHour: close, Lunch: lunch, SlotMinutes: 60}
}

func TestGenerateSkipsLunch(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(8, 20, &policy.LunchBreak{StartHour: 12, EndHour: 13})

	slots := Generate(day, pol)
	// 8..19 starts minus the 12:00 slot.
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != time.Hour {
			t.Fatalf("slot duration %s, want 1h", s.End.Sub(s.Start))
		}
		if s.Start.Hour() == 12 {
			t.Fatalf("lunch slot 12:00 must be excluded")
		}
	}
}

func TestGenerateOrderedNonOverlapping(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := policy.Policy{OpenHour: 9, CloseHour: 17, SlotMinutes: 30}

	slots := Generate(day, pol)
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("slots not strictly increasing at %d", i)
		}
		if slots[i].Start.Before(slots[i-1].End) {
			t.Fatalf("slots overlap at %d", i)
		}
	}
}

func TestFilterBackToBackIsFree(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(9, 12, nil)

	busy := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}}
	slots := Filter(Generate(day, pol), busy, day)
	// 10:00 starts exactly when the booking ends; it stays.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 10 || slots[1].Start.Hour() != 11 {
		t.Fatalf("unexpected slots: %v", slots)
	}
}

func TestFilterSkipsPast(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(9, 12, nil)

	now := day.Add(10*time.Hour + 30*time.Minute)
	slots := Filter(Generate(day, pol), nil, now)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 11 {
		t.Fatalf("expected 11:00, got %s", slots[0].Start)
	}
}

func TestFilterPartialOverlapConflicts(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(9, 12, nil)

	// 09:30-10:30 knocks out both the 09:00 and the 10:00 slot.
	busy := []Interval{{Start: day.Add(9*time.Hour + 30*time.Minute), End: day.Add(10*time.Hour + 30*time.Minute)}}
	slots := Filter(Generate(day, pol), busy, day)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 11 {
		t.Fatalf("expected 11:00, got %s", slots[0].Start)
	}
}

func TestAvailableSlotsScenario(t *testing.T) {
	// Open 8-20 with lunch 12-13, hourly slots, one booking 10:00-11:00.
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(8, 20, &policy.LunchBreak{StartHour: 12, EndHour: 13})
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}}

	slots := AvailableSlots(day, pol, busy, day)

	// 10:00 is booked and 12:00 falls in lunch; 13:00 starts at lunch end and stays.
	want := []int{8, 9, 11, 13, 14, 15, 16, 17, 18, 19}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, hour := range want {
		if slots[i].Start.Hour() != hour {
			t.Fatalf("slot %d: expected %02d:00, got %s", i, hour, slots[i].Start.Format("15:04"))
		}
	}
}

func TestAvailableSlotsIdempotent(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(8, 20, &policy.LunchBreak{StartHour: 12, EndHour: 13})
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}}

	first := AvailableSlots(day, pol, busy, day)
	second := AvailableSlots(day, pol, busy, day)
	if len(first) != len(second) {
		t.Fatalf("results differ in length")
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("results differ at %d", i)
		}
	}
}

func TestAvailableSlotsFullyBookedDay(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	pol := hourPolicy(9, 11, nil)
	busy := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour)}}

	slots := AvailableSlots(day, pol, busy, day)
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}
