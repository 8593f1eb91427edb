package availability

import (
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/policy"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is an ephemeral candidate interval; it is never persisted.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Generate produces the candidate slots for one calendar day under pol.
// day must be midnight in the clinic location. Candidates span
// [openHour, closeHour) in SlotMinutes steps; steps intersecting the lunch
// break are removed. Existing bookings are not consulted here.
func Generate(day time.Time, pol policy.Policy) []Slot {
	granularity := time.Duration(pol.SlotMinutes) * time.Minute
	windowStart := day.Add(time.Duration(pol.OpenHour) * time.Hour)
	windowEnd := day.Add(time.Duration(pol.CloseHour) * time.Hour)

	var lunch *Interval
	if pol.Lunch != nil {
		lunch = &Interval{
			Start: day.Add(time.Duration(pol.Lunch.StartHour) * time.Hour),
			End:   day.Add(time.Duration(pol.Lunch.EndHour) * time.Hour),
		}
	}

	var slots []Slot
	for t := windowStart; !t.Add(granularity).After(windowEnd); t = t.Add(granularity) {
		end := t.Add(granularity)
		if lunch != nil && overlaps(t, end, *lunch) {
			continue
		}
		slots = append(slots, Slot{Start: t, End: end})
	}
	return slots
}

// Filter removes slots that overlap any busy interval or start in the past.
// Pure: the input slice is not modified.
func Filter(slots []Slot, busy []Interval, now time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start.Before(now) {
			continue
		}
		if overlapsAny(s.Start, s.End, busy) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// AvailableSlots composes Generate and Filter for one day.
func AvailableSlots(day time.Time, pol policy.Policy, busy []Interval, now time.Time) []Slot {
	return Filter(Generate(day, pol), busy, now)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if overlaps(start, end, b) {
			return true
		}
	}
	return false
}

// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
// A slot starting exactly when a booking ends is free.
func overlaps(start, end time.Time, b Interval) bool {
	return start.Before(b.End) && b.Start.Before(end)
}
