package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/policy"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
)

// Engine answers "what slots can this dentist be booked into on this day".
// It serves both the staff calendar and the patient portal; reads are
// side-effect-free and safe to run concurrently.
type Engine struct {
	repo     *storage.AppointmentRepository
	policies policy.Provider
	now      func() time.Time
}

func NewEngine(repo *storage.AppointmentRepository, policies policy.Provider) *Engine {
	return &Engine{
		repo:     repo,
		policies: policies,
		now:      time.Now,
	}
}

// AvailableSlots returns the open slots for dentistID on date (YYYY-MM-DD,
// clinic-local). A fully booked day yields an empty slice, not an error.
func (e *Engine) AvailableSlots(ctx context.Context, clinicID, dentistID, date string) ([]Slot, error) {
	pol, err := e.policies.ClinicPolicy(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	loc := pol.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	dayStart := day.Add(time.Duration(pol.OpenHour) * time.Hour)
	dayEnd := day.Add(time.Duration(pol.CloseHour) * time.Hour)
	active, err := e.repo.ListActiveIntervals(ctx, clinicID, dentistID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	busy := make([]Interval, 0, len(active))
	for _, a := range active {
		busy = append(busy, Interval{Start: a.StartTime.In(loc), End: a.EndTime.In(loc)})
	}

	return AvailableSlots(day, pol, busy, e.now().In(loc)), nil
}
