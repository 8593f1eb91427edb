package policy

import (
	"fmt"
	"time"
)

// LunchBreak is a daily blackout inside the bookable window, in whole hours.
type LunchBreak struct {
	StartHour int
	EndHour   int
}

// Policy is the clinic-wide bookable window. It is configuration, not a
// live computation: it is validated when loaded and treated as immutable
// by the slot engine.
type Policy struct {
	OpenHour    int
	CloseHour   int
	Lunch       *LunchBreak
	SlotMinutes int
	Timezone    string
}

type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid business hours configuration: " + e.Reason
}

var allowedSlotMinutes = map[int]struct{}{15: {}, 20: {}, 30: {}, 60: {}}

func (p Policy) Validate() error {
	if p.OpenHour < 0 || p.CloseHour > 24 || p.OpenHour >= p.CloseHour {
		return &InvalidConfigurationError{Reason: fmt.Sprintf("open_hour %d must be before close_hour %d within 0..24", p.OpenHour, p.CloseHour)}
	}
	if p.Lunch != nil {
		l := p.Lunch
		if l.StartHour >= l.EndHour {
			return &InvalidConfigurationError{Reason: fmt.Sprintf("lunch start %d must be before lunch end %d", l.StartHour, l.EndHour)}
		}
		if l.StartHour < p.OpenHour || l.EndHour > p.CloseHour {
			return &InvalidConfigurationError{Reason: "lunch break must fall within business hours"}
		}
	}
	if _, ok := allowedSlotMinutes[p.SlotMinutes]; !ok {
		return &InvalidConfigurationError{Reason: fmt.Sprintf("slot_minutes %d not supported (15, 20, 30 or 60)", p.SlotMinutes)}
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return &InvalidConfigurationError{Reason: "unknown timezone " + p.Timezone}
		}
	}
	return nil
}

func (p Policy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Default is used when a clinic has not saved settings yet.
func Default() Policy {
	return Policy{
		OpenHour:    8,
		CloseHour:   18,
		Lunch:       &LunchBreak{StartHour: 12, EndHour: 13},
		SlotMinutes: 60,
		Timezone:    "America/Sao_Paulo",
	}
}
