package model

import "time"

type Appointment struct {
	ID        string
	ClinicID  string
	PatientID string
	DentistID string
	Procedure string
	StartTime time.Time
	EndTime   time.Time
	Status    string
	Room      string
	Notes     string
	Channel   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Channel records who created the appointment; the portal channel is
// subject to the one-pending-appointment rule.
const (
	ChannelStaff  = "staff"
	ChannelPortal = "portal"
)

var procedures = map[string]struct{}{
	"consultation": {},
	"cleaning":     {},
	"filling":      {},
	"extraction":   {},
	"root_canal":   {},
	"orthodontics": {},
	"whitening":    {},
	"prosthesis":   {},
	"implant":      {},
	"emergency":    {},
	"other":        {},
}

func ValidProcedure(p string) bool {
	_, ok := procedures[p]
	return ok
}
