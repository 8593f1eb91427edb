package lifecycle

import "fmt"

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// InvalidTransitionError names both sides of a rejected status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

var allowed = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// Transition is the only mutation path for an appointment status.
func Transition(from, to Status) error {
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

func Parse(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return Status(raw), true
	}
	return "", false
}

// IsActive reports whether the status still occupies the dentist's calendar.
// Active appointments block overlapping bookings; terminal ones do not.
func IsActive(s Status) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// PortalCancellable limits patient self-service cancellation to statuses
// from which the cancelled transition is still open.
func PortalCancellable(s Status) bool {
	return Transition(s, StatusCancelled) == nil
}
