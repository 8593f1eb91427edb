package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventReminderSent   = "reminder.notification.sent.v1"
	EventReminderFailed = "reminder.notification.failed.v1"
	EventReminderDLQ    = "reminder.notification.dlq.v1"
)
