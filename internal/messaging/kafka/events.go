package kafka

// Topics для Kafka
const (
	TopicSeatingEvents   = "seating.events"
	TopicDeadLetterQueue = "seating.dlq"
)

// Kafka headers событий outbox
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)
