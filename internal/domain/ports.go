package domain

import (
	"context"
	"time"
)

// Locker сериализует операции над одним ключом (например, столиком) между запросами.
type Locker interface {
	// Lock ждёт освобождения ключа и возвращает функцию снятия блокировки.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет воркеру забирать и отмечать события.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxCleaner удаляет опубликованные события, обновлённые раньше before, не более limit за вызов.
type OutboxCleaner interface {
	DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// Операции движка и оркестратора для метрик и логов.
const (
	OpCreateReservation = "create_reservation"
	OpUpdateReservation = "update_reservation"
	OpUpdateStatus      = "update_status"
	OpDeleteReservation = "delete_reservation"
	OpCreateTable       = "create_table"
	OpSeat              = "seat"
	OpFinish            = "finish"
)

// Типы событий outbox.
const (
	EventReservationCreated       = "reservation.created"
	EventReservationUpdated       = "reservation.updated"
	EventReservationStatusChanged = "reservation.status_changed"
	EventReservationDeleted       = "reservation.deleted"
	EventTableCreated             = "table.created"
	EventTableSeated              = "table.seated"
	EventTableFinished            = "table.finished"
	EventTableReleased            = "table.released"

	AggregateReservation = "reservation"
	AggregateTable       = "table"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
