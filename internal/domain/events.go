package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReservationEvent содержит полезную нагрузку событий по брони.
type ReservationEvent struct {
	ReservationID string            `json:"reservation_id"`
	Status        ReservationStatus `json:"status"`
	Date          string            `json:"reservation_date"`
	Time          string            `json:"reservation_time"`
	People        int               `json:"people"`
	TableID       string            `json:"table_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// TableEvent содержит полезную нагрузку событий по столику.
type TableEvent struct {
	TableID       string    `json:"table_id"`
	TableName     string    `json:"table_name"`
	Capacity      int       `json:"capacity"`
	ReservationID string    `json:"reservation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewReservationMessage собирает outbox-сообщение по брони.
func NewReservationMessage(eventType string, r Reservation, tableID string, at time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(ReservationEvent{
		ReservationID: r.ID,
		Status:        r.Status,
		Date:          r.Date,
		Time:          r.Time,
		People:        r.People,
		TableID:       tableID,
		OccurredAt:    at.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateReservation,
		AggregateID:   r.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// NewTableMessage собирает outbox-сообщение по столику.
func NewTableMessage(eventType string, t Table, reservationID string, at time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(TableEvent{
		TableID:       t.ID,
		TableName:     t.Name,
		Capacity:      t.Capacity,
		ReservationID: reservationID,
		OccurredAt:    at.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateTable,
		AggregateID:   t.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
