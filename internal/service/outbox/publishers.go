package outbox

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

// LogPublisher пишет события в лог. Используется, когда брокеры не настроены.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт publisher поверх logrus.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

// Publish логирует событие и никогда не возвращает ошибку.
func (p *LogPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
	}).Info(string(event.Payload))
	return nil
}

// FanoutPublisher отправляет событие во все publisher'ы по очереди.
// Ошибки собираются вместе; повтор всего события безопасен, так как publisher'ы идемпотентны по ID.
type FanoutPublisher struct {
	publishers []domain.OutboxPublisher
}

// NewFanoutPublisher создаёт fanout, пропуская nil.
func NewFanoutPublisher(publishers ...domain.OutboxPublisher) *FanoutPublisher {
	filtered := make([]domain.OutboxPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &FanoutPublisher{publishers: filtered}
}

// Len возвращает число подключённых publisher'ов.
func (f *FanoutPublisher) Len() int {
	return len(f.publishers)
}

// Publish публикует событие во все publisher'ы.
func (f *FanoutPublisher) Publish(event domain.OutboxMessage) error {
	var errs []error
	for i, p := range f.publishers {
		if err := p.Publish(event); err != nil {
			errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, errors.Join(errs...))
	}
	return nil
}

var (
	_ domain.OutboxPublisher = (*LogPublisher)(nil)
	_ domain.OutboxPublisher = (*FanoutPublisher)(nil)
)
