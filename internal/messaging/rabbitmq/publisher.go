package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	"github.com/vladislavdragonenkov/seating/internal/messaging"
)

const (
	// DefaultQueue — очередь событий рассадки по умолчанию.
	DefaultQueue   = "seating.events"
	publishTimeout = 5 * time.Second
)

// channel описывает методы *amqp.Channel, которые использует publisher.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher публикует события outbox в durable-очередь RabbitMQ.
type Publisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     channel
	queue  string
	logger *log.Entry
	now    func() time.Time
}

// Dial подключается к RabbitMQ и объявляет очередь.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq open channel: %w", err)
	}
	p, err := newPublisher(ch, queue)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq declare queue %s: %w", queue, err)
	}
	return &Publisher{
		ch:     ch,
		queue:  queue,
		logger: log.WithField("component", "rabbitmq-publisher"),
		now:    time.Now,
	}, nil
}

// Publish отправляет событие в очередь как persistent-сообщение.
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	body, err := json.Marshal(messaging.NewEnvelope(event, p.now()))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    p.now().UTC(),
		Headers: amqp.Table{
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
		},
		Body: body,
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"queue":     p.queue,
			"outbox_id": event.ID,
		}).Error("failed to publish to rabbitmq")
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return firstErr
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
