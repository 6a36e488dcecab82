package app

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	"github.com/vladislavdragonenkov/seating/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/seating/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/seating/internal/service/outbox"
)

const kafkaClientID = "seating-service"

// eventPublishers содержит основной publisher outbox и DLQ (только для Kafka).
type eventPublishers struct {
	main    domain.OutboxPublisher
	dlq     domain.OutboxPublisher
	closeFn func()
}

// initEventPublishers выбирает брокер событий. Без брокера события пишутся в лог.
func initEventPublishers(cfg Config, logger *log.Entry) (*eventPublishers, error) {
	broker := strings.ToLower(strings.TrimSpace(cfg.EventsBroker))
	switch broker {
	case EventsBrokerNone, "log":
		return &eventPublishers{
			main:    outbox.NewLogPublisher(logger.WithField("component", "outbox-log")),
			closeFn: func() {},
		}, nil
	case EventsBrokerKafka:
		producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		return &eventPublishers{
			main: kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			dlq:  kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
			closeFn: func() {
				closeKafka(producer, logger)
			},
		}, nil
	case EventsBrokerRabbitMQ:
		if strings.TrimSpace(cfg.RabbitMQURL) == "" {
			return nil, fmt.Errorf("rabbitmq broker requires RABBITMQ_URL")
		}
		publisher, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq publisher: %w", err)
		}
		logger.WithField("queue", cfg.RabbitMQQueue).Info("rabbitmq publisher initialized")
		return &eventPublishers{
			main: publisher,
			closeFn: func() {
				if err := publisher.Close(); err != nil {
					logger.WithError(err).Warn("failed to close rabbitmq publisher")
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported events broker %q", cfg.EventsBroker)
	}
}

// initKafkaProducer создаёт producer по списку брокеров через запятую.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	var brokerList []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokerList = append(brokerList, broker)
		}
	}
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("kafka broker requires KAFKA_BROKERS")
	}

	producer, err := kafka.NewProducer(brokerList, kafkaClientID)
	if err != nil {
		return nil, fmt.Errorf("init kafka producer: %w", err)
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
