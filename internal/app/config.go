package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/seating/internal/service/validation"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит данные в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

const (
	// EventsBrokerNone пишет события outbox только в лог.
	EventsBrokerNone = ""
	// EventsBrokerKafka публикует события в Kafka.
	EventsBrokerKafka = "kafka"
	// EventsBrokerRabbitMQ публикует события в очередь RabbitMQ.
	EventsBrokerRabbitMQ = "rabbitmq"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultMetricsAddr    = ":9090"
	defaultTimezone       = "EST"
	defaultClosedWeekday  = "tuesday"
	defaultOpeningTime    = "10:30"
	defaultLastSeating    = "21:30"
	defaultLockTTL        = 5 * time.Second
	defaultKafkaTopic     = "seating.events"
	defaultRabbitMQQueue  = "seating.events"
	defaultRequestTimeout = 10 * time.Second
)

// Config описывает настройки запуска сервиса рассадки.
type Config struct {
	HTTPAddr       string
	MetricsAddr    string
	GRPCHealthAddr string
	RequestTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	Timezone        string
	ClosedWeekday   string
	OpeningTime     string
	LastSeatingTime string

	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	EventsBroker  string
	KafkaBrokers  string
	KafkaTopic    string
	RabbitMQURL   string
	RabbitMQQueue string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxAge       time.Duration

	OutboxRetention       time.Duration
	OutboxCleanupInterval time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска: память, без брокера и Redis.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            defaultHTTPAddr,
		MetricsAddr:         defaultMetricsAddr,
		RequestTimeout:      defaultRequestTimeout,
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		Timezone:            defaultTimezone,
		ClosedWeekday:       defaultClosedWeekday,
		OpeningTime:         defaultOpeningTime,
		LastSeatingTime:     defaultLastSeating,
		LockTTL:             defaultLockTTL,
		EventsBroker:        EventsBrokerNone,
		KafkaTopic:          defaultKafkaTopic,
		RabbitMQQueue:       defaultRabbitMQQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxMaxAge:        5 * time.Minute,

		OutboxRetention:       24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
	}
}

// Schedule собирает расписание ресторана из настроек.
func (c Config) Schedule() (validation.Schedule, error) {
	schedule := validation.DefaultSchedule()

	location, err := loadLocation(c.Timezone)
	if err != nil {
		return validation.Schedule{}, err
	}
	schedule.Location = location

	if strings.TrimSpace(c.ClosedWeekday) != "" {
		day, err := validation.ParseWeekday(c.ClosedWeekday)
		if err != nil {
			return validation.Schedule{}, err
		}
		schedule.ClosedDay = day
	}
	if c.OpeningTime != "" {
		schedule.OpensAt = c.OpeningTime
	}
	if c.LastSeatingTime != "" {
		schedule.LastSeating = c.LastSeatingTime
	}

	if err := schedule.Validate(); err != nil {
		return validation.Schedule{}, err
	}
	return schedule, nil
}

// loadLocation понимает фиксированный EST (UTC-5) и IANA-имена.
func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, defaultTimezone) {
		return validation.DefaultLocation, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return location, nil
}
