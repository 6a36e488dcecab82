package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/app"
	"github.com/vladislavdragonenkov/seating/internal/version"
)

const (
	envHTTPAddr            = "SEATING_HTTP_ADDR"
	envMetricsAddr         = "SEATING_METRICS_ADDR"
	envGRPCHealthAddr      = "SEATING_GRPC_HEALTH_ADDR"
	envRequestTimeout      = "SEATING_REQUEST_TIMEOUT"
	envStorageDriver       = "SEATING_STORAGE_DRIVER"
	envPostgresDSN         = "SEATING_POSTGRES_DSN"
	envPostgresAutoMigrate = "SEATING_POSTGRES_AUTO_MIGRATE"
	envTimezone            = "SEATING_TIMEZONE"
	envClosedWeekday       = "SEATING_CLOSED_WEEKDAY"
	envOpeningTime         = "SEATING_OPENING_TIME"
	envLastSeatingTime     = "SEATING_LAST_SEATING_TIME"
	envRedisAddr           = "SEATING_REDIS_ADDR"
	envRedisPassword       = "SEATING_REDIS_PASSWORD"
	envLockTTL             = "SEATING_LOCK_TTL"
	envEventsBroker        = "SEATING_EVENTS_BROKER"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envKafkaTopic          = "SEATING_KAFKA_TOPIC"
	envRabbitMQURL         = "RABBITMQ_URL"
	envRabbitMQQueue       = "SEATING_RABBITMQ_QUEUE"
	envOutboxPollInterval  = "SEATING_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "SEATING_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "SEATING_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "SEATING_OUTBOX_RETRY_DELAY"
	envOutboxMaxAge        = "SEATING_OUTBOX_MAX_AGE"
	envOutboxRetention     = "SEATING_OUTBOX_RETENTION"
	envOutboxCleanup       = "SEATING_OUTBOX_CLEANUP_INTERVAL"
	envLogLevel            = "SEATING_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", envLogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv собирает конфигурацию из окружения.
// Некорректные значения заменяются значениями по умолчанию и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []error) {
	cfg := app.DefaultConfig()
	var warnings []error

	readString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	readDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}
	readInt := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}

	readString(envHTTPAddr, &cfg.HTTPAddr)
	readString(envMetricsAddr, &cfg.MetricsAddr)
	readString(envGRPCHealthAddr, &cfg.GRPCHealthAddr)
	readDuration(envRequestTimeout, &cfg.RequestTimeout, positiveDuration, "must be > 0")

	readString(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	readString(envPostgresDSN, &cfg.PostgresDSN)
	if v, ok := lookup(envPostgresAutoMigrate); ok && strings.TrimSpace(v) != "" {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", envPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	readString(envTimezone, &cfg.Timezone)
	readString(envClosedWeekday, &cfg.ClosedWeekday)
	readString(envOpeningTime, &cfg.OpeningTime)
	readString(envLastSeatingTime, &cfg.LastSeatingTime)

	readString(envRedisAddr, &cfg.RedisAddr)
	readString(envRedisPassword, &cfg.RedisPassword)
	readDuration(envLockTTL, &cfg.LockTTL, positiveDuration, "must be > 0")

	readString(envEventsBroker, &cfg.EventsBroker)
	cfg.EventsBroker = strings.ToLower(cfg.EventsBroker)
	readString(envKafkaBrokers, &cfg.KafkaBrokers)
	readString(envKafkaTopic, &cfg.KafkaTopic)
	readString(envRabbitMQURL, &cfg.RabbitMQURL)
	readString(envRabbitMQQueue, &cfg.RabbitMQQueue)

	readDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	readInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0")
	readInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0")
	readDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	readDuration(envOutboxMaxAge, &cfg.OutboxMaxAge, positiveDuration, "must be > 0")
	readDuration(envOutboxRetention, &cfg.OutboxRetention, positiveDuration, "must be > 0")
	readDuration(envOutboxCleanup, &cfg.OutboxCleanupInterval, positiveDuration, "must be > 0")

	return cfg, warnings
}

func positiveDuration(v time.Duration) bool    { return v > 0 }
func nonNegativeDuration(v time.Duration) bool { return v >= 0 }
func positiveInt(v int) bool                   { return v > 0 }

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid int value %q: %s", raw, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid duration value %q: %s", raw, rule)
	}
	return value, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}

	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Warn("invalid log level, using info")
	}
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.WithError(warning).Warn("invalid config value, using default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"events_broker":  cfg.EventsBroker,
		"version":        version.String(),
	}).Info("запускаем SeatingService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("SeatingService остановлен")
}
