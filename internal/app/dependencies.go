package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/seating/internal/health"
	"github.com/vladislavdragonenkov/seating/internal/service/seating"
	"github.com/vladislavdragonenkov/seating/internal/storage/memory"
	"github.com/vladislavdragonenkov/seating/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/seating/internal/storage/redis"
)

// runtimeDependencies собирает хранилище, блокировки и проверки здоровья по конфигурации.
type runtimeDependencies struct {
	store          domain.Store
	locker         domain.Locker
	storageChecker healthcheck.Checker
	redisChecker   healthcheck.Checker
	closers        []func() error
}

// initRuntimeDependencies открывает хранилище и, если задан Redis, распределённую блокировку столиков.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := deps.initLocker(ctx, cfg, logger); err != nil {
		_ = deps.close()
		return nil, err
	}
	return deps, nil
}

func (d *runtimeDependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		d.store = memory.NewStore()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return errors.New("postgres storage requires SEATING_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		d.store = store
		logger.Info("using postgres storage")
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	d.storageChecker = healthcheck.NewPingChecker("storage", d.store)
	d.closers = append(d.closers, d.store.Close)
	return nil
}

func (d *runtimeDependencies) initLocker(ctx context.Context, cfg Config, logger *log.Entry) error {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		d.locker = seating.NewLocalLocker()
		return nil
	}

	client, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("init redis locker: %w", err)
	}
	d.closers = append(d.closers, closeRedis(client))

	locker := redisstore.NewLocker(client,
		redisstore.WithTTL(cfg.LockTTL),
		redisstore.WithLogger(logger.WithField("component", "redis-locker")),
	)
	d.locker = locker
	d.redisChecker = healthcheck.NewPingChecker("redis", locker)
	logger.WithField("addr", cfg.RedisAddr).Info("using redis table locks")
	return nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func closeRedis(client *goredis.Client) func() error {
	return func() error {
		return client.Close()
	}
}
