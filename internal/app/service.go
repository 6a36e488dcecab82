package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/metrics"
	"github.com/vladislavdragonenkov/seating/internal/service/booking"
	"github.com/vladislavdragonenkov/seating/internal/service/seating"
	"github.com/vladislavdragonenkov/seating/internal/service/validation"
)

// newBookingService собирает валидаторы, движок рассадки и оркестратор поверх зависимостей.
func newBookingService(cfg Config, deps *runtimeDependencies, m *metrics.SeatingMetrics, logger *log.Entry) (*booking.Orchestrator, error) {
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, fmt.Errorf("invalid restaurant schedule: %w", err)
	}

	engine := seating.NewEngine(deps.store,
		seating.WithLocker(deps.locker),
		seating.WithMetrics(m),
		seating.WithLogger(logger.WithField("component", "seating-engine")),
	)

	return booking.NewOrchestrator(
		deps.store,
		engine,
		validation.NewReservationValidator(schedule, nil),
		validation.NewTableValidator(),
		booking.WithMetrics(m),
		booking.WithLogger(logger.WithField("component", "booking")),
	), nil
}
