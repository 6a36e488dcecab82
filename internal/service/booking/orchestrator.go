package booking

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	"github.com/vladislavdragonenkov/seating/internal/metrics"
	"github.com/vladislavdragonenkov/seating/internal/service/seating"
	"github.com/vladislavdragonenkov/seating/internal/service/validation"
)

// Orchestrator связывает валидаторы, автомат статусов и движок столиков с хранилищем.
type Orchestrator struct {
	store        domain.Store
	engine       *seating.Engine
	reservations *validation.ReservationValidator
	tables       *validation.TableValidator
	metrics      *metrics.SeatingMetrics
	logger       *log.Entry
	now          func() time.Time
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithMetrics включает метрики операций.
func WithMetrics(m *metrics.SeatingMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock задаёт источник времени для событий.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(
	store domain.Store,
	engine *seating.Engine,
	reservations *validation.ReservationValidator,
	tables *validation.TableValidator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		engine:       engine,
		reservations: reservations,
		tables:       tables,
		logger:       log.WithField("component", "booking"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateReservation проверяет запрос и сохраняет бронь в статусе booked.
func (o *Orchestrator) CreateReservation(ctx context.Context, p domain.Payload) (result domain.Reservation, err error) {
	defer o.observe(domain.OpCreateReservation, time.Now(), &err, log.Fields{})

	draft, err := o.reservations.ValidateCreate(p)
	if err != nil {
		return domain.Reservation{}, err
	}

	err = o.store.InTx(ctx, func(tx domain.Tx) error {
		saved, err := tx.InsertReservation(ctx, draft)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		if err := o.enqueueReservation(ctx, tx, domain.EventReservationCreated, saved, ""); err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// GetReservation возвращает бронь.
func (o *Orchestrator) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return o.store.GetReservation(ctx, id)
}

// ListReservations возвращает брони по дате, по фрагменту телефона или все.
func (o *Orchestrator) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	filter, err := validation.ValidateFilter(filter)
	if err != nil {
		return nil, err
	}
	return o.store.ListReservations(ctx, filter)
}

// UpdateReservation выполняет полное редактирование брони.
// Если в запросе есть status, применяется правило прямой смены статуса.
func (o *Orchestrator) UpdateReservation(ctx context.Context, id string, p domain.Payload) (result domain.Reservation, err error) {
	defer o.observe(domain.OpUpdateReservation, time.Now(), &err, log.Fields{"reservation_id": id})

	if _, err := o.store.GetReservation(ctx, id); err != nil {
		return domain.Reservation{}, err
	}
	draft, err := o.reservations.ValidateUpdate(p)
	if err != nil {
		return domain.Reservation{}, err
	}

	err = o.engine.WithReservation(ctx, id, func(tx domain.Tx, current domain.Reservation, table *domain.Table) error {
		if current.Status == domain.ReservationStatusFinished {
			return domain.NewError(domain.ErrReservationFinished,
				fmt.Sprintf("A %s reservation cannot be updated.", current.Status))
		}

		next := current
		next.FirstName = draft.FirstName
		next.LastName = draft.LastName
		next.MobileNumber = draft.MobileNumber
		next.Date = draft.Date
		next.Time = draft.Time
		next.People = draft.People
		if draft.Status != "" {
			if err := domain.ValidateStatusUpdate(current.Status, draft.Status); err != nil {
				return err
			}
			next.Status = draft.Status
		}

		tableID, err := o.releaseIfLeavingSeat(ctx, tx, current, next.Status, table)
		if err != nil {
			return err
		}
		saved, err := tx.UpdateReservation(ctx, next)
		if err != nil {
			return fmt.Errorf("update reservation %s: %w", id, err)
		}
		if err := o.enqueueReservation(ctx, tx, domain.EventReservationUpdated, saved, tableID); err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// UpdateStatus меняет статус брони напрямую.
// Завершённую бронь менять нельзя; сидящая бронь, уходящая из seated, освобождает столик.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id string, requested domain.ReservationStatus) (result domain.Reservation, err error) {
	defer o.observe(domain.OpUpdateStatus, time.Now(), &err, log.Fields{"reservation_id": id, "status": requested})

	err = o.engine.WithReservation(ctx, id, func(tx domain.Tx, current domain.Reservation, table *domain.Table) error {
		if err := domain.ValidateStatusUpdate(current.Status, requested); err != nil {
			return err
		}

		tableID, err := o.releaseIfLeavingSeat(ctx, tx, current, requested, table)
		if err != nil {
			return err
		}
		current.Status = requested
		saved, err := tx.UpdateReservation(ctx, current)
		if err != nil {
			return fmt.Errorf("update reservation status %s: %w", id, err)
		}
		if err := o.enqueueReservation(ctx, tx, domain.EventReservationStatusChanged, saved, tableID); err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// DeleteReservation удаляет бронь; занятый ею столик освобождается в той же транзакции.
func (o *Orchestrator) DeleteReservation(ctx context.Context, id string) (err error) {
	defer o.observe(domain.OpDeleteReservation, time.Now(), &err, log.Fields{"reservation_id": id})

	return o.engine.WithReservation(ctx, id, func(tx domain.Tx, current domain.Reservation, table *domain.Table) error {
		tableID := ""
		if table != nil {
			if _, err := o.engine.Release(ctx, tx, *table); err != nil {
				return err
			}
			tableID = table.ID
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return fmt.Errorf("delete reservation %s: %w", id, err)
		}
		return o.enqueueReservation(ctx, tx, domain.EventReservationDeleted, current, tableID)
	})
}

// CreateTable проверяет запрос и сохраняет свободный столик.
func (o *Orchestrator) CreateTable(ctx context.Context, p domain.Payload) (result domain.Table, err error) {
	defer o.observe(domain.OpCreateTable, time.Now(), &err, log.Fields{})

	draft, err := o.tables.ValidateCreate(p)
	if err != nil {
		return domain.Table{}, err
	}

	err = o.store.InTx(ctx, func(tx domain.Tx) error {
		saved, err := tx.InsertTable(ctx, draft)
		if err != nil {
			return fmt.Errorf("insert table: %w", err)
		}
		msg, err := domain.NewTableMessage(domain.EventTableCreated, saved, "", o.now())
		if err != nil {
			return err
		}
		if _, err := tx.Enqueue(ctx, msg); err != nil {
			return fmt.Errorf("enqueue %s: %w", msg.EventType, err)
		}
		o.metrics.RecordOutboxEvent()
		result = saved
		return nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	return result, nil
}

// GetTable возвращает столик.
func (o *Orchestrator) GetTable(ctx context.Context, id string) (domain.Table, error) {
	return o.store.GetTable(ctx, id)
}

// ListTables возвращает столики по имени.
func (o *Orchestrator) ListTables(ctx context.Context) ([]domain.Table, error) {
	return o.store.ListTables(ctx)
}

// SeatTable сажает бронь из запроса за столик.
// Существование столика проверяется раньше тела запроса.
func (o *Orchestrator) SeatTable(ctx context.Context, tableID string, p domain.Payload) (seating.Assignment, error) {
	if _, err := o.store.GetTable(ctx, tableID); err != nil {
		return seating.Assignment{}, err
	}
	reservationID, err := o.tables.ValidateSeat(p)
	if err != nil {
		o.logger.WithError(err).WithField("table_id", tableID).Debug("seat request rejected")
		return seating.Assignment{}, err
	}
	return o.engine.Seat(ctx, tableID, reservationID)
}

// FinishTable освобождает столик и завершает бронь за ним.
func (o *Orchestrator) FinishTable(ctx context.Context, tableID string) (seating.Assignment, error) {
	return o.engine.Finish(ctx, tableID)
}

// releaseIfLeavingSeat освобождает столик, если сидящая бронь переходит в другой статус.
func (o *Orchestrator) releaseIfLeavingSeat(ctx context.Context, tx domain.Tx, current domain.Reservation, next domain.ReservationStatus, table *domain.Table) (string, error) {
	if table == nil || next == domain.ReservationStatusSeated {
		if table != nil {
			return table.ID, nil
		}
		return "", nil
	}
	if _, err := o.engine.Release(ctx, tx, *table); err != nil {
		return "", err
	}
	o.logger.WithFields(log.Fields{
		"reservation_id": current.ID,
		"table_id":       table.ID,
		"from":           current.Status,
		"to":             next,
	}).Info("seated reservation left its table")
	return table.ID, nil
}

func (o *Orchestrator) enqueueReservation(ctx context.Context, tx domain.Tx, eventType string, r domain.Reservation, tableID string) error {
	msg, err := domain.NewReservationMessage(eventType, r, tableID, o.now())
	if err != nil {
		return err
	}
	if _, err := tx.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	o.metrics.RecordOutboxEvent()
	return nil
}

func (o *Orchestrator) observe(operation string, start time.Time, errp *error, fields log.Fields) {
	err := *errp
	o.metrics.RecordOperation(operation, err, time.Since(start))

	entry := o.logger.WithFields(fields).WithField("operation", operation)
	switch kind := domain.KindOf(err); kind {
	case "":
		entry.Debug("operation completed")
	case domain.KindInternal:
		entry.WithError(err).Error("operation failed")
	default:
		entry.WithError(err).WithField("kind", kind).Debug("operation rejected")
	}
}
