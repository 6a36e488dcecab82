package seating

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	"github.com/vladislavdragonenkov/seating/internal/metrics"
)

const maxReservationLockAttempts = 3

var errOccupancyChanged = errors.New("table occupancy changed while locking")

// Assignment содержит столик и бронь после посадки или освобождения.
type Assignment struct {
	Table       domain.Table
	Reservation domain.Reservation
}

// Engine — единственный компонент, который связывает и развязывает столик и бронь.
//
// Seat и Finish сериализуются по столику: сначала Locker по ключу table:<id>,
// затем транзакция хранилища, в которой строка столика блокируется раньше брони.
// Запись брони выполняется до записи столика, обе в одной транзакции:
// ошибка любой из записей откатывает обе.
type Engine struct {
	store   domain.Store
	locker  domain.Locker
	metrics *metrics.SeatingMetrics
	logger  *log.Entry
	now     func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLocker задаёт блокировщик столиков (например, распределённый на Redis).
func WithLocker(locker domain.Locker) Option {
	return func(e *Engine) {
		if locker != nil {
			e.locker = locker
		}
	}
}

// WithMetrics включает метрики.
func WithMetrics(m *metrics.SeatingMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock задаёт источник времени для updated_at и событий.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine создаёт движок назначения столиков.
func NewEngine(store domain.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		locker: NewLocalLocker(),
		logger: log.WithField("component", "seating-engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TableLockKey возвращает ключ блокировки столика.
func TableLockKey(tableID string) string {
	return "table:" + tableID
}

// Seat сажает бронь за свободный столик.
// Проверки по порядку: столик существует, бронь существует, вместимость, столик свободен,
// статус брони допускает посадку.
func (e *Engine) Seat(ctx context.Context, tableID, reservationID string) (Assignment, error) {
	start := time.Now()
	result, err := e.seat(ctx, tableID, reservationID)
	e.metrics.RecordOperation(domain.OpSeat, err, time.Since(start))
	e.logResult(domain.OpSeat, err, log.Fields{"table_id": tableID, "reservation_id": reservationID})
	return result, err
}

func (e *Engine) seat(ctx context.Context, tableID, reservationID string) (Assignment, error) {
	unlock, err := e.lockTable(ctx, tableID)
	if err != nil {
		return Assignment{}, err
	}
	defer unlock()

	var result Assignment
	err = e.store.InTx(ctx, func(tx domain.Tx) error {
		table, err := tx.LockTable(ctx, tableID)
		if err != nil {
			return err
		}
		reservation, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}

		if !table.Fits(reservation.People) {
			return domain.NewError(domain.ErrInsufficientCapacity, "Table does not have sufficient capacity.")
		}
		if table.Occupied() {
			return domain.NewError(domain.ErrTableOccupied, "Table is occupied.")
		}
		next, err := domain.Transit(reservation.Status, domain.TriggerSeat)
		if err != nil {
			return err
		}

		now := e.now()
		reservation.Status = next
		reservation.UpdatedAt = now
		if reservation, err = tx.UpdateReservation(ctx, reservation); err != nil {
			return fmt.Errorf("seat reservation %s: %w", reservationID, err)
		}
		table.ReservationID = reservation.ID
		table.UpdatedAt = now
		if table, err = tx.UpdateTable(ctx, table); err != nil {
			return fmt.Errorf("occupy table %s: %w", tableID, err)
		}

		if err := e.enqueuePair(ctx, tx, domain.EventTableSeated, table, reservation, now); err != nil {
			return err
		}
		result = Assignment{Table: table, Reservation: reservation}
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return result, nil
}

// Finish освобождает занятый столик и завершает бронь, которая за ним сидит.
func (e *Engine) Finish(ctx context.Context, tableID string) (Assignment, error) {
	start := time.Now()
	result, err := e.finish(ctx, tableID)
	e.metrics.RecordOperation(domain.OpFinish, err, time.Since(start))
	fields := log.Fields{"table_id": tableID}
	if err == nil {
		fields["reservation_id"] = result.Reservation.ID
	}
	e.logResult(domain.OpFinish, err, fields)
	return result, err
}

func (e *Engine) finish(ctx context.Context, tableID string) (Assignment, error) {
	unlock, err := e.lockTable(ctx, tableID)
	if err != nil {
		return Assignment{}, err
	}
	defer unlock()

	var result Assignment
	err = e.store.InTx(ctx, func(tx domain.Tx) error {
		table, err := tx.LockTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !table.Occupied() {
			return domain.NewError(domain.ErrTableNotOccupied, "Table is not occupied.")
		}
		reservation, err := tx.LockReservation(ctx, table.ReservationID)
		if err != nil {
			return err
		}
		next, err := domain.Transit(reservation.Status, domain.TriggerFinish)
		if err != nil {
			return err
		}

		now := e.now()
		reservation.Status = next
		reservation.UpdatedAt = now
		if reservation, err = tx.UpdateReservation(ctx, reservation); err != nil {
			return fmt.Errorf("finish reservation %s: %w", table.ReservationID, err)
		}
		table.ReservationID = ""
		table.UpdatedAt = now
		if table, err = tx.UpdateTable(ctx, table); err != nil {
			return fmt.Errorf("free table %s: %w", tableID, err)
		}

		if err := e.enqueuePair(ctx, tx, domain.EventTableFinished, table, reservation, now); err != nil {
			return err
		}
		result = Assignment{Table: table, Reservation: reservation}
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return result, nil
}

// ReservationFunc изменяет бронь внутри транзакции. table != nil, если бронь сейчас занимает столик;
// этот столик уже заблокирован.
type ReservationFunc func(tx domain.Tx, reservation domain.Reservation, table *domain.Table) error

// WithReservation блокирует бронь и столик, который она занимает, и выполняет fn в транзакции.
// Порядок блокировок тот же, что у Seat и Finish: столик, затем бронь.
func (e *Engine) WithReservation(ctx context.Context, reservationID string, fn ReservationFunc) error {
	var lastErr error
	for attempt := 0; attempt < maxReservationLockAttempts; attempt++ {
		err := e.withReservation(ctx, reservationID, fn)
		if !errors.Is(err, errOccupancyChanged) {
			return err
		}
		lastErr = err
		e.logger.WithField("reservation_id", reservationID).WithField("attempt", attempt+1).
			Debug("table occupancy changed, retrying reservation lock")
	}
	return lastErr
}

func (e *Engine) withReservation(ctx context.Context, reservationID string, fn ReservationFunc) error {
	guess, occupied, err := e.store.FindTableByReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("find table of reservation %s: %w", reservationID, err)
	}
	if occupied {
		unlock, err := e.lockTable(ctx, guess.ID)
		if err != nil {
			return err
		}
		defer unlock()
	}

	return e.store.InTx(ctx, func(tx domain.Tx) error {
		var table *domain.Table
		if occupied {
			locked, err := tx.LockTable(ctx, guess.ID)
			if err != nil {
				return err
			}
			table = &locked
		}
		reservation, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}

		current, ok, err := tx.FindTableByReservation(ctx, reservationID)
		if err != nil {
			return fmt.Errorf("find table of reservation %s: %w", reservationID, err)
		}
		if ok != occupied || (ok && current.ID != guess.ID) || (table != nil && table.ReservationID != reservationID) {
			return errOccupancyChanged
		}
		return fn(tx, reservation, table)
	})
}

// Release освобождает столик внутри транзакции WithReservation (отмена или удаление сидящей брони).
func (e *Engine) Release(ctx context.Context, tx domain.Tx, table domain.Table) (domain.Table, error) {
	if !table.Occupied() {
		return table, domain.NewError(domain.ErrTableNotOccupied, "Table is not occupied.")
	}
	reservationID := table.ReservationID
	now := e.now()
	table.ReservationID = ""
	table.UpdatedAt = now
	updated, err := tx.UpdateTable(ctx, table)
	if err != nil {
		return table, fmt.Errorf("release table %s: %w", table.ID, err)
	}
	if err := e.enqueue(ctx, tx, func() (domain.OutboxMessage, error) {
		return domain.NewTableMessage(domain.EventTableReleased, updated, reservationID, now)
	}); err != nil {
		return table, err
	}
	e.logger.WithFields(log.Fields{"table_id": table.ID, "reservation_id": reservationID}).Info("table released")
	return updated, nil
}

func (e *Engine) lockTable(ctx context.Context, tableID string) (func(), error) {
	start := time.Now()
	unlock, err := e.locker.Lock(ctx, TableLockKey(tableID))
	e.metrics.RecordLockWait(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("lock table %s: %w", tableID, err)
	}
	return unlock, nil
}

func (e *Engine) enqueuePair(ctx context.Context, tx domain.Tx, tableEvent string, table domain.Table, reservation domain.Reservation, at time.Time) error {
	if err := e.enqueue(ctx, tx, func() (domain.OutboxMessage, error) {
		return domain.NewTableMessage(tableEvent, table, reservation.ID, at)
	}); err != nil {
		return err
	}
	return e.enqueue(ctx, tx, func() (domain.OutboxMessage, error) {
		return domain.NewReservationMessage(domain.EventReservationStatusChanged, reservation, table.ID, at)
	})
}

func (e *Engine) enqueue(ctx context.Context, tx domain.Tx, build func() (domain.OutboxMessage, error)) error {
	msg, err := build()
	if err != nil {
		return err
	}
	if _, err := tx.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.EventType, err)
	}
	e.metrics.RecordOutboxEvent()
	return nil
}

func (e *Engine) logResult(operation string, err error, fields log.Fields) {
	entry := e.logger.WithFields(fields).WithField("operation", operation)
	switch kind := domain.KindOf(err); kind {
	case "":
		entry.Info("table assignment updated")
	case domain.KindInternal:
		entry.WithError(err).Error("table assignment failed")
	default:
		entry.WithError(err).WithField("kind", kind).Debug("table assignment rejected")
	}
}
