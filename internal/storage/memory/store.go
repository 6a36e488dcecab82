package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

// Store — in-memory хранилище броней и столиков для локальной разработки и тестов.
//
// Транзакция держит эксклюзивную блокировку всего хранилища, изменения копятся
// в транзакции и применяются только при успешном завершении fn.
// Ограничения совпадают со схемой PostgreSQL: столик может ссылаться только на
// существующую бронь, одна бронь занимает не больше одного столика.
type Store struct {
	mu           sync.RWMutex
	reservations map[string]domain.Reservation
	tables       map[string]domain.Table
	outbox       *outboxRepositoryInMemory
	now          func() time.Time
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock создаёт хранилище с заданным источником времени для created_at/updated_at.
func NewStoreWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		reservations: make(map[string]domain.Reservation),
		tables:       make(map[string]domain.Table),
		outbox:       newOutboxRepository(now),
		now:          now,
	}
}

// GetReservation возвращает бронь по идентификатору.
func (s *Store) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ReservationNotFound(id)
	}
	return r, nil
}

// ListReservations возвращает брони по фильтру.
func (s *Store) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		switch {
		case filter.Date != "":
			if r.Date != filter.Date || r.Status == domain.ReservationStatusFinished {
				continue
			}
		case filter.MobileNumber != "":
			if !r.MatchesPhone(filter.MobileNumber) {
				continue
			}
		}
		result = append(result, r)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetTable возвращает столик по идентификатору.
func (s *Store) GetTable(ctx context.Context, id string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[id]
	if !ok {
		return domain.Table{}, domain.TableNotFound(id)
	}
	return t, nil
}

// ListTables возвращает столики, упорядоченные по имени.
func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Table, 0, len(s.tables))
	for _, t := range s.tables {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// FindTableByReservation возвращает столик, который занимает бронь.
func (s *Store) FindTableByReservation(ctx context.Context, reservationID string) (domain.Table, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tables {
		if t.ReservationID == reservationID {
			return t, true, nil
		}
	}
	return domain.Table{}, false, nil
}

// InTx выполняет fn в транзакции. При ошибке fn изменения отбрасываются.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:        s,
		reservations: make(map[string]*domain.Reservation),
		tables:       make(map[string]domain.Table),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.checkConstraints(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Outbox возвращает outbox-репозиторий хранилища.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// PendingEvents возвращает неопубликованные события (используется в тестах).
func (s *Store) PendingEvents() []domain.OutboxMessage {
	return s.outbox.AllPending()
}

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close ничего не освобождает.
func (s *Store) Close() error {
	return nil
}

// memTx копит изменения поверх данных хранилища; nil в reservations означает удаление.
type memTx struct {
	store        *Store
	reservations map[string]*domain.Reservation
	tables       map[string]domain.Table
	outbox       []domain.OutboxMessage
}

func (tx *memTx) reservation(id string) (domain.Reservation, bool) {
	if staged, ok := tx.reservations[id]; ok {
		if staged == nil {
			return domain.Reservation{}, false
		}
		return *staged, true
	}
	r, ok := tx.store.reservations[id]
	return r, ok
}

func (tx *memTx) table(id string) (domain.Table, bool) {
	if staged, ok := tx.tables[id]; ok {
		return staged, true
	}
	t, ok := tx.store.tables[id]
	return t, ok
}

// allTables возвращает состояние столиков с учётом изменений транзакции.
func (tx *memTx) allTables() map[string]domain.Table {
	result := make(map[string]domain.Table, len(tx.store.tables)+len(tx.tables))
	for id, t := range tx.store.tables {
		result[id] = t
	}
	for id, t := range tx.tables {
		result[id] = t
	}
	return result
}

func (tx *memTx) LockTable(ctx context.Context, id string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}
	t, ok := tx.table(id)
	if !ok {
		return domain.Table{}, domain.TableNotFound(id)
	}
	return t, nil
}

func (tx *memTx) LockReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	r, ok := tx.reservation(id)
	if !ok {
		return domain.Reservation{}, domain.ReservationNotFound(id)
	}
	return r, nil
}

func (tx *memTx) FindTableByReservation(ctx context.Context, reservationID string) (domain.Table, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, false, err
	}
	for _, t := range tx.allTables() {
		if t.ReservationID == reservationID {
			return t, true, nil
		}
	}
	return domain.Table{}, false, nil
}

func (tx *memTx) InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := tx.reservation(r.ID); exists {
		return domain.Reservation{}, fmt.Errorf("reservation %s already exists", r.ID)
	}
	now := tx.store.now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	tx.reservations[r.ID] = &r
	return r, nil
}

func (tx *memTx) UpdateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	current, ok := tx.reservation(r.ID)
	if !ok {
		return domain.Reservation{}, domain.ReservationNotFound(r.ID)
	}
	r.CreatedAt = current.CreatedAt
	r.UpdatedAt = tx.store.now().UTC()
	tx.reservations[r.ID] = &r
	return r, nil
}

func (tx *memTx) DeleteReservation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.reservation(id); !ok {
		return domain.ReservationNotFound(id)
	}
	tx.reservations[id] = nil
	return nil
}

func (tx *memTx) InsertTable(ctx context.Context, t domain.Table) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := tx.table(t.ID); exists {
		return domain.Table{}, fmt.Errorf("table %s already exists", t.ID)
	}
	now := tx.store.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	tx.tables[t.ID] = t
	return t, nil
}

func (tx *memTx) UpdateTable(ctx context.Context, t domain.Table) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}
	current, ok := tx.table(t.ID)
	if !ok {
		return domain.Table{}, domain.TableNotFound(t.ID)
	}
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = tx.store.now().UTC()
	tx.tables[t.ID] = t
	return t, nil
}

func (tx *memTx) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	tx.outbox = append(tx.outbox, msg)
	return msg, nil
}

// checkConstraints повторяет внешний ключ и уникальный индекс tables.reservation_id.
func (tx *memTx) checkConstraints() error {
	occupants := make(map[string]string)
	for id, t := range tx.allTables() {
		if !t.Occupied() {
			continue
		}
		if _, ok := tx.reservation(t.ReservationID); !ok {
			return fmt.Errorf("table %s references missing reservation %s", id, t.ReservationID)
		}
		if other, dup := occupants[t.ReservationID]; dup {
			return fmt.Errorf("reservation %s occupies tables %s and %s", t.ReservationID, other, id)
		}
		occupants[t.ReservationID] = id
	}
	return nil
}

func (tx *memTx) commit() {
	s := tx.store
	for id, r := range tx.reservations {
		if r == nil {
			delete(s.reservations, id)
			continue
		}
		s.reservations[id] = *r
	}
	for id, t := range tx.tables {
		s.tables[id] = t
	}
	for _, msg := range tx.outbox {
		s.outbox.enqueue(msg)
	}
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*memTx)(nil)
)
