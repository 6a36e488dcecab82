package domain

import "context"

// ReservationReader описывает чтение броней из хранилища.
type ReservationReader interface {
	// GetReservation возвращает бронь или ErrReservationNotFound.
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// ListReservations возвращает брони по фильтру:
	// по дате (без finished, по времени), по фрагменту телефона или все (по дате и времени).
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// TableReader описывает чтение столиков из хранилища.
type TableReader interface {
	// GetTable возвращает столик или ErrTableNotFound.
	GetTable(ctx context.Context, id string) (Table, error)
	// ListTables возвращает столики, упорядоченные по имени.
	ListTables(ctx context.Context) ([]Table, error)
	// FindTableByReservation возвращает столик, занятый бронью; ok=false, если такого нет.
	FindTableByReservation(ctx context.Context, reservationID string) (Table, bool, error)
}

// Store — хранилище броней и столиков с транзакциями.
type Store interface {
	ReservationReader
	TableReader
	// InTx выполняет fn в транзакции: при ошибке fn все записи откатываются.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// Outbox возвращает репозиторий outbox для фонового воркера.
	Outbox() OutboxRepository
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы хранилища.
	Close() error
}

// Tx объединяет операции внутри одной транзакции хранилища.
// Lock-методы читают запись с блокировкой до конца транзакции.
type Tx interface {
	LockTable(ctx context.Context, id string) (Table, error)
	LockReservation(ctx context.Context, id string) (Reservation, error)
	// FindTableByReservation возвращает столик, занятый бронью; ok=false, если такого нет.
	FindTableByReservation(ctx context.Context, reservationID string) (Table, bool, error)

	// InsertReservation присваивает ID и временные метки и сохраняет бронь.
	InsertReservation(ctx context.Context, r Reservation) (Reservation, error)
	UpdateReservation(ctx context.Context, r Reservation) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error

	InsertTable(ctx context.Context, t Table) (Table, error)
	UpdateTable(ctx context.Context, t Table) (Table, error)

	// Enqueue сохраняет событие outbox в той же транзакции.
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}
