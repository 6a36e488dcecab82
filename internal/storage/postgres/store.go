package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const reservationColumns = `
	id::text, first_name, last_name, mobile_number,
	to_char(reservation_date, 'YYYY-MM-DD'), to_char(reservation_time, 'HH24:MI'),
	people, status, created_at, updated_at`

const tableColumns = `
	id::text, table_name, capacity, reservation_id::text, created_at, updated_at`

// Store хранит брони, столики и outbox в PostgreSQL.
type Store struct {
	db     *sql.DB
	outbox *outboxRepository
	now    func() time.Time
	logger *log.Entry
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	s := &Store{
		db:     db,
		now:    time.Now,
		logger: log.WithField("component", "postgres-store"),
	}
	s.outbox = &outboxRepository{db: db, now: s.clock}
	return s
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Outbox возвращает outbox-репозиторий поверх того же подключения.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// GetReservation возвращает бронь по идентификатору.
func (s *Store) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if !validID(id) {
		return domain.Reservation{}, domain.ReservationNotFound(id)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	r, err := scanReservation(s.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ReservationNotFound(id)
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	return r, nil
}

// ListReservations возвращает брони по фильтру.
func (s *Store) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	const order = ` ORDER BY reservation_date, reservation_time, created_at, id`
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case filter.Date != "":
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+reservationColumns+`
			FROM reservations
			WHERE reservation_date = $1 AND status <> 'finished'`+order, filter.Date)
	case filter.MobileNumber != "":
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+reservationColumns+`
			FROM reservations
			WHERE regexp_replace(mobile_number, '[^0-9]', '', 'g') LIKE '%' || $1 || '%'`+order,
			domain.DigitsOnly(filter.MobileNumber))
	default:
		rows, err = s.db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations`+order)
	}
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return result, nil
}

// GetTable возвращает столик по идентификатору.
func (s *Store) GetTable(ctx context.Context, id string) (domain.Table, error) {
	if !validID(id) {
		return domain.Table{}, domain.TableNotFound(id)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	t, err := scanTable(s.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Table{}, domain.TableNotFound(id)
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("select table: %w", err)
	}
	return t, nil
}

// ListTables возвращает столики, упорядоченные по имени.
func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM tables ORDER BY table_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return result, nil
}

// FindTableByReservation возвращает столик, который занимает бронь.
func (s *Store) FindTableByReservation(ctx context.Context, reservationID string) (domain.Table, bool, error) {
	return findTableByReservation(ctx, s.db, reservationID, "")
}

// InTx выполняет fn в транзакции READ COMMITTED. Строки блокируются через SELECT ... FOR UPDATE.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.WithError(rbErr).Warn("rollback failed")
			}
		}
	}()

	if err = fn(&pgTx{tx: sqlTx, now: s.clock}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queryer — общее подмножество *sql.DB и *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// pgTx реализует domain.Tx поверх *sql.Tx.
type pgTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *pgTx) LockTable(ctx context.Context, id string) (domain.Table, error) {
	if !validID(id) {
		return domain.Table{}, domain.TableNotFound(id)
	}
	table, err := scanTable(t.tx.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM tables WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Table{}, domain.TableNotFound(id)
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("lock table %s: %w", id, err)
	}
	return table, nil
}

func (t *pgTx) LockReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if !validID(id) {
		return domain.Reservation{}, domain.ReservationNotFound(id)
	}
	r, err := scanReservation(t.tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ReservationNotFound(id)
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("lock reservation %s: %w", id, err)
	}
	return r, nil
}

func (t *pgTx) FindTableByReservation(ctx context.Context, reservationID string) (domain.Table, bool, error) {
	return findTableByReservation(ctx, t.tx, reservationID, " FOR UPDATE")
}

func (t *pgTx) InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := t.now()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, first_name, last_name, mobile_number, reservation_date, reservation_time,
			people, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		r.ID, r.FirstName, r.LastName, r.MobileNumber, r.Date, r.Time,
		r.People, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("insert reservation: %w", constraintError(err))
	}
	return r, nil
}

func (t *pgTx) UpdateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if !validID(r.ID) {
		return domain.Reservation{}, domain.ReservationNotFound(r.ID)
	}
	r.UpdatedAt = t.now()

	err := t.tx.QueryRowContext(ctx, `
		UPDATE reservations
		SET first_name = $2,
		    last_name = $3,
		    mobile_number = $4,
		    reservation_date = $5,
		    reservation_time = $6,
		    people = $7,
		    status = $8,
		    updated_at = $9
		WHERE id = $1
		RETURNING created_at
	`,
		r.ID, r.FirstName, r.LastName, r.MobileNumber, r.Date, r.Time,
		r.People, string(r.Status), r.UpdatedAt,
	).Scan(&r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ReservationNotFound(r.ID)
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("update reservation: %w", constraintError(err))
	}
	return r, nil
}

func (t *pgTx) DeleteReservation(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ReservationNotFound(id)
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", constraintError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ReservationNotFound(id)
	}
	return nil
}

func (t *pgTx) InsertTable(ctx context.Context, table domain.Table) (domain.Table, error) {
	if table.ID == "" {
		table.ID = uuid.NewString()
	}
	now := t.now()
	table.CreatedAt = now
	table.UpdatedAt = now

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO tables (id, table_name, capacity, reservation_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, table.ID, table.Name, table.Capacity, nullableID(table.ReservationID), table.CreatedAt, table.UpdatedAt)
	if err != nil {
		return domain.Table{}, fmt.Errorf("insert table: %w", constraintError(err))
	}
	return table, nil
}

func (t *pgTx) UpdateTable(ctx context.Context, table domain.Table) (domain.Table, error) {
	if !validID(table.ID) {
		return domain.Table{}, domain.TableNotFound(table.ID)
	}
	table.UpdatedAt = t.now()

	err := t.tx.QueryRowContext(ctx, `
		UPDATE tables
		SET table_name = $2,
		    capacity = $3,
		    reservation_id = $4,
		    updated_at = $5
		WHERE id = $1
		RETURNING created_at
	`, table.ID, table.Name, table.Capacity, nullableID(table.ReservationID), table.UpdatedAt).Scan(&table.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Table{}, domain.TableNotFound(table.ID)
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("update table: %w", constraintError(err))
	}
	return table, nil
}

func (t *pgTx) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return enqueueOutbox(ctx, t.tx, msg, t.now())
}

func findTableByReservation(ctx context.Context, q queryer, reservationID, suffix string) (domain.Table, bool, error) {
	if !validID(reservationID) {
		return domain.Table{}, false, nil
	}
	table, err := scanTable(q.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM tables WHERE reservation_id = $1`+suffix, reservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Table{}, false, nil
	}
	if err != nil {
		return domain.Table{}, false, fmt.Errorf("find table by reservation %s: %w", reservationID, err)
	}
	return table, true, nil
}

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var (
		r      domain.Reservation
		status string
	)
	if err := row.Scan(
		&r.ID, &r.FirstName, &r.LastName, &r.MobileNumber,
		&r.Date, &r.Time, &r.People, &status, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return domain.Reservation{}, err
	}
	r.Status = domain.ReservationStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func scanTable(row rowScanner) (domain.Table, error) {
	var (
		t             domain.Table
		reservationID sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Capacity, &reservationID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Table{}, err
	}
	t.ReservationID = reservationID.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// validID отсекает строки, которые не могут быть UUID: для них запись заведомо не существует.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// constraintError делает нарушения ограничений схемы читаемыми в логах.
func constraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("unique constraint %s violated: %w", pgErr.ConstraintName, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("foreign key %s violated: %w", pgErr.ConstraintName, err)
	case pgCheckViolation:
		return fmt.Errorf("check constraint %s violated: %w", pgErr.ConstraintName, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*pgTx)(nil)
)
