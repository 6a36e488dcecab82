package domain

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибку для вызывающей стороны.
type ErrorKind string

const (
	// KindNotFound — запрошенная бронь или столик не существует.
	KindNotFound ErrorKind = "not_found"
	// KindValidation — нет обязательного поля, лишнее поле, неверный тип или формат.
	KindValidation ErrorKind = "validation"
	// KindBusinessRule — нарушено бизнес-правило ресторана или автомата статусов.
	KindBusinessRule ErrorKind = "business_rule"
	// KindInternal — всё остальное (хранилище, брокер и т.п.).
	KindInternal ErrorKind = "internal"
)

var (
	// ErrReservationNotFound возвращается, если брони нет в хранилище.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrTableNotFound возвращается, если столика нет в хранилище.
	ErrTableNotFound = errors.New("table not found")

	// ErrMissingFields — отсутствуют обязательные поля.
	ErrMissingFields = errors.New("missing required fields")
	// ErrUnknownFields — в запросе есть неизвестные поля.
	ErrUnknownFields = errors.New("unknown fields")
	// ErrInvalidInputs — поля с неверным типом или форматом.
	ErrInvalidInputs = errors.New("invalid inputs")

	// ErrClosedDay — ресторан закрыт в этот день недели.
	ErrClosedDay = errors.New("restaurant is closed on that day")
	// ErrPastReservation — дата и время брони не в будущем.
	ErrPastReservation = errors.New("reservation is not in the future")
	// ErrOutsideHours — время вне часов работы.
	ErrOutsideHours = errors.New("reservation time is outside operating hours")
	// ErrStatusNotBooked — новая бронь может создаваться только в статусе booked.
	ErrStatusNotBooked = errors.New("new reservation must be booked")

	// ErrReservationFinished — завершённую бронь нельзя изменять.
	ErrReservationFinished = errors.New("finished reservation cannot be updated")
	// ErrInvalidStatus — неизвестное значение статуса.
	ErrInvalidStatus = errors.New("invalid reservation status")
	// ErrTransitionNotAllowed — переход отсутствует в таблице переходов.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	// ErrReservationNotSeatable — бронь нельзя посадить из текущего статуса.
	ErrReservationNotSeatable = errors.New("reservation cannot be seated")

	// ErrInsufficientCapacity — вместимость столика меньше числа гостей.
	ErrInsufficientCapacity = errors.New("insufficient table capacity")
	// ErrTableOccupied — столик уже занят.
	ErrTableOccupied = errors.New("table is occupied")
	// ErrTableNotOccupied — столик свободен, освобождать нечего.
	ErrTableNotOccupied = errors.New("table is not occupied")

	// ErrLockNotAcquired — не удалось захватить блокировку столика до истечения контекста.
	ErrLockNotAcquired = errors.New("table lock not acquired")
	// ErrOutboxPublish — ошибка при работе с outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

var kindBySentinel = map[error]ErrorKind{
	ErrReservationNotFound:    KindNotFound,
	ErrTableNotFound:          KindNotFound,
	ErrMissingFields:          KindValidation,
	ErrUnknownFields:          KindValidation,
	ErrInvalidInputs:          KindValidation,
	ErrClosedDay:              KindBusinessRule,
	ErrPastReservation:        KindBusinessRule,
	ErrOutsideHours:           KindBusinessRule,
	ErrStatusNotBooked:        KindBusinessRule,
	ErrReservationFinished:    KindBusinessRule,
	ErrInvalidStatus:          KindBusinessRule,
	ErrTransitionNotAllowed:   KindBusinessRule,
	ErrReservationNotSeatable: KindBusinessRule,
	ErrInsufficientCapacity:   KindBusinessRule,
	ErrTableOccupied:          KindBusinessRule,
	ErrTableNotOccupied:       KindBusinessRule,
}

// Error — структурированная ошибка правила с сообщением для пользователя.
type Error struct {
	Kind    ErrorKind
	Rule    error
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Rule
}

// NewError оборачивает sentinel-ошибку правила в *Error с готовым сообщением.
func NewError(rule error, message string, fields ...string) *Error {
	kind, ok := kindBySentinel[rule]
	if !ok {
		kind = KindInternal
	}
	return &Error{Kind: kind, Rule: rule, Message: message, Fields: fields}
}

func newRuleError(rule error, format string, args ...any) *Error {
	return NewError(rule, fmt.Sprintf(format, args...))
}

// ReservationNotFound формирует ошибку 404 с идентификатором брони.
func ReservationNotFound(id string) *Error {
	return newRuleError(ErrReservationNotFound, "Reservation ID %s does not exist.", id)
}

// TableNotFound формирует ошибку 404 с идентификатором столика.
func TableNotFound(id string) *Error {
	return newRuleError(ErrTableNotFound, "Table ID %s does not exist.", id)
}

// KindOf определяет класс ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ruleErr *Error
	if errors.As(err, &ruleErr) {
		return ruleErr.Kind
	}
	for sentinel, kind := range kindBySentinel {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// IsNotFound проверяет, что ошибка означает отсутствие брони или столика.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
