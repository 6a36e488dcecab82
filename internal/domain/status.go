package domain

// ReservationStatus отражает жизненный цикл брони.
type ReservationStatus string

const (
	// ReservationStatusBooked — бронь создана, гости ещё не рассажены.
	ReservationStatusBooked ReservationStatus = "booked"
	// ReservationStatusSeated — гости сидят за столиком.
	ReservationStatusSeated ReservationStatus = "seated"
	// ReservationStatusFinished — визит завершён, статус терминальный.
	ReservationStatusFinished ReservationStatus = "finished"
	// ReservationStatusCancelled — бронь отменена.
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusBooked, ReservationStatusSeated, ReservationStatusFinished, ReservationStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов по обычному сценарию.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusFinished || s == ReservationStatusCancelled
}

// Trigger обозначает источник перехода статуса.
type Trigger string

const (
	// TriggerSeat — посадка за столик (движок назначения столиков).
	TriggerSeat Trigger = "seat"
	// TriggerFinish — освобождение столика.
	TriggerFinish Trigger = "finish"
	// TriggerCancel — отмена брони гостем или администратором.
	TriggerCancel Trigger = "cancel"
)

// Transition описывает одно разрешённое ребро автомата статусов.
type Transition struct {
	From    ReservationStatus
	To      ReservationStatus
	Trigger Trigger
}

// transitionsTable — единственный источник истины для переходов по обычному сценарию.
var transitionsTable = []Transition{
	{From: ReservationStatusBooked, To: ReservationStatusSeated, Trigger: TriggerSeat},
	{From: ReservationStatusBooked, To: ReservationStatusCancelled, Trigger: TriggerCancel},
	{From: ReservationStatusSeated, To: ReservationStatusFinished, Trigger: TriggerFinish},
	{From: ReservationStatusSeated, To: ReservationStatusCancelled, Trigger: TriggerCancel},
}

// Transitions возвращает копию таблицы переходов.
func Transitions() []Transition {
	result := make([]Transition, len(transitionsTable))
	copy(result, transitionsTable)
	return result
}

// TransitionFor ищет разрешённый переход из статуса по триггеру.
func TransitionFor(from ReservationStatus, trigger Trigger) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Trigger == trigger {
			return tr, true
		}
	}
	return Transition{}, false
}

// Transit проверяет переход по триггеру и возвращает целевой статус.
func Transit(from ReservationStatus, trigger Trigger) (ReservationStatus, error) {
	tr, ok := TransitionFor(from, trigger)
	if !ok {
		if trigger == TriggerSeat {
			// Сообщение повторяет исторический текст ("Reservation status is seated.").
			return from, newRuleError(ErrReservationNotSeatable, "Reservation status is %s.", from)
		}
		return from, newRuleError(ErrTransitionNotAllowed, "Reservation status %s cannot be changed by %s.", from, trigger)
	}
	return tr.To, nil
}

// ValidateStatusUpdate проверяет прямое изменение статуса (обходной путь администратора).
// Завершённую бронь менять нельзя, запрошенный статус должен быть одним из четырёх.
func ValidateStatusUpdate(current, requested ReservationStatus) error {
	if current == ReservationStatusFinished {
		return newRuleError(ErrReservationFinished, "A %s reservation cannot be updated.", current)
	}
	if !requested.Valid() {
		return newRuleError(ErrInvalidStatus, "The reservation status %s is invalid.", requested)
	}
	return nil
}
