package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

// Поля брони в запросе.
const (
	FieldReservationID   = "reservation_id"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldMobileNumber    = "mobile_number"
	FieldReservationDate = "reservation_date"
	FieldReservationTime = "reservation_time"
	FieldPeople          = "people"
	FieldStatus          = "status"
	FieldCreatedAt       = "created_at"
	FieldUpdatedAt       = "updated_at"
)

var reservationRequired = []string{
	FieldFirstName,
	FieldLastName,
	FieldMobileNumber,
	FieldReservationDate,
	FieldReservationTime,
	FieldPeople,
}

var reservationKnown = map[string]struct{}{
	FieldReservationID:   {},
	FieldFirstName:       {},
	FieldLastName:        {},
	FieldMobileNumber:    {},
	FieldReservationDate: {},
	FieldReservationTime: {},
	FieldPeople:          {},
	FieldStatus:          {},
	FieldCreatedAt:       {},
	FieldUpdatedAt:       {},
}

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// reservationDraft передаётся от правила к правилу и не изменяется на месте.
type reservationDraft struct {
	payload     domain.Payload
	reservation domain.Reservation
	startsAt    time.Time
}

type reservationRule func(d reservationDraft) (reservationDraft, error)

// ReservationValidator проверяет поля брони и правила ресторана. Состояния не хранит.
type ReservationValidator struct {
	schedule Schedule
	now      func() time.Time
}

// NewReservationValidator создаёт валидатор; now=nil означает time.Now.
func NewReservationValidator(schedule Schedule, now func() time.Time) *ReservationValidator {
	if schedule.Location == nil {
		schedule.Location = DefaultLocation
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationValidator{schedule: schedule, now: now}
}

// Schedule возвращает расписание, с которым работает валидатор.
func (v *ReservationValidator) Schedule() Schedule {
	return v.schedule
}

// ValidateCreate проверяет новую бронь и возвращает её в статусе booked.
func (v *ReservationValidator) ValidateCreate(p domain.Payload) (domain.Reservation, error) {
	d, err := v.run(p, append(v.commonRules(), v.statusOnCreate))
	if err != nil {
		return domain.Reservation{}, err
	}
	r := d.reservation
	r.Status = domain.ReservationStatusBooked
	return r, nil
}

// ValidateUpdate проверяет полное редактирование брони.
// Статус из запроса возвращается как есть: его проверка относится к автомату статусов.
func (v *ReservationValidator) ValidateUpdate(p domain.Payload) (domain.Reservation, error) {
	d, err := v.run(p, v.commonRules())
	if err != nil {
		return domain.Reservation{}, err
	}
	return d.reservation, nil
}

func (v *ReservationValidator) commonRules() []reservationRule {
	return []reservationRule{
		requireFields(reservationRequired),
		onlyKnownFields(reservationKnown),
		v.parseInputs,
		v.notOnClosedDay,
		v.inTheFuture,
		v.withinHours,
	}
}

func (v *ReservationValidator) run(p domain.Payload, rules []reservationRule) (reservationDraft, error) {
	d := reservationDraft{payload: p}
	for _, rule := range rules {
		next, err := rule(d)
		if err != nil {
			return reservationDraft{}, err
		}
		d = next
	}
	return d, nil
}

func requireFields(fields []string) reservationRule {
	return func(d reservationDraft) (reservationDraft, error) {
		if err := checkRequired(d.payload, fields); err != nil {
			return d, err
		}
		return d, nil
	}
}

func onlyKnownFields(known map[string]struct{}) reservationRule {
	return func(d reservationDraft) (reservationDraft, error) {
		if err := checkKnown(d.payload, known); err != nil {
			return d, err
		}
		return d, nil
	}
}

// parseInputs проверяет типы и форматы всех полей сразу и собирает одну ошибку.
func (v *ReservationValidator) parseInputs(d reservationDraft) (reservationDraft, error) {
	var (
		invalid []string
		r       domain.Reservation
	)

	people, ok := positiveInt(d.payload[FieldPeople])
	if ok {
		r.People = people
	} else {
		invalid = append(invalid, FieldPeople)
	}

	date, ok := parseDate(d.payload[FieldReservationDate], v.schedule.Location)
	if ok {
		r.Date = date
	} else {
		invalid = append(invalid, FieldReservationDate)
	}

	clock, ok := d.payload.String(FieldReservationTime)
	if ok && timePattern.MatchString(clock) {
		r.Time = clock
	} else {
		invalid = append(invalid, FieldReservationTime)
	}

	for _, field := range []string{FieldFirstName, FieldLastName, FieldMobileNumber} {
		value, ok := d.payload.String(field)
		if !ok || strings.TrimSpace(value) == "" {
			invalid = append(invalid, field)
			continue
		}
		switch field {
		case FieldFirstName:
			r.FirstName = value
		case FieldLastName:
			r.LastName = value
		case FieldMobileNumber:
			r.MobileNumber = value
		}
	}

	if raw, present := d.payload[FieldStatus]; present && raw != nil {
		status, ok := raw.(string)
		if !ok {
			invalid = append(invalid, FieldStatus)
		} else {
			r.Status = domain.ReservationStatus(status)
		}
	}

	if len(invalid) > 0 {
		return d, invalidInputs(invalid)
	}

	startsAt, err := r.StartsAt(v.schedule.Location)
	if err != nil {
		return d, invalidInputs([]string{FieldReservationDate, FieldReservationTime})
	}

	d.reservation = r
	d.startsAt = startsAt
	return d, nil
}

func (v *ReservationValidator) notOnClosedDay(d reservationDraft) (reservationDraft, error) {
	if d.startsAt.Weekday() == v.schedule.ClosedDay {
		return d, domain.NewError(domain.ErrClosedDay,
			fmt.Sprintf("The restaurant is closed on %ss.", v.schedule.ClosedDay), FieldReservationDate)
	}
	return d, nil
}

func (v *ReservationValidator) inTheFuture(d reservationDraft) (reservationDraft, error) {
	if !d.startsAt.After(v.now()) {
		return d, domain.NewError(domain.ErrPastReservation,
			"Please enter future reservation date.", FieldReservationDate, FieldReservationTime)
	}
	return d, nil
}

func (v *ReservationValidator) withinHours(d reservationDraft) (reservationDraft, error) {
	value, _ := clockValue(d.reservation.Time)
	open, _ := clockValue(v.schedule.OpensAt)
	last, _ := clockValue(v.schedule.LastSeating)
	if value < open || value > last {
		return d, domain.NewError(domain.ErrOutsideHours,
			fmt.Sprintf("Please enter a time between %s to %s.", v.schedule.OpensAt, v.schedule.LastSeating),
			FieldReservationTime)
	}
	return d, nil
}

// statusOnCreate допускает при создании только booked или отсутствие статуса.
func (v *ReservationValidator) statusOnCreate(d reservationDraft) (reservationDraft, error) {
	if !d.payload.Has(FieldStatus) {
		return d, nil
	}
	if d.reservation.Status == domain.ReservationStatusBooked {
		return d, nil
	}
	return d, domain.NewError(domain.ErrStatusNotBooked,
		fmt.Sprintf("The reservation status is %v.", d.payload[FieldStatus]), FieldStatus)
}

func checkRequired(p domain.Payload, fields []string) error {
	var missing []string
	for _, field := range fields {
		if !p.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return domain.NewError(domain.ErrMissingFields,
		"Missing required field(s): "+strings.Join(missing, ", "), missing...)
}

func checkKnown(p domain.Payload, known map[string]struct{}) error {
	var unknown []string
	for _, field := range p.Fields() {
		if _, ok := known[field]; !ok {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return domain.NewError(domain.ErrUnknownFields,
		"Invalid field(s): "+strings.Join(unknown, ", "), unknown...)
}

func invalidInputs(fields []string) error {
	return domain.NewError(domain.ErrInvalidInputs,
		"Invalid input(s): "+strings.Join(fields, " "), fields...)
}

// positiveInt принимает целочисленное значение больше нуля (json.Number, float64 или int).
func positiveInt(raw any) (int, bool) {
	var f float64
	switch v := raw.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// parseDate принимает YYYY-MM-DD или RFC3339 и возвращает календарную дату.
// Момент из RFC3339 переводится в пояс ресторана, смещение клиента на дату не влияет.
func parseDate(raw any, loc *time.Location) (string, bool) {
	value, ok := raw.(string)
	if !ok {
		return "", false
	}
	if t, err := time.Parse(domain.DateLayout, value); err == nil {
		return t.Format(domain.DateLayout), true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc).Format(domain.DateLayout), true
	}
	return "", false
}

// ValidateFilter проверяет параметры выборки броней: дата должна быть в формате YYYY-MM-DD.
func ValidateFilter(filter domain.ReservationFilter) (domain.ReservationFilter, error) {
	if filter.Date == "" {
		return filter, nil
	}
	if _, err := time.Parse(domain.DateLayout, filter.Date); err != nil {
		return filter, invalidInputs([]string{"date"})
	}
	return filter, nil
}
