package validation

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

// Поля столика в запросе.
const (
	FieldTableID   = "table_id"
	FieldTableName = "table_name"
	FieldCapacity  = "capacity"
)

const minTableNameLength = 2

var tableKnown = map[string]struct{}{
	FieldTableID:       {},
	FieldTableName:     {},
	FieldCapacity:      {},
	FieldReservationID: {},
}

// TableValidator проверяет поля нового столика и запроса на посадку.
type TableValidator struct{}

// NewTableValidator создаёт валидатор столиков.
func NewTableValidator() *TableValidator {
	return &TableValidator{}
}

// ValidateCreate проверяет новый столик. Столик всегда создаётся свободным.
func (v *TableValidator) ValidateCreate(p domain.Payload) (domain.Table, error) {
	if err := checkRequired(p, []string{FieldTableName, FieldCapacity}); err != nil {
		return domain.Table{}, err
	}
	if err := checkKnown(p, tableKnown); err != nil {
		return domain.Table{}, err
	}

	var (
		invalid []string
		table   domain.Table
	)
	name, ok := p.String(FieldTableName)
	if ok && utf8.RuneCountInString(name) >= minTableNameLength {
		table.Name = name
	} else {
		invalid = append(invalid, FieldTableName)
	}
	capacity, ok := positiveInt(p[FieldCapacity])
	if ok {
		table.Capacity = capacity
	} else {
		invalid = append(invalid, FieldCapacity)
	}
	if p[FieldReservationID] != nil {
		invalid = append(invalid, FieldReservationID)
	}
	if len(invalid) > 0 {
		return domain.Table{}, invalidInputs(invalid)
	}
	return table, nil
}

// ValidateSeat проверяет тело запроса на посадку и возвращает идентификатор брони.
func (v *TableValidator) ValidateSeat(p domain.Payload) (string, error) {
	if err := checkRequired(p, []string{FieldReservationID}); err != nil {
		return "", err
	}
	if err := checkKnown(p, tableKnown); err != nil {
		return "", err
	}
	switch id := p[FieldReservationID].(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", invalidInputs([]string{FieldReservationID})
	}
}
