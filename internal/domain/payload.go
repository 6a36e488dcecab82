package domain

import (
	"encoding/json"
	"sort"
)

// Payload хранит сырые поля запроса до валидации.
// Числа ожидаются как json.Number (декодирование с UseNumber).
type Payload map[string]any

// Has сообщает, что поле присутствует и не пустое (nil, "" и 0 считаются пустыми).
func (p Payload) Has(field string) bool {
	v, ok := p[field]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case float64:
		return val != 0
	case int:
		return val != 0
	case bool:
		return val
	}
	return true
}

// Present сообщает, что ключ есть в запросе, даже со значением null.
func (p Payload) Present(field string) bool {
	_, ok := p[field]
	return ok
}

// String возвращает строковое значение поля; для нестроковых значений ok=false.
func (p Payload) String(field string) (string, bool) {
	v, ok := p[field].(string)
	return v, ok
}

// Fields возвращает отсортированный список ключей.
func (p Payload) Fields() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
