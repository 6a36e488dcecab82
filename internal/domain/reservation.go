package domain

import (
	"strings"
	"time"
)

const (
	// DateLayout задаёт формат даты бронирования (календарная дата без времени).
	DateLayout = "2006-01-02"
	// TimeLayout задаёт формат времени бронирования с точностью до минуты.
	TimeLayout = "15:04"
)

// Reservation описывает бронь столика гостем ресторана.
type Reservation struct {
	ID           string
	FirstName    string
	LastName     string
	MobileNumber string
	// Date хранится в формате DateLayout.
	Date string
	// Time хранится в формате TimeLayout.
	Time      string
	People    int
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartsAt возвращает момент начала брони в часовом поясе ресторана.
func (r Reservation) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+r.Time, loc)
}

// ReservationFilter задаёт выборку броней: по дате, по фрагменту телефона или без фильтра.
type ReservationFilter struct {
	Date         string
	MobileNumber string
}

// DigitsOnly оставляет в строке только цифры; используется для поиска по телефону.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchesPhone сравнивает номер с фрагментом по цифрам (подстрока).
func (r Reservation) MatchesPhone(fragment string) bool {
	return strings.Contains(DigitsOnly(r.MobileNumber), DigitsOnly(fragment))
}
