package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule задаёт часы работы ресторана и часовой пояс, в котором проверяются даты.
type Schedule struct {
	Location    *time.Location
	ClosedDay   time.Weekday
	OpensAt     string
	LastSeating string
}

// DefaultLocation — фиксированный пояс ресторана (EST, UTC-5, без перехода на летнее время).
var DefaultLocation = time.FixedZone("EST", -5*60*60)

// DefaultSchedule возвращает расписание по умолчанию: выходной во вторник, посадка 10:30–21:30.
func DefaultSchedule() Schedule {
	return Schedule{
		Location:    DefaultLocation,
		ClosedDay:   time.Tuesday,
		OpensAt:     "10:30",
		LastSeating: "21:30",
	}
}

// Validate проверяет, что часы работы заданы в формате HH:MM и не перевёрнуты.
func (s Schedule) Validate() error {
	if s.Location == nil {
		return fmt.Errorf("schedule location is required")
	}
	open, ok := clockValue(s.OpensAt)
	if !ok {
		return fmt.Errorf("invalid opening time %q", s.OpensAt)
	}
	last, ok := clockValue(s.LastSeating)
	if !ok {
		return fmt.Errorf("invalid last seating time %q", s.LastSeating)
	}
	if open > last {
		return fmt.Errorf("opening time %s is after last seating %s", s.OpensAt, s.LastSeating)
	}
	return nil
}

// ParseWeekday разбирает название дня недели на английском ("tuesday", "Tue").
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || (len(v) == 3 && strings.HasPrefix(name, v)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", value)
}

// clockValue переводит "HH:MM" в целое HHMM.
func clockValue(value string) (int, bool) {
	if !timePattern.MatchString(value) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.Replace(value, ":", "", 1))
	if err != nil {
		return 0, false
	}
	return n, true
}
