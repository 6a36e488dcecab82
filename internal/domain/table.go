package domain

import "time"

// Table описывает столик в зале.
type Table struct {
	ID       string
	Name     string
	Capacity int
	// ReservationID — бронь, которая сейчас занимает столик; пустая строка означает свободный столик.
	ReservationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Occupied сообщает, занят ли столик.
func (t Table) Occupied() bool {
	return t.ReservationID != ""
}

// Fits проверяет, помещается ли компания за столик.
func (t Table) Fits(people int) bool {
	return t.Capacity >= people
}
