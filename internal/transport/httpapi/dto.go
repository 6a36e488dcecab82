package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	"github.com/vladislavdragonenkov/seating/internal/service/seating"
)

// envelope — обёртка всех успешных ответов и тел запросов.
type envelope struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}

type reservationResponse struct {
	ReservationID   string    `json:"reservation_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	MobileNumber    string    `json:"mobile_number"`
	ReservationDate string    `json:"reservation_date"`
	ReservationTime string    `json:"reservation_time"`
	People          int       `json:"people"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type tableResponse struct {
	TableID       string    `json:"table_id"`
	TableName     string    `json:"table_name"`
	Capacity      int       `json:"capacity"`
	ReservationID *string   `json:"reservation_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type assignmentResponse struct {
	Table       tableResponse       `json:"table"`
	Reservation reservationResponse `json:"reservation"`
}

func toReservationResponse(r domain.Reservation) reservationResponse {
	return reservationResponse{
		ReservationID:   r.ID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		MobileNumber:    r.MobileNumber,
		ReservationDate: r.Date,
		ReservationTime: r.Time,
		People:          r.People,
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toReservationList(items []domain.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(items))
	for _, r := range items {
		out = append(out, toReservationResponse(r))
	}
	return out
}

func toTableResponse(t domain.Table) tableResponse {
	resp := tableResponse{
		TableID:   t.ID,
		TableName: t.Name,
		Capacity:  t.Capacity,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Occupied() {
		id := t.ReservationID
		resp.ReservationID = &id
	}
	return resp
}

func toTableList(items []domain.Table) []tableResponse {
	out := make([]tableResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toTableResponse(t))
	}
	return out
}

func toAssignmentResponse(a seating.Assignment) assignmentResponse {
	return assignmentResponse{
		Table:       toTableResponse(a.Table),
		Reservation: toReservationResponse(a.Reservation),
	}
}
