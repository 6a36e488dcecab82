package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	"github.com/vladislavdragonenkov/seating/internal/service/seating"
	"github.com/vladislavdragonenkov/seating/internal/service/validation"
)

const maxBodyBytes = 1 << 20

// Service описывает операции, которые обслуживает REST API.
type Service interface {
	CreateReservation(ctx context.Context, p domain.Payload) (domain.Reservation, error)
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
	UpdateReservation(ctx context.Context, id string, p domain.Payload) (domain.Reservation, error)
	UpdateStatus(ctx context.Context, id string, requested domain.ReservationStatus) (domain.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error

	CreateTable(ctx context.Context, p domain.Payload) (domain.Table, error)
	GetTable(ctx context.Context, id string) (domain.Table, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	SeatTable(ctx context.Context, tableID string, p domain.Payload) (seating.Assignment, error)
	FinishTable(ctx context.Context, tableID string) (seating.Assignment, error)
}

// Handler содержит HTTP-обработчики REST API.
type Handler struct {
	svc Service
}

// NewHandler создаёт обработчики поверх сервиса.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) listReservations(c echo.Context) error {
	filter := domain.ReservationFilter{
		Date:         c.QueryParam("date"),
		MobileNumber: c.QueryParam("mobile_number"),
	}
	items, err := h.svc.ListReservations(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toReservationList(items)})
}

func (h *Handler) createReservation(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	r, err := h.svc.CreateReservation(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{Data: toReservationResponse(r)})
}

func (h *Handler) getReservation(c echo.Context) error {
	r, err := h.svc.GetReservation(c.Request().Context(), c.Param("reservation_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toReservationResponse(r)})
}

func (h *Handler) updateReservation(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	r, err := h.svc.UpdateReservation(c.Request().Context(), c.Param("reservation_id"), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toReservationResponse(r)})
}

func (h *Handler) updateStatus(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("reservation_id"), requestedStatus(payload))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toReservationResponse(r)})
}

func (h *Handler) deleteReservation(c echo.Context) error {
	if err := h.svc.DeleteReservation(c.Request().Context(), c.Param("reservation_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listTables(c echo.Context) error {
	items, err := h.svc.ListTables(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toTableList(items)})
}

func (h *Handler) createTable(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	t, err := h.svc.CreateTable(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{Data: toTableResponse(t)})
}

func (h *Handler) getTable(c echo.Context) error {
	t, err := h.svc.GetTable(c.Request().Context(), c.Param("table_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toTableResponse(t)})
}

func (h *Handler) seatTable(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	a, err := h.svc.SeatTable(c.Request().Context(), c.Param("table_id"), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: toAssignmentResponse(a)})
}

func (h *Handler) finishTable(c echo.Context) error {
	if _, err := h.svc.FinishTable(c.Request().Context(), c.Param("table_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// readPayload достаёт поле data из тела запроса. Пустое тело и отсутствующий data дают пустой Payload,
// чтобы отсутствующие поля сообщались правилами валидации.
func readPayload(c echo.Context) (domain.Payload, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.Payload{}, nil
	}

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errInvalidBody
	}
	if len(body.Data) == 0 || bytes.Equal(bytes.TrimSpace(body.Data), []byte("null")) {
		return domain.Payload{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body.Data))
	dec.UseNumber()
	var payload domain.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, errInvalidBody
	}
	if payload == nil {
		payload = domain.Payload{}
	}
	return payload, nil
}

// requestedStatus приводит data.status к строке; отсутствие поля даёт пустой статус,
// который автомат отклонит как неизвестный.
func requestedStatus(p domain.Payload) domain.ReservationStatus {
	switch v := p[validation.FieldStatus].(type) {
	case nil:
		return ""
	case string:
		return domain.ReservationStatus(v)
	default:
		return domain.ReservationStatus(fmt.Sprint(v))
	}
}
