package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

const (
	msgInternal    = "Internal server error."
	msgTableBusy   = "The table is busy, please retry."
	msgInvalidBody = "Request body must be a JSON object with a data field."
)

// errInvalidBody возвращается для тела, которое не разбирается как JSON-объект.
var errInvalidBody = domain.NewError(domain.ErrInvalidInputs, msgInvalidBody)

// statusFor сопоставляет класс ошибки с HTTP-статусом.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrLockNotAcquired) {
		return http.StatusServiceUnavailable
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation, domain.KindBusinessRule:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler отдаёт ошибки в формате {"error", "kind"}.
// Сообщения внутренних ошибок наружу не выходят, только в лог.
func errorHandler(logger *log.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   errorResponse
		)
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = errorResponse{Error: http.StatusText(status), Kind: kindForHTTP(status)}
			if msg, ok := httpErr.Message.(string); ok && msg != "" {
				body.Error = msg
			}
		default:
			status = statusFor(err)
			body = errorResponse{Error: err.Error(), Kind: domain.KindOf(err)}
			switch {
			case status == http.StatusServiceUnavailable:
				body.Error = msgTableBusy
			case status == http.StatusInternalServerError:
				body.Error = msgInternal
				body.Kind = domain.KindInternal
			}
		}

		entry := logger.WithFields(log.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error("request failed")
		} else {
			entry.WithError(err).Debug("request rejected")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func kindForHTTP(status int) domain.ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status >= 400 && status < 500:
		return domain.KindValidation
	default:
		return domain.KindInternal
	}
}
