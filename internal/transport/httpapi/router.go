package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Option настраивает роутер.
type Option func(*routerOptions)

type routerOptions struct {
	logger         *log.Entry
	requestTimeout time.Duration
}

// WithLogger задаёт логгер транспорта.
func WithLogger(logger *log.Entry) Option {
	return func(o *routerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRequestTimeout ограничивает время обработки одного запроса.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *routerOptions) {
		o.requestTimeout = d
	}
}

// NewRouter собирает echo с маршрутами REST API.
func NewRouter(svc Service, opts ...Option) *echo.Echo {
	o := routerOptions{
		logger: log.WithFields(log.Fields{"component": "http-api", "layer": "transport"}),
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(o.logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	if o.requestTimeout > 0 {
		e.Use(middleware.ContextTimeout(o.requestTimeout))
	}
	e.Use(requestLogger(o.logger))

	h := NewHandler(svc)
	Register(e, h)
	return e
}

// Register регистрирует маршруты броней и столиков.
func Register(e *echo.Echo, h *Handler) {
	reservations := e.Group("/reservations")
	reservations.GET("", h.listReservations)
	reservations.POST("", h.createReservation)
	reservations.GET("/:reservation_id", h.getReservation)
	reservations.PUT("/:reservation_id", h.updateReservation)
	reservations.PUT("/:reservation_id/status", h.updateStatus)
	reservations.DELETE("/:reservation_id", h.deleteReservation)

	tables := e.Group("/tables")
	tables.GET("", h.listTables)
	tables.POST("", h.createTable)
	tables.GET("/:table_id", h.getTable)
	tables.PUT("/:table_id/seat", h.seatTable)
	tables.DELETE("/:table_id/seat", h.finishTable)
}

func requestLogger(logger *log.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			entry := logger.WithFields(log.Fields{
				"method":      c.Request().Method,
				"path":        c.Path(),
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request completed")
			} else {
				entry.Debug("request completed")
			}
			return nil
		}
	}
}
