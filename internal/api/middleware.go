package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/streamgen/internal/logger"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns every request an id, taken from the X-Request-ID header
// when present, echoes it in the response and stores a logger tagged with it
// in the request context.
func RequestID(base logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)
			log := base.With("request_id", id)
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), log)))
			return next(c)
		}
	}
}
