package middleware

import (
	"time"

	"tenantcrm/internal/common"
	"tenantcrm/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	log = log.Component("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			ev := log.Info()
			if res.Status >= 500 {
				ev = log.Error()
			}
			ev = ev.Str("method", req.Method).
				Str("path", c.Path()).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID))
			if p, ok := common.GetPrincipalFromContext(req.Context()); ok {
				ev = ev.Str("tenant_id", p.TenantID.String()).Str("user_id", p.UserID.String())
			}
			ev.Msg("request")
			return nil
		}
	}
}
