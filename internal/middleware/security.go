package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"gateway-proxy-go/internal/model"
)

// SecurityHeaders returns an Echo middleware that adds security headers
// and strips hop-by-hop headers from the incoming request, including any
// header the client listed in Connection.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			for _, v := range h.Values("Connection") {
				for name := range strings.SplitSeq(v, ",") {
					if name = strings.TrimSpace(name); name != "" {
						h.Del(name)
					}
				}
			}
			// Transfer-Encoding has already been moved to Request.TransferEncoding.
			for _, name := range model.HopByHopHeaders {
				h.Del(name)
			}

			err := next(c)

			c.Response().Header().Set("X-Content-Type-Options", "nosniff")
			c.Response().Header().Set("X-Frame-Options", "DENY")

			return err
		}
	}
}
