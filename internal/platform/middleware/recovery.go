package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/platform/metrics"
)

const panicStackSize = 8 << 10

// PanicError carries a panic raised on another goroutine together with the
// stack captured there.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprint(p.Value) }

// Recovery turns a handler panic into a 500 and logs it with the route and
// the first stack frames.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				var stack []byte
				if pe, ok := r.(*PanicError); ok {
					r, stack = pe.Value, pe.Stack
				} else {
					stack = make([]byte, panicStackSize)
					stack = stack[:runtime.Stack(stack, false)]
				}

				route := c.Path()
				if route == "" {
					route = "unmatched"
				}
				metrics.RecoveredPanics.WithLabelValues(route).Inc()

				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", route).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
