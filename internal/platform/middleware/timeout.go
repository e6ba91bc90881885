package middleware

import (
	"bytes"
	"context"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// TimeoutConfig bounds request handling time. Export routes rasterize and
// fetch templates, so they get their own, longer budget.
type TimeoutConfig struct {
	Default time.Duration
	Export  time.Duration
}

// Context values copied into the handler's context.
var forwardedKeys = []string{"request_id"}

func isExportPath(method, path string) bool {
	return strings.HasSuffix(path, "/export.pdf") ||
		strings.HasSuffix(path, "/export.xlsx") ||
		(method == http.MethodPost && strings.HasSuffix(path, "/exports"))
}

func isLivePath(path string) bool {
	return strings.HasSuffix(path, "/live")
}

// RequestTimeout sets a deadline on the request context and answers 504 when
// the handler has not returned by then. Live feeds are long-lived and never
// time out. A non-positive duration disables the deadline.
//
// The handler runs on its own goroutine with its own echo context and a
// buffered response, copied to the client only when the handler returns in
// time. A panic is raised again on the request goroutine so Recovery sees it.
func RequestTimeout(cfg TimeoutConfig) echo.MiddlewareFunc {
	if cfg.Export <= 0 {
		cfg.Export = cfg.Default
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if isLivePath(req.URL.Path) {
				return next(c)
			}
			timeout := cfg.Default
			if isExportPath(req.Method, req.URL.Path) {
				timeout = cfg.Export
			}
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(req.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{header: c.Response().Header().Clone()}
			hc := c.Echo().NewContext(req.WithContext(ctx), tw)
			hc.SetPath(c.Path())
			hc.SetParamNames(c.ParamNames()...)
			hc.SetParamValues(c.ParamValues()...)
			for _, k := range forwardedKeys {
				if v := c.Get(k); v != nil {
					hc.Set(k, v)
				}
			}

			done := make(chan error, 1)
			panicked := make(chan *PanicError, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						stack := make([]byte, panicStackSize)
						panicked <- &PanicError{Value: r, Stack: stack[:runtime.Stack(stack, false)]}
					}
				}()
				done <- next(hc)
			}()

			select {
			case p := <-panicked:
				tw.discard()
				panic(p)
			case err := <-done:
				tw.flushTo(c.Response())
				return err
			case <-ctx.Done():
				tw.discard()
				if ctx.Err() == context.DeadlineExceeded {
					return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
				}
				return ctx.Err()
			}
		}
	}
}

// timeoutWriter buffers a handler's response. Once discarded, later writes
// fail with http.ErrHandlerTimeout.
type timeoutWriter struct {
	mu        sync.Mutex
	header    http.Header
	buf       bytes.Buffer
	code      int
	discarded bool
}

func (w *timeoutWriter) Header() http.Header {
	return w.header
}

func (w *timeoutWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.discarded || w.code != 0 {
		return
	}
	w.code = code
}

func (w *timeoutWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.discarded {
		return 0, http.ErrHandlerTimeout
	}
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.buf.Write(p)
}

// Flush is a no-op; the buffer is written when the handler returns.
func (w *timeoutWriter) Flush() {}

func (w *timeoutWriter) discard() {
	w.mu.Lock()
	w.discarded = true
	w.mu.Unlock()
}

func (w *timeoutWriter) flushTo(dst *echo.Response) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discarded = true

	h := dst.Header()
	for k := range h {
		delete(h, k)
	}
	for k, vv := range w.header {
		h[k] = vv
	}
	if w.code == 0 {
		return
	}
	dst.WriteHeader(w.code)
	if w.buf.Len() > 0 {
		dst.Write(w.buf.Bytes())
	}
}
