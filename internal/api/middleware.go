package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Middleware — обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware слева направо: Chain(m1, m2)(h) = m1(m2(h)).
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logging пишет строку лога на каждый запрос.
// Успешные запросы — DEBUG (healthz опрашивается часто), 4xx — INFO, 5xx — WARN.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			level := slog.LevelDebug
			switch {
			case rw.status >= 500:
				level = slog.LevelWarn
			case rw.status >= 400:
				level = slog.LevelInfo
			}

			logger.LogAttrs(context.Background(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Int("bytes", rw.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// Recovery превращает панику обработчика в ответ 500.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("panic recovered",
						"panic", v,
						"stack", string(debug.Stack()),
						"path", r.URL.Path,
					)
					InternalError(w, logger, fmt.Errorf("panic: %v", v))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder запоминает код и размер ответа.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += n
	return n, err
}
