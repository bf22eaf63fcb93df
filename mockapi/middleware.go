package mockapi

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
	headerTimezone       = "X-Timezone"
)

// maxInflatedBody caps a decoded request body.
const maxInflatedBody = 1 << 20

// inflateRequests decodes compressed request bodies up front so handlers and
// the idempotency layer always see plain JSON.
func inflateRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch strings.ToLower(strings.TrimSpace(req.Header.Get(echo.HeaderContentEncoding))) {
			case "", "identity":
				return next(c)
			case "gzip", "x-gzip":
			default:
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported content encoding")
			}

			defer req.Body.Close()
			zr, err := gzip.NewReader(req.Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			data, err := io.ReadAll(io.LimitReader(zr, maxInflatedBody+1))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			if len(data) > maxInflatedBody {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
			}

			req.Body = io.NopCloser(bytes.NewReader(data))
			req.ContentLength = int64(len(data))
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Set(echo.HeaderContentLength, strconv.Itoa(len(data)))
			return next(c)
		}
	}
}

// requestLogger writes one structured entry per request.
func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			entry := logger.WithFields(log.Fields{
				"method":     req.Method,
				"route":      c.Path(),
				"status":     c.Response().Status,
				"latency_ms": float64(time.Since(start).Microseconds()) / 1000,
				"request_id": req.Header.Get(headerRequestID),
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			if c.Response().Status >= http.StatusInternalServerError {
				entry.Warn("mockapi: request failed")
			} else {
				entry.Debug("mockapi: request served")
			}
			return nil
		}
	}
}
