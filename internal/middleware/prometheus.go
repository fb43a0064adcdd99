package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/metrics"
)

const unmatchedRoute = "unmatched"

// PrometheusMetrics считает запросы по шаблону маршрута, а не по фактическому URI
func PrometheusMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.URL.Path == "/metrics" {
			return next(c)
		}

		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
		}

		route := c.Path()
		if route == "" {
			route = unmatchedRoute
		}

		metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())

		if req.ContentLength > 0 && isUpload(req) {
			metrics.UploadBytes.WithLabelValues(route).Observe(float64(req.ContentLength))
		}

		return err
	}
}

func isUpload(req *http.Request) bool {
	if req.Method != http.MethodPost {
		return false
	}
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}
