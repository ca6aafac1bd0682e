package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycletrack_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cycletrack_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EventsLogged counts tracked events by type (injection, blood_test, photo, course).
	EventsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycletrack_events_logged_total",
			Help: "Tracked events recorded",
		},
		[]string{"type"},
	)

	XPAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cycletrack_xp_awarded_total",
		Help: "Experience points awarded",
	})

	LevelUps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cycletrack_level_ups_total",
		Help: "Level-up achievements unlocked",
	})
)

// Init registers the collectors on the default registry. Call once from main.
func Init() {
	prometheus.MustRegister(ReqCount, ReqDuration, EventsLogged, XPAwarded, LevelUps)
}

// Middleware records request counts and latency by route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		ReqCount.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		ReqDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
