// Package metrics collects Prometheus metrics for the HTTP surface and the
// authentication outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth operations and outcomes used as label values.
const (
	OpRegister = "register"
	OpLogin    = "login"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder is what handlers depend on.
type Recorder interface {
	RecordAuth(op, outcome string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authTotal       *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accounts_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_auth_attempts_total",
			Help: "Registration and login attempts by outcome.",
		}, []string{"op", "outcome"}),
	}
	registry.MustRegister(c.requestsTotal, c.requestDuration, c.authTotal)
	return c
}

func (c *Collector) RecordAuth(op, outcome string) {
	c.authTotal.WithLabelValues(op, outcome).Inc()
}

// Registry exposes the registry for tests and custom collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency for every request that matched a route.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := ctx.Route().Path
		method := ctx.Method()
		c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		c.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		return err
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAuth(string, string) {}
