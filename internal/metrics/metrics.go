// Package metrics collects and exposes the engine's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the recorder interfaces of daily.Generator,
// session.Service and leaderboard.Aggregator.
type Collector struct {
	scheduleCreated *prometheus.CounterVec
	scheduleReused  *prometheus.CounterVec
	poolExhausted   *prometheus.CounterVec
	poolRelaxed     *prometheus.CounterVec
	guesses         *prometheus.CounterVec
	sessionsDone    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector builds a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scheduleCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_schedule_created_total",
			Help: "Daily schedules created, by game type.",
		}, []string{"game_type"}),
		scheduleReused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_schedule_reused_total",
			Help: "EnsureSchedule calls answered by an existing schedule.",
		}, []string{"game_type"}),
		poolExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_pool_exhausted_total",
			Help: "Schedule attempts that found no eligible candidate.",
		}, []string{"game_type"}),
		poolRelaxed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_pool_relaxed_total",
			Help: "Schedules created after relaxing the repeat-avoidance window.",
		}, []string{"game_type", "window_days"}),
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_guesses_total",
			Help: "Submitted guesses by game type and result (hit, miss, duplicate).",
		}, []string{"game_type", "result"}),
		sessionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_sessions_finished_total",
			Help: "Sessions that reached a terminal status.",
		}, []string{"game_type", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzle_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "puzzle_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.scheduleCreated,
		c.scheduleReused,
		c.poolExhausted,
		c.poolRelaxed,
		c.guesses,
		c.sessionsDone,
		c.cacheLookups,
		c.httpStatus,
		c.httpLatency,
	)
	return c
}

func (c *Collector) RecordScheduleCreated(gameType string) {
	c.scheduleCreated.WithLabelValues(gameType).Inc()
}

func (c *Collector) RecordScheduleReused(gameType string) {
	c.scheduleReused.WithLabelValues(gameType).Inc()
}

func (c *Collector) RecordPoolExhausted(gameType string) {
	c.poolExhausted.WithLabelValues(gameType).Inc()
}

func (c *Collector) RecordPoolRelaxed(gameType string, window int) {
	c.poolRelaxed.WithLabelValues(gameType, strconv.Itoa(window)).Inc()
}

// RecordGuess counts one submission; result is hit, miss or duplicate.
func (c *Collector) RecordGuess(gameType, result string) {
	c.guesses.WithLabelValues(gameType, result).Inc()
}

func (c *Collector) RecordSessionFinished(gameType, status string) {
	c.sessionsDone.WithLabelValues(gameType, status).Inc()
}

// RecordCacheLookup counts a leaderboard cache read; result is hit, miss or error.
func (c *Collector) RecordCacheLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordHTTPLatency(d time.Duration) {
	c.httpLatency.Observe(d.Seconds())
}

// Handler serves gatherer for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
