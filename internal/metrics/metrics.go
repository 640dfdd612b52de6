// ============================================================================
// Queue Consumer Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose the consumer's counters for Prometheus
//
// Metric Categories (all cumulative counters, monotonically increasing):
//
//   - queue_consumer_request_messages_total: Queue.Get() calls attempted
//   - queue_consumer_received_messages_total: Messages returned by Queue.Get()
//   - queue_consumer_started_messages_total: Messages submitted to the pool
//   - queue_consumer_successful_messages_total: Messages the handler finished
//   - queue_consumer_failed_messages_total: Messages counted as failed
//   - queue_consumer_revived_workers_total: Fetcher workers restarted
//   - queue_consumer_stuck_handlers_total: Handler tasks force-released
//
// Prometheus Query Examples:
//
//   # Messages per minute
//   rate(queue_consumer_successful_messages_total[1m])
//
//   # Failure rate
//   rate(queue_consumer_failed_messages_total[5m]) / rate(queue_consumer_started_messages_total[5m])
//
//   # Backlog growth (received but not yet accounted for)
//   queue_consumer_received_messages_total - queue_consumer_successful_messages_total - queue_consumer_failed_messages_total
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus. Default port: 9090.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Collector collects the consumer's Prometheus counters. Every counter is
// registered (hence visible at zero) the moment NewCollector returns, so a
// scrape before any traffic still sees every series.
type Collector struct {
	requestMessages    prometheus.Counter
	receivedMessages   prometheus.Counter
	startedMessages    prometheus.Counter
	successfulMessages prometheus.Counter
	failedMessages     prometheus.Counter
	revivedWorkers     prometheus.Counter
	stuckHandlers      prometheus.Counter
}

// NewCollector creates a new metrics collector and registers it against
// the default Prometheus registerer.
func NewCollector() *Collector {
	return newCollector(prometheus.DefaultRegisterer)
}

// NewTestCollector builds a Collector registered against a private
// registry rather than prometheus.DefaultRegisterer, so tests in other
// packages can each construct one without colliding on global registry
// state or needing to reset it themselves.
func NewTestCollector() *Collector {
	return newCollector(prometheus.NewRegistry())
}

func newCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_request_messages_total",
			Help: "Total number of Queue.Get() calls attempted by fetcher workers",
		}),
		receivedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_received_messages_total",
			Help: "Total number of messages returned by Queue.Get()",
		}),
		startedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_started_messages_total",
			Help: "Total number of messages submitted to the handler pool",
		}),
		successfulMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_successful_messages_total",
			Help: "Total number of messages the handler finished successfully",
		}),
		failedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_failed_messages_total",
			Help: "Total number of messages counted as failed",
		}),
		revivedWorkers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_revived_workers_total",
			Help: "Total number of fetcher workers restarted by the supervisor",
		}),
		stuckHandlers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_consumer_stuck_handlers_total",
			Help: "Total number of handler tasks force-released for running past stuck_time",
		}),
	}

	reg.MustRegister(c.requestMessages)
	reg.MustRegister(c.receivedMessages)
	reg.MustRegister(c.startedMessages)
	reg.MustRegister(c.successfulMessages)
	reg.MustRegister(c.failedMessages)
	reg.MustRegister(c.revivedWorkers)
	reg.MustRegister(c.stuckHandlers)

	return c
}

// IncRequestMessages records one Queue.Get() attempt.
func (c *Collector) IncRequestMessages() {
	c.requestMessages.Inc()
}

// AddReceivedMessages records n messages returned by a single Queue.Get() call.
func (c *Collector) AddReceivedMessages(n int) {
	if n > 0 {
		c.receivedMessages.Add(float64(n))
	}
}

// AddStartedMessages records n messages submitted to the pool.
func (c *Collector) AddStartedMessages(n int) {
	if n > 0 {
		c.startedMessages.Add(float64(n))
	}
}

// AddSuccessfulMessages records n messages completed successfully.
func (c *Collector) AddSuccessfulMessages(n int) {
	if n > 0 {
		c.successfulMessages.Add(float64(n))
	}
}

// AddFailedMessages records n messages counted as failed.
func (c *Collector) AddFailedMessages(n int) {
	if n > 0 {
		c.failedMessages.Add(float64(n))
	}
}

// IncRevivedWorkers records one fetcher worker restart.
func (c *Collector) IncRevivedWorkers() {
	c.revivedWorkers.Inc()
}

// IncStuckHandlers records one forced release of a stuck handler task.
func (c *Collector) IncStuckHandlers() {
	c.stuckHandlers.Inc()
}

// Snapshot is a point-in-time read of every counter, for the CLI run
// command's final report and for test assertions against metric values.
type Snapshot struct {
	RequestMessages    float64
	ReceivedMessages   float64
	StartedMessages    float64
	SuccessfulMessages float64
	FailedMessages     float64
	RevivedWorkers     float64
	StuckHandlers      float64
}

// Snapshot reads every counter's current value.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		RequestMessages:    testutil.ToFloat64(c.requestMessages),
		ReceivedMessages:   testutil.ToFloat64(c.receivedMessages),
		StartedMessages:    testutil.ToFloat64(c.startedMessages),
		SuccessfulMessages: testutil.ToFloat64(c.successfulMessages),
		FailedMessages:     testutil.ToFloat64(c.failedMessages),
		RevivedWorkers:     testutil.ToFloat64(c.revivedWorkers),
		StuckHandlers:      testutil.ToFloat64(c.stuckHandlers),
	}
}

// StartServer starts a Prometheus /metrics HTTP server on port.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
