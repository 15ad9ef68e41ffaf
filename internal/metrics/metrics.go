// Package metrics exposes task engine activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/asynqq/internal/events"
)

// Outcome label values for finished tasks.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeStopped   = "stopped"
)

var outcomes = map[events.Type]string{
	events.TypeResult: outcomeCompleted,
	events.TypeError:  outcomeFailed,
	events.TypeStop:   outcomeStopped,
}

// QueueStats reports the current queue occupancy.
type QueueStats interface {
	PendingSize() int
	RunningSize() int
}

// Collector records task lifecycle metrics. It is attached to tasks as an
// events.Observer.
type Collector struct {
	registerer prometheus.Registerer

	submitted prometheus.Counter
	events    *prometheus.CounterVec
	duration  *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		registerer: reg,
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asynqq_tasks_submitted_total",
			Help: "Total number of tasks submitted to the engine.",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asynqq_task_events_total",
				Help: "Total number of task lifecycle events by type.",
			},
			[]string{"type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asynqq_task_duration_seconds",
				Help:    "Time from task start to its terminal event, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		started: make(map[string]time.Time),
	}

	for _, collector := range []prometheus.Collector{c.submitted, c.events, c.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register task metrics: %w", err)
		}
	}

	// Pre-initialize label combinations so they appear with value 0
	for _, typ := range []events.Type{events.TypeStart, events.TypeStop, events.TypeError, events.TypeResult} {
		c.events.WithLabelValues(string(typ))
	}

	return c, nil
}

// TrackQueue registers pending and running gauges that read from stats on scrape.
func (c *Collector) TrackQueue(stats QueueStats) error {
	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "asynqq_tasks_pending",
		Help: "Number of tasks waiting in the pending queue.",
	}, func() float64 { return float64(stats.PendingSize()) })

	running := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "asynqq_tasks_running",
		Help: "Number of tasks currently running.",
	}, func() float64 { return float64(stats.RunningSize()) })

	if err := c.registerer.Register(pending); err != nil {
		return fmt.Errorf("register pending gauge: %w", err)
	}
	if err := c.registerer.Register(running); err != nil {
		return fmt.Errorf("register running gauge: %w", err)
	}
	return nil
}

// ObserveSubmitted counts a task submission.
func (c *Collector) ObserveSubmitted() {
	c.submitted.Inc()
}

// HandleEvent counts the event and, for a terminal event of a started task,
// observes the run duration.
func (c *Collector) HandleEvent(event events.Event) error {
	c.events.WithLabelValues(string(event.Type)).Inc()

	if event.Type == events.TypeStart {
		c.mu.Lock()
		c.started[event.TaskID] = event.Time
		c.mu.Unlock()
		return nil
	}

	outcome, ok := outcomes[event.Type]
	if !ok {
		return nil
	}

	c.mu.Lock()
	startedAt, ok := c.started[event.TaskID]
	delete(c.started, event.TaskID)
	c.mu.Unlock()

	if ok {
		c.duration.WithLabelValues(outcome).Observe(event.Time.Sub(startedAt).Seconds())
	}
	return nil
}

var _ events.Observer = (*Collector)(nil)
