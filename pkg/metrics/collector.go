// Package metrics exposes Prometheus collectors for the bot.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fish-shop/seafood-bot/internal/state"
)

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates handled, labeled by action and status",
		},
		[]string{"action", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	moltinRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moltin_requests_total",
			Help: "Total number of commerce API calls labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	moltinRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moltin_request_duration_seconds",
			Help:    "Duration of commerce API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	activeConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_conversations",
			Help: "Current number of conversations with persisted state",
		},
	)
	conversationsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conversations_by_state",
			Help: "Number of conversations per state",
		},
		[]string{"state"},
	)
)

var trackedStates = []state.State{
	state.StateMenu,
	state.StateProduct,
	state.StateCart,
	state.StateAwaitingEmail,
}

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordUpdate increments update counters and records handling duration.
func RecordUpdate(action, status string, duration time.Duration) {
	if action == "" {
		action = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botUpdatesTotal.WithLabelValues(action, status).Inc()
	updateDurationSeconds.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordStateTransition tracks conversation transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordMoltinRequest tracks one commerce API call.
func RecordMoltinRequest(operation, status string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	moltinRequestsTotal.WithLabelValues(operation, status).Inc()
	moltinRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// StateCollector periodically gathers conversation counts and emits gauge metrics.
type StateCollector struct {
	fsm state.Machine
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(fsm state.Machine) *StateCollector {
	return &StateCollector{fsm: fsm}
}

// Run polls the FSM every 10 seconds, updating conversation gauges until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	records, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	activeConversations.Set(float64(len(records)))

	stateCounts := make(map[string]int, len(records))
	for _, record := range records {
		label := "unknown"
		if record != nil && record.CurrentState != "" {
			label = string(record.CurrentState)
		}
		stateCounts[label]++
	}

	conversationsByState.Reset()

	for _, tracked := range trackedStates {
		label := string(tracked)
		conversationsByState.WithLabelValues(label).Set(float64(stateCounts[label]))
		delete(stateCounts, label)
	}

	for label, count := range stateCounts {
		conversationsByState.WithLabelValues(label).Set(float64(count))
	}

	return nil
}
