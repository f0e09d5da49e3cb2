package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/ledger-bot/internal/state"
)

const defaultCollectInterval = 30 * time.Second

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of handled updates labeled by conversation branch and status",
		},
		[]string{"branch", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"branch"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation step transitions",
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
	activeConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Current number of stored conversation states",
		},
	)
	conversationsByStep = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conversations_by_step",
			Help: "Number of stored conversations per step",
		},
		[]string{"step"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand counts a handled update and records its duration.
func RecordCommand(branch, status string, duration time.Duration) {
	if branch == "" {
		branch = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botUpdatesTotal.WithLabelValues(branch, status).Inc()
	updateDurationSeconds.WithLabelValues(branch).Observe(duration.Seconds())
}

// RecordStateTransition tracks step transitions.
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

// StateCollector periodically counts stored conversations per step.
type StateCollector struct {
	lister   state.Enumerator
	interval time.Duration
	log      *slog.Logger
}

// NewStateCollector builds a collector over lister. A zero interval selects 30 seconds.
func NewStateCollector(lister state.Enumerator, interval time.Duration, log *slog.Logger) *StateCollector {
	if interval <= 0 {
		interval = defaultCollectInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &StateCollector{lister: lister, interval: interval, log: log}
}

// Run collects immediately and then every interval until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.lister == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Collect(ctx); err != nil {
			c.log.Warn("failed to collect conversation metrics", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect refreshes the conversation gauges once.
func (c *StateCollector) Collect(ctx context.Context) error {
	states, err := c.lister.GetAllStates(ctx)
	if err != nil {
		return err
	}

	activeConversations.Set(float64(len(states)))

	counts := make(map[string]int, len(state.Steps))
	for _, st := range states {
		if st == nil {
			continue
		}
		counts[st.Step.String()]++
	}

	conversationsByStep.Reset()
	for _, step := range state.Steps {
		conversationsByStep.WithLabelValues(step.String()).Set(float64(counts[step.String()]))
	}

	return nil
}
