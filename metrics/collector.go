// Package metrics collects execution telemetry: Prometheus counters and
// histograms for dashboards, plus a bounded in-memory record store backing
// per-agent and system-wide summaries. Recording never fails an execution.
package metrics

import (
	"bytes"
	"sync"
	"time"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// maxRecordsPerAgent bounds the detailed record history kept per agent.
const maxRecordsPerAgent = 1000

// Event is one terminal execution outcome reported by the engine.
type Event struct {
	AgentID   string
	Status    string
	Duration  time.Duration
	Usage     core.TokenUsage
	ToolCalls []string // tool names in dispatch order, duplicates kept
}

// Record is a stored execution outcome with its observation time.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status"`
	Duration  time.Duration   `json:"duration"`
	Usage     core.TokenUsage `json:"token_usage"`
	ToolCalls []string        `json:"tool_calls,omitempty"`
}

// AgentSummary aggregates the stored records of one agent.
type AgentSummary struct {
	AgentID         string    `json:"agent_id"`
	TotalExecutions int       `json:"total_executions"`
	Successful      int       `json:"successful_executions"`
	Failed          int       `json:"failed_executions"`
	SuccessRate     float64   `json:"success_rate"`
	AverageDuration float64   `json:"average_duration"`
	TotalTokens     int       `json:"total_tokens"`
	LastExecution   time.Time `json:"last_execution"`
}

// SystemSummary aggregates across all agents.
type SystemSummary struct {
	TotalAgents     int       `json:"total_agents"`
	TotalExecutions int       `json:"total_executions"`
	Successful      int       `json:"successful_executions"`
	Failed          int       `json:"failed_executions"`
	SuccessRate     float64   `json:"system_success_rate"`
	Timestamp       time.Time `json:"timestamp"`
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	// Registry receives the collector's metric vectors. A fresh registry is
	// created when nil.
	Registry *prometheus.Registry
	// Logger receives recording diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Clock supplies record timestamps, overridable in tests.
	Clock func() time.Time
}

// Collector records execution outcomes. All methods are safe for concurrent
// use, and Record never panics or returns an error: telemetry must not be
// able to fail an execution.
type Collector struct {
	registry *prometheus.Registry
	logger   logging.Logger
	clock    func() time.Time

	executions   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tokenUsage   *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	systemErrors *prometheus.CounterVec

	mu      sync.RWMutex
	records map[string][]Record
}

// NewCollector creates a collector with its metric vectors registered.
func NewCollector(optFns ...func(o *CollectorOptions)) *Collector {
	opts := CollectorOptions{
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: opts.Registry,
		logger:   opts.Logger,
		clock:    opts.Clock,
		records:  make(map[string][]Record),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_executions_total",
			Help: "Total number of agent executions",
		}, []string{"agent_id", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "agent_execution_duration_seconds",
			Help: "Duration of agent executions",
		}, []string{"agent_id"}),
		tokenUsage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_token_usage_total",
			Help: "Total tokens used by agents",
		}, []string{"agent_id", "token_type"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Total tool calls made by agents",
		}, []string{"agent_id", "tool_name"}),
		systemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total system errors",
		}, []string{"error_type"}),
	}

	opts.Registry.MustRegister(c.executions, c.duration, c.tokenUsage, c.toolCalls, c.systemErrors)

	return c
}

// Record stores one execution outcome. It swallows internal panics so a
// telemetry fault never propagates into the execution path.
func (c *Collector) Record(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("metrics.record.panic", "agent_id", ev.AgentID, "panic", r)
		}
	}()

	c.executions.WithLabelValues(ev.AgentID, ev.Status).Inc()
	c.duration.WithLabelValues(ev.AgentID).Observe(ev.Duration.Seconds())

	if ev.Usage.InputTokens > 0 {
		c.tokenUsage.WithLabelValues(ev.AgentID, "input").Add(float64(ev.Usage.InputTokens))
	}
	if ev.Usage.OutputTokens > 0 {
		c.tokenUsage.WithLabelValues(ev.AgentID, "output").Add(float64(ev.Usage.OutputTokens))
	}

	for _, name := range ev.ToolCalls {
		if name == "" {
			name = "unknown"
		}
		c.toolCalls.WithLabelValues(ev.AgentID, name).Inc()
	}

	rec := Record{
		Timestamp: c.clock().UTC(),
		Status:    ev.Status,
		Duration:  ev.Duration,
		Usage:     ev.Usage,
		ToolCalls: append([]string(nil), ev.ToolCalls...),
	}

	c.mu.Lock()
	records := append(c.records[ev.AgentID], rec)
	if len(records) > maxRecordsPerAgent {
		records = records[len(records)-maxRecordsPerAgent:]
	}
	c.records[ev.AgentID] = records
	c.mu.Unlock()

	c.logger.Info("metrics.execution.recorded",
		"agent_id", ev.AgentID,
		"status", ev.Status,
		"duration_ms", ev.Duration.Milliseconds(),
		"total_tokens", ev.Usage.Total(),
		"tool_calls", len(ev.ToolCalls),
	)
}

// RecordError counts a system-level error by type.
func (c *Collector) RecordError(errType string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("metrics.record_error.panic", "panic", r)
		}
	}()

	if errType == "" {
		errType = "unknown"
	}
	c.systemErrors.WithLabelValues(errType).Inc()
}

// AgentSummary computes aggregate statistics for one agent. The second return
// is false when no executions were recorded for the agent.
func (c *Collector) AgentSummary(agentID string) (AgentSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := c.records[agentID]
	if len(records) == 0 {
		return AgentSummary{}, false
	}

	summary := AgentSummary{
		AgentID:         agentID,
		TotalExecutions: len(records),
		LastExecution:   records[len(records)-1].Timestamp,
	}

	var totalDuration time.Duration
	for _, rec := range records {
		switch rec.Status {
		case "completed":
			summary.Successful++
		case "failed":
			summary.Failed++
		}
		totalDuration += rec.Duration
		summary.TotalTokens += rec.Usage.Total()
	}

	summary.SuccessRate = float64(summary.Successful) / float64(summary.TotalExecutions)
	summary.AverageDuration = totalDuration.Seconds() / float64(summary.TotalExecutions)

	return summary, true
}

// SystemSummary computes aggregate statistics across all agents.
func (c *Collector) SystemSummary() SystemSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := SystemSummary{
		TotalAgents: len(c.records),
		Timestamp:   c.clock().UTC(),
	}

	for _, records := range c.records {
		summary.TotalExecutions += len(records)
		for _, rec := range records {
			switch rec.Status {
			case "completed":
				summary.Successful++
			case "failed":
				summary.Failed++
			}
		}
	}

	if summary.TotalExecutions > 0 {
		summary.SuccessRate = float64(summary.Successful) / float64(summary.TotalExecutions)
	}

	return summary
}

// Export renders all registered metrics in the Prometheus text exposition
// format.
func (c *Collector) Export() (string, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}

// Registry exposes the underlying Prometheus registry, e.g. for mounting an
// HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
