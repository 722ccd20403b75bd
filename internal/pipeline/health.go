package pipeline

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// HealthStatus represents the health state of a batch run.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusFinished  HealthStatus = "FINISHED"

	// DefaultUnhealthyThreshold is the number of consecutive failed queries
	// before a run is considered unhealthy.
	DefaultUnhealthyThreshold = 5

	// DefaultDegradedLatencyThreshold is the P95 query latency above which
	// a run is considered degraded.
	DefaultDegradedLatencyThreshold = 5 * time.Second

	latencyWindowSize = 50
)

// PipelineHealth tracks query outcomes and recent latencies of one run.
type PipelineHealth struct {
	mu                       sync.RWMutex
	name                     string
	status                   HealthStatus
	consecutiveFailures      int
	succeeded                int64
	failed                   int64
	lastSuccessAt            *time.Time
	lastFailureAt            *time.Time
	unhealthyThreshold       int
	recentLatencies          []time.Duration
	degradedLatencyThreshold time.Duration
	nowFn                    func() time.Time
}

func NewPipelineHealth(name string) *PipelineHealth {
	return &PipelineHealth{
		name:                     name,
		status:                   HealthStatusUnknown,
		unhealthyThreshold:       DefaultUnhealthyThreshold,
		recentLatencies:          make([]time.Duration, 0, latencyWindowSize),
		degradedLatencyThreshold: DefaultDegradedLatencyThreshold,
		nowFn:                    time.Now,
	}
}

func (h *PipelineHealth) Name() string { return h.name }

func (h *PipelineHealth) SetStatus(status HealthStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// RecordSuccess records a completed query and reports whether it ended an
// unhealthy streak.
func (h *PipelineHealth) RecordSuccess(latency time.Duration) (recovered bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowFn()
	recovered = h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.succeeded++
	h.lastSuccessAt = &now
	h.observeLatency(latency)
	if h.isLatencyDegraded() {
		h.status = HealthStatusDegraded
	} else {
		h.status = HealthStatusHealthy
	}
	return recovered
}

// RecordFailure records a failed query. Returns true if the run became
// unhealthy on this call.
func (h *PipelineHealth) RecordFailure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowFn()
	h.consecutiveFailures++
	h.failed++
	h.lastFailureAt = &now
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		return true
	}
	return false
}

func (h *PipelineHealth) observeLatency(d time.Duration) {
	if len(h.recentLatencies) >= latencyWindowSize {
		h.recentLatencies = h.recentLatencies[1:]
	}
	h.recentLatencies = append(h.recentLatencies, d)
}

// isLatencyDegraded must be called with mu held.
func (h *PipelineHealth) isLatencyDegraded() bool {
	if len(h.recentLatencies) < 2 {
		return false
	}
	return h.percentileLatency(95) > h.degradedLatencyThreshold
}

// percentileLatency must be called with mu held.
func (h *PipelineHealth) percentileLatency(pct int) time.Duration {
	n := len(h.recentLatencies)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(h.recentLatencies)
	slices.Sort(sorted)
	idx := (pct*n - 1) / 100
	idx = max(0, min(idx, n-1))
	return sorted[idx]
}

func (h *PipelineHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Name:                h.name,
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		Succeeded:           h.succeeded,
		Failed:              h.failed,
		P95LatencyMS:        h.percentileLatency(95).Milliseconds(),
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
	}
}

// HealthSnapshot is a point-in-time view of run health (JSON-safe).
type HealthSnapshot struct {
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Succeeded           int64      `json:"succeeded"`
	Failed              int64      `json:"failed"`
	P95LatencyMS        int64      `json:"p95_latency_ms"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}

// Handler serves the snapshot as JSON; unhealthy runs answer 503.
func (h *PipelineHealth) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := h.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if snap.Status == string(HealthStatusUnhealthy) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(snap)
	})
}
