package providers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CircuitState is one of the three explicit states spec.md §4.3 requires.
// The teacher's own failover.go only tracks a binary open/closed-with-timer
// state; this generalizes it with a real HalfOpen probe.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ResilientConfig configures the circuit breaker and per-call timeout of
// a ResilientProvider, named and defaulted the way the teacher's
// FailoverConfig is. A failed primary attempt is not retried.
type ResilientConfig struct {
	// FailureThreshold is the number of consecutive Closed-state failures
	// that open the circuit.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays Open before a single
	// HalfOpen probe is allowed.
	ResetTimeout time.Duration

	// CallTimeout wraps every primary attempt; exceeding it counts as a
	// failure and triggers immediate fallback.
	CallTimeout time.Duration

	Logger *slog.Logger
}

// DefaultResilientConfig mirrors the teacher's FailoverConfig defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		FailureThreshold: 3,
		ResetTimeout:      30 * time.Second,
		CallTimeout:       60 * time.Second,
		Logger:            slog.Default(),
	}
}

// Metrics are the Prometheus collectors generalizing the teacher's ad hoc
// FailoverMetrics struct into real instrumentation.
type Metrics struct {
	Requests       prometheus.Counter
	Failovers      prometheus.Counter
	CircuitOpens   prometheus.Counter
	PrimaryLatency prometheus.Histogram
}

// NewMetrics registers a fresh metric set on reg (pass nil to use the
// default Prometheus registerer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests:       prometheus.NewCounter(prometheus.CounterOpts{Name: "aagt_provider_requests_total"}),
		Failovers:      prometheus.NewCounter(prometheus.CounterOpts{Name: "aagt_provider_failovers_total"}),
		CircuitOpens:   prometheus.NewCounter(prometheus.CounterOpts{Name: "aagt_provider_circuit_opens_total"}),
		PrimaryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "aagt_provider_primary_latency_seconds"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Failovers, m.CircuitOpens, m.PrimaryLatency} {
		_ = reg.Register(c) // duplicate registration in tests is harmless to ignore
	}
	return m
}

// ResilientProvider composes a primary and a fallback Provider behind a
// circuit breaker. The breaker's state is protected by a lock held only
// for the transition itself, never for the duration of a request.
type ResilientProvider struct {
	primary  Provider
	fallback Provider
	cfg      ResilientConfig
	metrics  *Metrics

	mu          sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	probeInFlight bool
}

// NewResilientProvider constructs the wrapper. fallback may be nil, in
// which case a primary failure surfaces directly (no failover target).
func NewResilientProvider(primary, fallback Provider, cfg ResilientConfig, metrics *Metrics) *ResilientProvider {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ResilientProvider{primary: primary, fallback: fallback, cfg: cfg, metrics: metrics}
}

func (r *ResilientProvider) Name() string { return "resilient(" + r.primary.Name() + ")" }

// snapshot returns the current state and, for HalfOpen, claims the single
// probe slot (subsequent concurrent callers see Open until the probe
// resolves).
func (r *ResilientProvider) snapshot() (CircuitState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateOpen && time.Since(r.openedAt) > r.cfg.ResetTimeout {
		r.state = StateHalfOpen
	}
	if r.state == StateHalfOpen {
		if r.probeInFlight {
			return StateOpen, false
		}
		r.probeInFlight = true
		return StateHalfOpen, true
	}
	return r.state, r.state == StateClosed
}

func (r *ResilientProvider) recordSuccess(wasProbe bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wasProbe {
		r.probeInFlight = false
	}
	r.state = StateClosed
	r.failures = 0
}

func (r *ResilientProvider) recordFailure(wasProbe bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wasProbe {
		r.probeInFlight = false
		r.state = StateOpen
		r.openedAt = time.Now()
		return
	}
	r.failures++
	if r.failures >= r.cfg.FailureThreshold {
		r.state = StateOpen
		r.openedAt = time.Now()
		if r.metrics != nil {
			r.metrics.CircuitOpens.Inc()
		}
	}
}

// StreamCompletion tries the primary when the circuit permits it (Closed,
// or the single HalfOpen probe), falls back to the fallback provider on
// any primary failure, and surfaces the fallback's error only if the
// fallback also fails.
func (r *ResilientProvider) StreamCompletion(ctx context.Context, req Request) (StreamHandle, error) {
	if r.metrics != nil {
		r.metrics.Requests.Inc()
	}

	state, tryPrimary := r.snapshot()
	if tryPrimary {
		callCtx, cancel := withTimeout(ctx, r.cfg.CallTimeout)
		start := time.Now()
		handle, err := r.primary.StreamCompletion(callCtx, req)
		if err == nil {
			deltas, derr := collect(callCtx, handle)
			cancel()
			if derr == nil {
				if r.metrics != nil {
					r.metrics.PrimaryLatency.Observe(time.Since(start).Seconds())
				}
				r.recordSuccess(state == StateHalfOpen)
				return newSliceStream(deltas), nil
			}
			err = derr
		} else {
			cancel()
		}
		r.cfg.Logger.Warn("primary provider failed", "provider", r.primary.Name(), "error", err)
		r.recordFailure(state == StateHalfOpen)
		if r.fallback == nil {
			return nil, err
		}
		if r.metrics != nil {
			r.metrics.Failovers.Inc()
		}
	}

	if r.fallback == nil {
		return nil, errors.New("circuit open and no fallback configured")
	}
	return r.fallback.StreamCompletion(ctx, req)
}

// State returns the breaker's current state, for tests and observability.
func (r *ResilientProvider) State() CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
