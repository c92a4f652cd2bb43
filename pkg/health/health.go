// Package health provides Kubernetes-style liveness and readiness probe
// support. Registered checks run on background tickers; a check must fail
// consecutively failureThreshold times before flipping unhealthy, which keeps
// a single transient error from knocking the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc reports the health of one component. Nil means healthy.
type CheckFunc func(ctx context.Context) error

const failureThreshold = 3

type kind int

const (
	liveness kind = iota
	readiness
)

// check holds configuration and last-known state for one registered probe.
type check struct {
	name    string
	kind    kind
	timeout time.Duration
	fn      CheckFunc

	mu        sync.Mutex
	healthy   bool
	lastErr   error
	failCount int
}

// run executes the check once and updates its state.
func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.fn(checkCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = err
	if err != nil {
		c.failCount++
		if c.failCount >= failureThreshold {
			c.healthy = false
		}
		return
	}
	c.failCount = 0
	c.healthy = true
}

func (c *check) state() (healthy bool, lastErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy, c.lastErr
}

// Service manages liveness and readiness checks. The zero value is not
// usable; call New.
type Service struct {
	mu     sync.Mutex
	checks []*check
	ready  bool
	cancel context.CancelFunc
}

// New creates a Service. It starts not-ready; call SetReady(true) once
// initialization completes.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a liveness probe, answering whether the process
// is alive at all.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.add(name, liveness, timeout, fn)
}

// AddReadinessCheck registers a readiness probe, answering whether the
// service can take traffic, such as database connectivity.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.add(name, readiness, timeout, fn)
}

func (s *Service) add(name string, k kind, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, &check{
		name:    name,
		kind:    k,
		timeout: timeout,
		fn:      fn,
		healthy: true,
	})
}

// Start runs every registered check on its own ticker until Stop or context
// cancellation. Register all checks before calling Start.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	checks := make([]*check, len(s.checks))
	copy(checks, s.checks)
	s.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}()
	}
}

// Stop cancels the background check goroutines. Safe to call repeatedly.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate: true after startup completes,
// false when shutdown begins so load balancers drain the instance.
func (s *Service) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Service) snapshot(k kind) (failures map[string]string, ready bool) {
	s.mu.Lock()
	checks := make([]*check, 0, len(s.checks))
	for _, c := range s.checks {
		if c.kind == k {
			checks = append(checks, c)
		}
	}
	ready = s.ready
	s.mu.Unlock()

	failures = make(map[string]string)
	for _, c := range checks {
		if healthy, lastErr := c.state(); !healthy {
			msg := "check is unhealthy"
			if lastErr != nil {
				msg = lastErr.Error()
			}
			failures[c.name] = msg
		}
	}
	return failures, ready
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the /livez probe: 200 while all liveness checks pass,
// 503 with failure details otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures, _ := s.snapshot(liveness)
	writeStatus(w, failures)
}

// ReadyEndpoint serves the /readyz probe: 200 only when SetReady(true) has
// been called and all readiness checks pass.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures, ready := s.snapshot(readiness)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
