package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"studiod/internal/metrics"
)

const (
	// DefaultAttemptTimeout bounds a single probe so one hung request
	// cannot eat a readiness budget without being retried.
	DefaultAttemptTimeout = 5 * time.Second
	// DefaultPollInterval is the gap between readiness attempts.
	DefaultPollInterval = 2 * time.Second
)

// ErrReadinessTimeout is returned when a service spawned but its health
// endpoint never answered within the readiness budget.
var ErrReadinessTimeout = errors.New("service did not become ready within budget")

// Prober issues bounded GET probes against service health endpoints.
// A probe succeeds iff the endpoint answers with a 2xx status; anything
// else (timeout, refused connection, non-2xx) is a failed probe.
type Prober struct {
	client   *http.Client
	interval time.Duration
}

// Option mutates a Prober during construction.
type Option func(*Prober)

// WithAttemptTimeout overrides the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Prober) { p.client.Timeout = d }
}

// WithPollInterval overrides the readiness polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Prober) { p.interval = d }
}

func New(opts ...Option) *Prober {
	p := &Prober{
		client:   &http.Client{Timeout: DefaultAttemptTimeout},
		interval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Check issues a single health probe. A nil return means the service is
// ready to accept real traffic, per the health endpoint contract.
func (p *Prober) Check(ctx context.Context, url string) error {
	start := time.Now()
	err := p.check(ctx, url)
	metrics.ObserveProbe(url, time.Since(start).Seconds(), err == nil)
	return err
}

func (p *Prober) check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// WaitUntilReady polls the health endpoint until it answers or the budget
// elapses. The first attempt fires immediately; each attempt carries its
// own timeout independent of the overall budget.
func (p *Prober) WaitUntilReady(ctx context.Context, url string, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for {
		if err := p.Check(ctx, url); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrReadinessTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}
