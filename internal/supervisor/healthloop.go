package supervisor

import (
	"context"
	"sync"
	"time"

	"studiod/internal/metrics"
	"studiod/internal/registry"
)

// DefaultHealthInterval is the period of the recurring health check loop.
const DefaultHealthInterval = 10 * time.Second

// RunHealthLoop re-probes every service with a health URL until ctx is
// canceled. The registry's change-only semantics mean clients see exactly
// one event per transition, not one per tick, and the loop is the
// authority that corrects stale statuses after external starts or stops.
func (s *Supervisor) RunHealthLoop(ctx context.Context) {
	t := time.NewTicker(s.healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.CheckOnce(ctx)
		}
	}
}

// CheckOnce probes all health-checked services concurrently. Each probe
// carries its own timeout, so one slow service cannot stall the tick.
func (s *Supervisor) CheckOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, desc := range s.reg.Probed() {
		wg.Add(1)
		go func(desc registry.Descriptor) {
			defer wg.Done()
			err := s.prober.Check(ctx, desc.HealthURL)
			metrics.SetServiceUp(desc.Name, err == nil)
			if err == nil {
				s.reg.SetStatus(desc.Name, registry.StatusConnected)
			} else {
				s.reg.SetStatus(desc.Name, registry.StatusDisconnected)
			}
		}(desc)
	}
	wg.Wait()
}
