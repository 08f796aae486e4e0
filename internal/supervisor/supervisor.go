package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"studiod/internal/logger"
	"studiod/internal/metrics"
	"studiod/internal/probe"
	"studiod/internal/registry"
)

const (
	// DefaultReadinessBudget bounds the post-spawn wait for a health
	// endpoint to come up. Model servers load weights; be generous.
	DefaultReadinessBudget = 60 * time.Second
	// DefaultStopGrace is how long a child gets to exit on SIGTERM
	// before the kill escalates.
	DefaultStopGrace = 3 * time.Second
)

// Supervisor owns the mapping from service name to live OS process and
// performs start/stop safely. Status flows through the registry only;
// broadcasting hangs off the registry's change callback, so every
// mutation here is immediately visible to connected clients.
type Supervisor struct {
	reg    *registry.Registry
	prober *probe.Prober
	log    *slog.Logger

	readinessBudget time.Duration
	stopGrace       time.Duration
	healthInterval  time.Duration

	mu       sync.Mutex
	children map[string]*child
	locks    map[string]*sync.Mutex // per-service start/stop exclusion
}

// Option mutates a Supervisor during construction.
type Option func(*Supervisor)

func WithReadinessBudget(d time.Duration) Option {
	return func(s *Supervisor) { s.readinessBudget = d }
}

func WithStopGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.stopGrace = d }
}

func WithHealthInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.healthInterval = d }
}

func New(reg *registry.Registry, prober *probe.Prober, opts ...Option) *Supervisor {
	s := &Supervisor{
		reg:             reg,
		prober:          prober,
		log:             slog.Default(),
		readinessBudget: DefaultReadinessBudget,
		stopGrace:       DefaultStopGrace,
		healthInterval:  DefaultHealthInterval,
		children:        make(map[string]*child),
		locks:           make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// lockFor returns the mutex serializing start/stop for one service name.
// Operations on different names proceed fully concurrently.
func (s *Supervisor) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Supervisor) getChild(name string) *child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[name]
}

func (s *Supervisor) setChild(name string, c *child) {
	s.mu.Lock()
	s.children[name] = c
	s.mu.Unlock()
}

// clearChild removes the handle only if it still refers to the same run,
// so a stop racing a monitor-observed exit cannot drop a newer child.
func (s *Supervisor) clearChild(name string, c *child) {
	s.mu.Lock()
	if s.children[name] == c {
		delete(s.children, name)
	}
	s.mu.Unlock()
}

// Start launches the named service. It is idempotent: when the health
// endpoint already answers, no process is spawned and the call succeeds
// immediately. On a readiness timeout the spawned handle is kept, since the
// process may still be warming up and a later health tick will pick it up.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	desc, ok := s.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if name == registry.SelfName {
		return nil // always running
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	// Already running externally (e.g. the user launched the tool by
	// hand): adopt it instead of double-launching.
	if desc.HealthURL != "" {
		if err := s.prober.Check(ctx, desc.HealthURL); err == nil {
			s.reg.SetStatus(name, registry.StatusConnected)
			s.log.Info("service already healthy, adopting", "service", name)
			return nil
		}
	}

	// At most one live handle per name: replace, never orphan.
	if old := s.getChild(name); old != nil {
		s.log.Warn("replacing live process handle", "service", name, "pid", old.PID())
		old.terminate(s.stopGrace)
		s.clearChild(name, old)
	}

	c, err := s.launch(name, desc)
	if err != nil {
		metrics.IncLaunchFailure(name)
		return err
	}
	s.setChild(name, c)
	s.reg.SetStatus(name, registry.StatusStarting)
	s.log.Info("service spawned", "service", name, "pid", c.PID(), "command", c.command)
	go s.monitor(name, c)

	if desc.HealthURL != "" {
		if err := s.prober.WaitUntilReady(ctx, desc.HealthURL, s.readinessBudget); err != nil {
			// Handle stays intact; readiness failure is reported, not retried.
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	s.reg.SetStatus(name, registry.StatusConnected)
	metrics.IncStart(name)
	return nil
}

// launch tries each candidate command in order until one spawns.
func (s *Supervisor) launch(name string, desc registry.Descriptor) (*child, error) {
	if len(desc.Commands) == 0 {
		return nil, fmt.Errorf("%w: %s: no launch commands configured", ErrLaunchFailed, name)
	}
	logCfg := logger.Config{Dir: desc.LogDir}
	var errs []error
	for _, cmdline := range desc.Commands {
		c, err := spawn(name, cmdline, logCfg)
		if err == nil {
			return c, nil
		}
		s.log.Debug("launch candidate failed", "service", name, "command", cmdline, "error", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, name, errors.Join(errs...))
}

// monitor reaps the child and detects unexpected exits so the handle is
// never left stale. Requested stops are finalized by Stop itself.
func (s *Supervisor) monitor(name string, c *child) {
	err := c.cmd.Wait()
	close(c.waitDone)
	c.closeWriters()
	if c.stopRequested() {
		return
	}
	s.clearChild(name, c)
	s.reg.SetStatus(name, registry.StatusDisconnected)
	s.log.Warn("service exited unexpectedly", "service", name, "pid", c.PID(), "error", err)
}

// Stop terminates the named service. Stopping a service without a live
// handle is a no-op success.
func (s *Supervisor) Stop(name string) error {
	if _, ok := s.reg.Lookup(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if name == registry.SelfName {
		return fmt.Errorf("%w: %s", ErrNotSupervised, name)
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	c := s.getChild(name)
	if c == nil {
		return nil
	}
	c.terminate(s.stopGrace)
	s.clearChild(name, c)
	s.reg.SetStatus(name, registry.StatusStopped)
	metrics.IncStop(name)
	s.log.Info("service stopped", "service", name)
	return nil
}

// Shutdown terminates every live child so no detached process leaks past
// the orchestrator's own exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	children := make(map[string]*child, len(s.children))
	for n, c := range s.children {
		children[n] = c
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for name, c := range children {
		wg.Add(1)
		go func(name string, c *child) {
			defer wg.Done()
			c.terminate(s.stopGrace)
			s.clearChild(name, c)
			s.reg.SetStatus(name, registry.StatusStopped)
		}(name, c)
	}
	wg.Wait()
}
