//go:build !windows

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"studiod/internal/probe"
	"studiod/internal/registry"
)

func testSupervisor(t *testing.T, descs []registry.Descriptor, opts ...Option) (*Supervisor, *registry.Registry) {
	t.Helper()
	reg, err := registry.Build(descs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p := probe.New(
		probe.WithAttemptTimeout(500*time.Millisecond),
		probe.WithPollInterval(20*time.Millisecond),
	)
	opts = append([]Option{WithStopGrace(time.Second)}, opts...)
	return New(reg, p, opts...), reg
}

// alwaysDown serves 503 on every request.
func alwaysDown(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// upAfterFirst fails the first probe and succeeds afterwards, modeling a
// service that only becomes healthy once the supervisor launches it.
func upAfterFirst(t *testing.T) *httptest.Server {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStartUnknownService(t *testing.T) {
	s, _ := testSupervisor(t, []registry.Descriptor{{Name: "lmStudio", Port: 1234}})
	err := s.Start(context.Background(), "nope")
	if !errors.Is(err, ErrUnknownService) {
		t.Fatalf("err = %v, want ErrUnknownService", err)
	}
	if err := s.Stop("nope"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("Stop err = %v, want ErrUnknownService", err)
	}
}

func TestSelfLifecycle(t *testing.T) {
	s, _ := testSupervisor(t, []registry.Descriptor{{Name: "lmStudio", Port: 1234}})
	if err := s.Start(context.Background(), registry.SelfName); err != nil {
		t.Fatalf("starting self should succeed trivially: %v", err)
	}
	if err := s.Stop(registry.SelfName); !errors.Is(err, ErrNotSupervised) {
		t.Fatalf("Stop(self) = %v, want ErrNotSupervised", err)
	}
}

func TestStartAdoptsHealthyService(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	// The command would fail if the supervisor ever tried to spawn it.
	s, reg := testSupervisor(t, []registry.Descriptor{{
		Name: "comfyUI", Port: 8188, HealthURL: healthy.URL,
		Commands: []string{"/nonexistent-binary-xyz"},
	}})
	if err := s.Start(context.Background(), "comfyUI"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st, _ := reg.Status("comfyUI"); st != registry.StatusConnected {
		t.Fatalf("status = %v, want connected", st)
	}
	if s.getChild("comfyUI") != nil {
		t.Fatal("adoption must not create a process handle")
	}
}

func TestStartAllCandidatesFail(t *testing.T) {
	down := alwaysDown(t)
	s, reg := testSupervisor(t, []registry.Descriptor{{
		Name: "comfyUI", Port: 8188, HealthURL: down.URL,
		Commands: []string{"/nonexistent-binary-xyz", "/another-missing-binary"},
	}})
	var changes atomic.Int32
	reg.OnChange(func(string, registry.Status, registry.PublicView) { changes.Add(1) })

	err := s.Start(context.Background(), "comfyUI")
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("err = %v, want ErrLaunchFailed", err)
	}
	if st, _ := reg.Status("comfyUI"); st != registry.StatusDisconnected {
		t.Fatalf("status = %v, want disconnected after launch failure", st)
	}
	if n := changes.Load(); n != 0 {
		t.Fatalf("launch failure must not emit status events, got %d", n)
	}
	if s.getChild("comfyUI") != nil {
		t.Fatal("failed launch left a handle behind")
	}
}

func TestStartNoCommandsConfigured(t *testing.T) {
	down := alwaysDown(t)
	s, _ := testSupervisor(t, []registry.Descriptor{{
		Name: "comfyUI", Port: 8188, HealthURL: down.URL,
	}})
	if err := s.Start(context.Background(), "comfyUI"); !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("err = %v, want ErrLaunchFailed", err)
	}
}

func TestStartSpawnThenStop(t *testing.T) {
	srv := upAfterFirst(t)
	s, reg := testSupervisor(t, []registry.Descriptor{{
		Name: "fileProcessor", Port: 3001, HealthURL: srv.URL,
		Commands: []string{"sleep 30"},
	}}, WithReadinessBudget(2*time.Second))

	if err := s.Start(context.Background(), "fileProcessor"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st, _ := reg.Status("fileProcessor"); st != registry.StatusConnected {
		t.Fatalf("status = %v, want connected", st)
	}
	c := s.getChild("fileProcessor")
	if c == nil || c.PID() <= 0 {
		t.Fatalf("expected live child, got %+v", c)
	}

	if err := s.Stop("fileProcessor"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st, _ := reg.Status("fileProcessor"); st != registry.StatusStopped {
		t.Fatalf("status = %v, want stopped", st)
	}
	if s.getChild("fileProcessor") != nil {
		t.Fatal("handle not cleared after stop")
	}

	// Stopping again is a quiet no-op.
	if err := s.Stop("fileProcessor"); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestReadinessTimeoutKeepsHandle(t *testing.T) {
	down := alwaysDown(t)
	s, reg := testSupervisor(t, []registry.Descriptor{{
		Name: "lmStudio", Port: 1234, HealthURL: down.URL,
		Commands: []string{"sleep 30"},
	}}, WithReadinessBudget(100*time.Millisecond))

	err := s.Start(context.Background(), "lmStudio")
	if !errors.Is(err, probe.ErrReadinessTimeout) {
		t.Fatalf("err = %v, want ErrReadinessTimeout", err)
	}
	if st, _ := reg.Status("lmStudio"); st != registry.StatusStarting {
		t.Fatalf("status = %v, want starting", st)
	}
	if s.getChild("lmStudio") == nil {
		t.Fatal("handle must survive a readiness timeout")
	}
	_ = s.Stop("lmStudio")
}

func TestMonitorDetectsUnexpectedExit(t *testing.T) {
	s, reg := testSupervisor(t, []registry.Descriptor{{
		Name:     "fileProcessor",
		Port:     3001,
		Commands: []string{"sleep 0.2"},
	}})
	if err := s.Start(context.Background(), "fileProcessor"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.getChild("fileProcessor") != nil {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not clear the exited child")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st, _ := reg.Status("fileProcessor"); st != registry.StatusDisconnected {
		t.Fatalf("status = %v, want disconnected after unexpected exit", st)
	}
}

func TestCheckOnceConvergesOncePerTransition(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	down := alwaysDown(t)

	s, reg := testSupervisor(t, []registry.Descriptor{
		{Name: "lmStudio", Port: 1234, HealthURL: healthy.URL},
		{Name: "comfyUI", Port: 8188, HealthURL: down.URL},
	})
	var changes atomic.Int32
	reg.OnChange(func(string, registry.Status, registry.PublicView) { changes.Add(1) })

	s.CheckOnce(context.Background())
	s.CheckOnce(context.Background())

	if st, _ := reg.Status("lmStudio"); st != registry.StatusConnected {
		t.Fatalf("lmStudio = %v, want connected", st)
	}
	if st, _ := reg.Status("comfyUI"); st != registry.StatusDisconnected {
		t.Fatalf("comfyUI = %v, want disconnected", st)
	}
	// lmStudio transitions once; comfyUI never leaves disconnected. A second
	// tick with unchanged reality must be silent.
	if n := changes.Load(); n != 1 {
		t.Fatalf("change events = %d, want 1", n)
	}
}

func TestShutdownTerminatesAllChildren(t *testing.T) {
	s, reg := testSupervisor(t, []registry.Descriptor{
		{Name: "lmStudio", Port: 1234, Commands: []string{"sleep 30"}},
		{Name: "comfyUI", Port: 8188, Commands: []string{"sleep 30"}},
	})
	for _, name := range []string{"lmStudio", "comfyUI"} {
		if err := s.Start(context.Background(), name); err != nil {
			t.Fatalf("Start(%s): %v", name, err)
		}
	}

	s.Shutdown()

	for _, name := range []string{"lmStudio", "comfyUI"} {
		if s.getChild(name) != nil {
			t.Fatalf("%s handle not cleared by shutdown", name)
		}
		if st, _ := reg.Status(name); st != registry.StatusStopped {
			t.Fatalf("%s = %v, want stopped", name, st)
		}
	}
}
