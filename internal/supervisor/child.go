package supervisor

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"studiod/internal/logger"
)

// child is the ownership handle for one spawned OS process. It is held
// exclusively by the Supervisor: set on successful spawn, cleared on
// explicit stop or when the monitor reaps an unexpected exit. Termination
// is best-effort; a cleared handle means the orchestrator is no longer
// responsible for the process, not that it is definitely gone.
type child struct {
	mu        sync.Mutex
	name      string
	command   string
	cmd       *exec.Cmd
	outW      io.WriteCloser
	errW      io.WriteCloser
	waitDone  chan struct{} // closed by the monitor when cmd.Wait returns
	stopping  bool          // true once a stop has been requested
	startedAt time.Time
}

// spawn builds and starts a detached process for one candidate launch
// command. A non-nil error means this candidate failed to spawn and the
// caller should try the next one.
func spawn(name, cmdline string, logCfg logger.Config) (*child, error) {
	cmd := buildCommand(cmdline)
	configureDetached(cmd)

	c := &child{name: name, command: cmdline, waitDone: make(chan struct{})}
	if logCfg.Dir != "" {
		_ = os.MkdirAll(logCfg.Dir, 0o750)
	}
	outW, errW, _ := logCfg.Writers(name)
	c.outW, c.errW = outW, errW
	if outW != nil {
		cmd.Stdout = outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if errW != nil {
		cmd.Stderr = errW
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	if err := cmd.Start(); err != nil {
		c.closeWriters()
		return nil, err
	}
	c.cmd = cmd
	c.startedAt = time.Now()
	return c, nil
}

func (c *child) PID() int {
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return 0
}

func (c *child) markStopping() {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
}

func (c *child) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *child) closeWriters() {
	c.mu.Lock()
	if c.outW != nil {
		_ = c.outW.Close()
		c.outW = nil
	}
	if c.errW != nil {
		_ = c.errW.Close()
		c.errW = nil
	}
	c.mu.Unlock()
}

// terminate asks the process group to exit and escalates to a hard kill
// after the grace period. The monitor goroutine owns cmd.Wait; terminate
// only observes waitDone.
func (c *child) terminate(grace time.Duration) {
	c.markStopping()
	pid := c.PID()
	if pid == 0 {
		return
	}
	signalTerm(pid)
	select {
	case <-c.waitDone:
		return
	case <-time.After(grace):
	}
	signalKill(pid)
	select {
	case <-c.waitDone:
	case <-time.After(200 * time.Millisecond):
		// best-effort
	}
}
