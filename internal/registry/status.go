package registry

// Status is the closed set of states a managed service can be in.
// Using a distinct type keeps misspelled states out of the table and
// out of the wire protocol.
type Status string

const (
	// StatusRunning is reserved for the orchestrator's own record; it is
	// never probed and never transitions.
	StatusRunning Status = "running"
	// StatusStarting means a launch command spawned and readiness is pending.
	StatusStarting Status = "starting"
	// StatusConnected means the last health probe succeeded.
	StatusConnected Status = "connected"
	// StatusDisconnected means the last health probe failed or no probe
	// has succeeded yet.
	StatusDisconnected Status = "disconnected"
	// StatusStopped means the orchestrator terminated the service on request.
	StatusStopped Status = "stopped"
	// StatusError means the last start attempt failed to launch.
	StatusError Status = "error"
)

// Valid reports whether s is one of the defined states.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusStarting, StatusConnected, StatusDisconnected, StatusStopped, StatusError:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }
