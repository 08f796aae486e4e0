package supervisor

import "errors"

var (
	// ErrUnknownService means the caller referenced a name that is not in
	// the descriptor table. Never retried.
	ErrUnknownService = errors.New("unknown service")

	// ErrLaunchFailed means every candidate launch command failed to
	// spawn. Terminal for the request; the user has to fix the
	// environment and retry manually.
	ErrLaunchFailed = errors.New("all launch commands failed")

	// ErrNotSupervised is returned when a lifecycle operation targets the
	// orchestrator's own record.
	ErrNotSupervised = errors.New("service is not supervised by this orchestrator")
)
