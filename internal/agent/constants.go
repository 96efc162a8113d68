// Package agent holds the process-wide host context of vsts-pi: the root
// cancellation context, the termination (unloading) notification source, and
// the agent's constants.
package agent

import "time"

// Process exit codes.
const (
	ReturnCodeSuccess         = 0
	ReturnCodeTerminatedError = 1
	ReturnCodeRetryableError  = 2
	ReturnCodeAgentUpdating   = 3
)

// ExitOnUnloadTimeout is the default bound on how long a termination request
// waits for the running command to finish.
const ExitOnUnloadTimeout = 30 * time.Second

// BuildInfo identifies the running binary. Values are injected with ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}
