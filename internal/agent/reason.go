package agent

import (
	"context"
	"errors"
)

// ShutdownReason records why the host context was cancelled.
type ShutdownReason int

const (
	// UserCancelled means the user (or a termination request on their behalf)
	// asked the agent to stop.
	UserCancelled ShutdownReason = iota
	// OperatingSystemShutdown means the OS is tearing the process down.
	OperatingSystemShutdown
)

func (r ShutdownReason) String() string {
	switch r {
	case UserCancelled:
		return "UserCancelled"
	case OperatingSystemShutdown:
		return "OperatingSystemShutdown"
	default:
		return "Unknown"
	}
}

// ShutdownError is the cancellation cause attached to the host context.
type ShutdownError struct {
	Reason ShutdownReason
}

func (e *ShutdownError) Error() string {
	return "agent shutdown requested: " + e.Reason.String()
}

// Is makes errors.Is(err, context.Canceled) hold for shutdown causes.
func (e *ShutdownError) Is(target error) bool {
	return target == context.Canceled
}

// ReasonFrom returns the shutdown reason behind a cancelled context.
func ReasonFrom(ctx context.Context) (ShutdownReason, bool) {
	var se *ShutdownError
	if errors.As(context.Cause(ctx), &se) {
		return se.Reason, true
	}
	return 0, false
}
