package supervisor

import (
	"fmt"
	"time"
)

// Failures are classified into exactly one of four kinds. Callers branch
// with errors.As; the HTTP layer maps each kind to a status code.

// CircuitOpenError rejects a call without spawning anything: the breaker is
// open after repeated failures. Fast, non-retryable — back off instead of
// hammering a degraded bd.
type CircuitOpenError struct {
	// RetryAfter is how long until the breaker allows a trial call.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// TimeoutError means the process exceeded its effective timeout and was
// forcibly terminated. Retryable at the caller's discretion.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	// Output captured before the kill, for diagnostics.
	Stdout string
	Stderr string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
}

// ExitError means the process completed with a non-zero exit code. Stderr
// usually carries the command's own diagnostic message.
type ExitError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, firstLine(e.Stderr))
	}
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

// SpawnError means the executable could not be launched at all (not found,
// permission denied). A deployment problem — do not retry without operator
// intervention.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
