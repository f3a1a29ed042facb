package sshx

import (
	"fmt"
	"time"
)

// ConnectionError indicates the SSH connection could not be established:
// authentication failure, unreachable host, or ready timeout elapsed.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ssh connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a remote command did not complete within its
// allotted window. Label identifies the command for diagnostics.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Label, e.Timeout)
}

// CommandError indicates a remote command exited non-zero when zero was
// required.
type CommandError struct {
	Label    string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d: %s", e.Label, e.ExitCode, e.Stderr)
}
