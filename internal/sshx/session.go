// Package sshx provides the remote-command execution primitive used by all
// provisioning steps: one live SSH connection per request, sequential
// command runs with per-command timeouts and captured output.
package sshx

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// CommandResult holds the outcome of one remote command execution
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner is the single primitive steps use to run remote commands.
// Implementations must be safe for sequential use; there is no shared shell
// state between calls, so callers chain `&&`/`;` within one command when
// combined effects are needed.
type CommandRunner interface {
	RunCommand(command, label string, timeout time.Duration, allowNonZeroExit bool) (*CommandResult, error)
}

// Session owns one SSH connection to a single (host, port, username, key)
// tuple. It is usable for an arbitrary number of sequential command
// executions until closed.
type Session struct {
	client *ssh.Client
	host   string
	logger *logrus.Entry
}

// Connect establishes an SSH connection. The ready timeout covers both the
// TCP dial and the SSH handshake; if it elapses first, a ConnectionError is
// returned.
func Connect(host string, port int, username, privateKey string, readyTimeout time.Duration) (*Session, error) {
	signer, err := ssh.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return nil, &ConnectionError{Host: host, Err: fmt.Errorf("failed to parse private key: %w", err)}
	}

	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         readyTimeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, readyTimeout)
	if err != nil {
		return nil, &ConnectionError{Host: host, Err: err}
	}

	// Bound the handshake by the same deadline, then clear it so long
	// command runs are governed only by their own per-command timeouts.
	if err := conn.SetDeadline(time.Now().Add(readyTimeout)); err != nil {
		conn.Close()
		return nil, &ConnectionError{Host: host, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, &ConnectionError{Host: host, Err: err}
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, &ConnectionError{Host: host, Err: err}
	}

	return &Session{
		client: ssh.NewClient(sshConn, chans, reqs),
		host:   host,
		logger: logrus.WithFields(logrus.Fields{"component": "sshx", "host": host, "user": username}),
	}, nil
}

// RunCommand executes one command on the remote host, accumulating stdout
// and stderr. The underlying channel is closed on every exit path,
// including timeout. If the command exits non-zero and allowNonZeroExit is
// false, a CommandError is returned; a timeout returns a TimeoutError
// carrying the label.
func (s *Session) RunCommand(command, label string, timeout time.Duration, allowNonZeroExit bool) (*CommandResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, &ConnectionError{Host: s.host, Err: fmt.Errorf("failed to open session: %w", err)}
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	start := time.Now()
	s.logger.Debugf("run %q (timeout=%s)", label, timeout)

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(command)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		// Best-effort kill; the deferred Close tears the channel down so
		// an abandoned command cannot leak a descriptor on this session.
		_ = sess.Signal(ssh.SIGKILL)
		s.logger.Warnf("command %q timed out after %s", label, timeout)
		return nil, &TimeoutError{Label: label, Timeout: timeout}
	}

	result := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return nil, &ConnectionError{Host: s.host, Err: fmt.Errorf("command %q failed: %w", label, err)}
		}
		result.ExitCode = exitErr.ExitStatus()
	}

	s.logger.Debugf("done %q (exit=%d, took=%s)", label, result.ExitCode, time.Since(start).Round(time.Millisecond))

	if result.ExitCode != 0 && !allowNonZeroExit {
		return nil, &CommandError{Label: label, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	return result, nil
}

// Close terminates the SSH connection
func (s *Session) Close() error {
	return s.client.Close()
}
