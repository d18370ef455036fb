package memmon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const terminateGrace = 5 * time.Second

// child is a started command whose exit is reported on done.
type child struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	done   chan error
	exited bool
	err    error
}

func startChild(command []string, stdout io.Writer) (*child, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("%w: no command given", ErrInvalidConfig)
	}
	if stdout == nil {
		stdout = io.Discard
	}

	cmd := exec.Command(command[0], command[1:]...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, wrapCommandError(err, stderr.String())
	}

	c := &child{cmd: cmd, stderr: &stderr, done: make(chan error, 1)}
	go func() {
		c.done <- cmd.Wait()
	}()
	return c, nil
}

func (c *child) pid() int {
	return c.cmd.Process.Pid
}

// poll reports whether the child has exited without blocking.
func (c *child) poll() bool {
	if c.exited {
		return true
	}
	select {
	case err := <-c.done:
		c.reap(err)
	default:
	}
	return c.exited
}

func (c *child) reap(err error) {
	c.exited = true
	c.err = err
}

// terminate sends SIGTERM, then kills the child if it outlives the grace
// period. It always waits for the child to be reaped.
func (c *child) terminate(grace time.Duration) {
	if c.poll() {
		return
	}
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = c.cmd.Process.Kill()
	}
	select {
	case err := <-c.done:
		c.reap(err)
	case <-time.After(grace):
		_ = c.cmd.Process.Kill()
		c.reap(<-c.done)
	}
}

// exitCode returns the child's exit status, -1 when killed by a signal.
func (c *child) exitCode() int {
	if c.err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(c.err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func wrapCommandError(err error, stderr string) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	trimmed := strings.TrimSpace(stderr)
	if strings.Contains(strings.ToLower(trimmed), "permission denied") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, trimmed)
	}
	if trimmed != "" {
		return fmt.Errorf("%v: %s", err, trimmed)
	}
	return err
}
