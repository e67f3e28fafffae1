// Package shell runs external command sessions under a timeout with
// line-by-line output capture.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/diffuselab/sdqueue/internal/logger"
)

const (
	// maxLineSize bounds a single captured output line
	maxLineSize = 1024 * 1024
	// killGrace is how long to wait for process teardown after a kill
	killGrace = 10 * time.Second
)

// TimedOutExitCode is reported when the session was killed because of a
// timeout or cancellation rather than exiting on its own.
const TimedOutExitCode = -1

// Result is the outcome of a shell session. A non-zero exit code or a
// timeout is represented here, never as an error from Execute.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// TimedOut reports whether the session was forcibly terminated.
func (r *Result) TimedOut() bool {
	return r.ExitCode == TimedOutExitCode
}

// LineCallback receives one output line, synchronously as it arrives.
type LineCallback func(line string)

// Runner executes command sequences in a single shell session so that
// environment-activation commands affect the subsequent commands.
type Runner struct {
	// Shell is the shell binary used for the session
	Shell string
}

// NewRunner creates a Runner using /bin/sh.
func NewRunner() *Runner {
	return &Runner{Shell: "/bin/sh"}
}

// Execute pipes the commands into one interactive shell invocation and
// waits for it to exit, up to the timeout. On timeout or context
// cancellation the whole process group is killed and the exit code is
// TimedOutExitCode. Execute only returns an error when the shell could not
// be started; accumulated stdout/stderr are always part of the result.
func (r *Runner) Execute(ctx context.Context, commands []string, workingDir string, timeout time.Duration, onStdout, onStderr LineCallback) (*Result, error) {
	logger.Debugf("Executing shell session: %s", strings.Join(commands, " && "))

	cmd := exec.Command(r.Shell)
	cmd.Dir = workingDir
	// Own process group so a kill reaches descendants too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	go func() {
		defer func() { _ = stdin.Close() }()
		for _, command := range commands {
			if _, err := io.WriteString(stdin, command+"\n"); err != nil {
				return
			}
		}
	}()

	var outBuf, errBuf strings.Builder
	var readers sync.WaitGroup
	readers.Add(2)
	go collectLines(stdout, &outBuf, onStdout, &readers)
	go collectLines(stderr, &errBuf, onStderr, &readers)

	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		waitCh <- cmd.Wait()
	}()

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exitCode := 0
	select {
	case werr := <-waitCh:
		exitCode = exitCodeOf(werr)
	case <-tctx.Done():
		logger.Warnf("Shell session exceeded its deadline, killing process group %d", cmd.Process.Pid)
		killGroup(cmd)
		select {
		case <-waitCh:
		case <-time.After(killGrace):
			logger.Errorf("Process group %d did not exit within the kill grace period", cmd.Process.Pid)
		}
		exitCode = TimedOutExitCode
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
	}, nil
}

func collectLines(r io.Reader, buf *strings.Builder, cb LineCallback, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if cb != nil {
			cb(line)
		}
	}
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the whole process group
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return TimedOutExitCode
}
