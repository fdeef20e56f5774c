// Package proc owns the lifecycle of worker subprocesses: spawn with
// stdio fully redirected, liveness observation without blocking on
// I/O, and bounded-time termination. Everything OS-specific about
// subprocess plumbing stays behind this package so the protocol layers
// above it remain stream-oriented.
package proc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/toolwire/toolwire/errors"
)

// launchers maps a worker script's file extension to the runtime that
// executes it. Anything not listed here is treated as a binary and run
// directly.
var launchers = map[string]string{
	".py":  "python3",
	".js":  "node",
	".mjs": "node",
	".sh":  "sh",
}

// LaunchCommand resolves the command line for a worker script: the
// runtime selected by file extension, with an argument vector of
// exactly the script path plus anything explicitly forwarded.
func LaunchCommand(scriptPath string, extra []string) (string, []string) {
	ext := filepath.Ext(scriptPath)
	if runtime, ok := launchers[ext]; ok {
		return runtime, append([]string{scriptPath}, extra...)
	}
	return scriptPath, extra
}

// Worker is a spawned subprocess with its stdin/stdout exposed as
// stream ends for a framed channel. Its stderr is copied verbatim to a
// diagnostics sink and never parsed as protocol data.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	waitErr error
}

// Spawn launches the worker for scriptPath with stdio redirected. The
// process is not tied to any context: it lives until it exits on its
// own or the caller Terminates it. On a spawn failure all opened pipes
// are already released.
func Spawn(scriptPath string, args []string, stderr io.Writer) (*Worker, error) {
	name, argv := LaunchCommand(scriptPath, args)
	cmd := exec.Command(name, argv...)
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd.Stderr = stderr

	// The stdio pipes are created here rather than via StdinPipe and
	// StdoutPipe so that Wait never closes an end this side still
	// reads: a frame the worker writes just before exiting stays in
	// the pipe until the reader drains it and sees EOF.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open stdin pipe for %s", scriptPath)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, errors.Wrapf(err, "failed to open stdout pipe for %s", scriptPath)
	}
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, errors.Wrapf(err, "failed to start worker %s", scriptPath)
	}
	// The child holds its own descriptors now. Dropping the parent's
	// copies of the child-side ends is what makes EOF propagate: the
	// reader sees end-of-stream once the worker exits, and the worker
	// sees end-of-input once stdin is closed here.
	stdinR.Close()
	stdoutW.Close()

	w := &Worker{
		cmd:    cmd,
		stdin:  stdinW,
		stdout: stdoutR,
		done:   make(chan struct{}),
	}
	// Reap the process as soon as it exits so no zombie outlives the
	// channel, whatever the exit path.
	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		w.waitErr = err
		w.mu.Unlock()
		close(w.done)
	}()
	return w, nil
}

// Stdin is the worker's input stream; close it to signal end-of-input.
func (w *Worker) Stdin() io.WriteCloser { return w.stdin }

// Stdout is the worker's output stream, closed when the process exits.
func (w *Worker) Stdout() io.Reader { return w.stdout }

// Alive reports whether the process has not yet exited.
func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Done is closed when the process has exited and been reaped. Other
// components use it to observe death without blocking on I/O.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err reports how the process ended: nil for a clean exit, an
// *exec.ExitError for a non-zero exit or a fatal signal. Meaningful
// only after Done is closed.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waitErr
}

// Pid returns the worker's process id, for diagnostics.
func (w *Worker) Pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// Terminate asks the worker to exit by closing its stdin, then waits
// until it does or ctx expires, at which point it is killed. The
// process is reaped on every path.
func (w *Worker) Terminate(ctx context.Context) error {
	w.once.Do(func() {
		w.stdin.Close()
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}

	if err := w.cmd.Process.Kill(); err != nil && w.Alive() {
		return fmt.Errorf("failed to kill worker pid %d: %w", w.Pid(), err)
	}
	<-w.done
	return nil
}
