// Package procs supervises child processes from a reactor: starting
// them, reaping their exit status off-thread, and reporting it back
// onto the reactor goroutine. There is no direct original_source file
// for this collaborator — it is grounded conceptually on spec.md §1's
// framing of child-process supervision as an external collaborator,
// and on how original_source's src/bin/sink.rs treats a supervised
// process as something a binary wraps around the core reactor rather
// than something the reactor reaps itself.
package procs

import (
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/loopcraft/reactor"
	rsync "github.com/loopcraft/reactor/sync"
)

// ExitStatus summarizes how a supervised process terminated, built
// directly from the unix.Wait4 status word.
type ExitStatus struct {
	Pid      int
	ExitCode int
	Signal   unix.Signal
	Signaled bool
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("pid %d: killed by signal %s", s.Pid, s.Signal)
	}
	return fmt.Sprintf("pid %d: exit status %d", s.Pid, s.ExitCode)
}

// Child is a process under supervision.
type Child struct {
	Cmd  *exec.Cmd
	done *rsync.Oneshot[ExitStatus]
}

// Spawn starts cmd and arranges for its exit to be reaped off-thread
// and reported back onto h's reactor goroutine. Process reaping is a
// blocking OS call with no file descriptor to poll, so the wait itself
// runs on a helper goroutine: this is the one place this runtime
// crosses back out of pure readiness polling.
func Spawn(h *reactor.Handle, cmd *exec.Cmd) (*Child, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	pid := cmd.Process.Pid
	done := rsync.NewOneshot[ExitStatus]()

	go func() {
		var ws unix.WaitStatus
		for {
			_, err := unix.Wait4(pid, &ws, 0, nil)
			if err == unix.EINTR {
				continue
			}
			break
		}
		status := ExitStatus{Pid: pid}
		if ws.Signaled() {
			status.Signaled = true
			status.Signal = ws.Signal()
		} else {
			status.ExitCode = ws.ExitStatus()
		}
		h.RunOnLoop(func() { done.Send(status) })
	}()

	return &Child{Cmd: cmd, done: done}, nil
}

// Wait returns a Future resolving to the process's exit status.
func (c *Child) Wait() reactor.Future[rsync.OneshotResult[ExitStatus]] {
	return c.done.Recv()
}

// Kill sends SIGKILL to the process.
func (c *Child) Kill() error {
	return c.Cmd.Process.Kill()
}

// Signal sends sig to the process.
func (c *Child) Signal(sig unix.Signal) error {
	return unix.Kill(c.Cmd.Process.Pid, sig)
}
