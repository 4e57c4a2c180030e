// Package signals installs and owns the shell's handlers for SIGCHLD,
// SIGINT, and SIGTSTP, translating kernel events into job-table
// updates.
package signals

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/hanzlahmunir/gosh/internal/jobs"
)

// Discipline owns the shell's signal handling goroutine and the shell's
// own process group id, used to decide whether SIGINT should be
// relayed to a foreground job or left alone.
type Discipline struct {
	jobs      *jobs.Table
	shellPGID int
	ch        chan os.Signal
	done      chan struct{}
	fgPGID    atomic.Int64 // pgid of the pipeline currently in the foreground wait, 0 if none
}

// New creates a Discipline for the given job table. shellPGID is the
// shell's own process group id, established at startup.
func New(table *jobs.Table, shellPGID int) *Discipline {
	return &Discipline{
		jobs:      table,
		shellPGID: shellPGID,
		ch:        make(chan os.Signal, 16),
		done:      make(chan struct{}),
	}
}

// Install registers the SIGCHLD/SIGINT/SIGTSTP handlers and starts the
// background goroutine that services them. SIGTSTP is ignored in the
// shell process: keyboard-generated SIGTSTP reaches the terminal's
// foreground process group directly, and since the shell restores
// itself to foreground between commands it never receives SIGTSTP
// while idle.
func (d *Discipline) Install() {
	signal.Ignore(syscall.SIGTSTP)
	signal.Notify(d.ch, syscall.SIGCHLD, syscall.SIGINT)
	go d.loop()
}

// Stop tears down the handler goroutine.
func (d *Discipline) Stop() {
	signal.Stop(d.ch)
	close(d.done)
}

// SetForegroundPGID records which pgid, if any, the executor is
// currently waiting on in the foreground. Pass 0 when no pipeline is in
// a foreground wait.
func (d *Discipline) SetForegroundPGID(pgid int) {
	d.fgPGID.Store(int64(pgid))
}

func (d *Discipline) loop() {
	for {
		select {
		case <-d.done:
			return
		case sig := <-d.ch:
			switch sig {
			case syscall.SIGCHLD:
				d.reapChildren()
			case syscall.SIGINT:
				d.relayInterrupt()
			}
		}
	}
}

// reapChildren loops on waitpid(-1, WNOHANG|WUNTRACED) until no more
// children are ready, consulting the job table for each reaped pid.
// A pid that doesn't resolve to a known job belongs to a foreground
// pipeline currently being waited on by the executor directly; this
// handler leaves those alone.
func (d *Discipline) reapChildren() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err != nil || pid <= 0 {
			return
		}

		pgid, err := unix.Getpgid(pid)
		if err != nil {
			// An exited child was fully reaped above and can no longer be
			// queried; a process group leader's pid is its pgid.
			pgid = pid
		}

		job, ok := d.jobs.ByPGID(pgid)
		if !ok {
			continue
		}

		switch {
		case ws.Stopped():
			d.jobs.UpdateStatusByPGID(pgid, jobs.Stopped)
			fmt.Printf("\n[%d]+  Stopped    %s\n", job.ID, job.Command)
		case ws.Exited() || ws.Signaled():
			d.jobs.UpdateStatusByPGID(pgid, jobs.Done)
		}
	}
}

// relayInterrupt forwards SIGINT to the current foreground process
// group, unless the foreground is the shell itself.
func (d *Discipline) relayInterrupt() {
	fg := int(d.fgPGID.Load())
	if fg == 0 || fg == d.shellPGID {
		return
	}
	_ = unix.Kill(-fg, unix.SIGINT)
}
