// Command gosh is an interactive Unix-like shell: a lexer, a parser, a
// job-control executor, and a signal discipline wired together around a
// read-eval-print loop.
package main

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/hanzlahmunir/gosh/internal/builtins"
	"github.com/hanzlahmunir/gosh/internal/executor"
	"github.com/hanzlahmunir/gosh/internal/history"
	"github.com/hanzlahmunir/gosh/internal/jobs"
	"github.com/hanzlahmunir/gosh/internal/repl"
	"github.com/hanzlahmunir/gosh/internal/signals"
	"github.com/hanzlahmunir/gosh/internal/termctl"
)

func main() {
	if os.Getenv(executor.BuiltinStageEnvKey) == executor.BuiltinStageEnvValue {
		runBuiltinStage()
		return
	}
	runShell()
}

// runBuiltinStage is what a re-exec'd child actually runs: it never
// starts a REPL, never installs signal handlers, and never owns the
// terminal. It exists only so a pipeline stage or a backgrounded
// command naming a builtin gets a real OS process with its own pid and
// file descriptors, the same way an external command would.
func runBuiltinStage() {
	reg := builtins.New(jobs.NewTable(1), history.NewRing(1), nil)
	os.Exit(reg.Execute(os.Args[1:]))
}

// runShell establishes the interactive shell: its own process group,
// terminal ownership, and the shared job table, history ring, signal
// discipline, builtin registry, and executor that the REPL threads
// every line through.
func runShell() {
	pid := os.Getpid()
	if err := unix.Setpgid(pid, pid); err != nil {
		// Already a process group leader (e.g. run as a session's
		// first process); not fatal.
		_ = err
	}
	shellPGID := unix.Getpgrp()
	termctl.SetForeground(shellPGID)

	jobTable := jobs.NewTable(jobs.DefaultCapacity)
	hist := history.NewRing(history.Capacity)
	sig := signals.New(jobTable, shellPGID)
	sig.Install()
	defer sig.Stop()

	reg := builtins.New(jobTable, hist, sig)
	exec := executor.New(jobTable, reg, sig, shellPGID, "")

	r := repl.New(jobTable, hist, exec, os.Stdin, os.Stdout)
	os.Exit(r.Run())
}
