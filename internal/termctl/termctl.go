// Package termctl wraps the handful of terminal-ownership syscalls the
// executor and the fg/bg builtins both need: transferring the
// controlling terminal's foreground process group and reading the
// shell's own process group id.
package termctl

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetForeground makes pgid the controlling terminal's foreground
// process group. Errors are swallowed when stdin isn't a terminal
// (e.g. under a test harness or when input is redirected).
func SetForeground(pgid int) {
	_ = unix.IoctlSetInt(int(os.Stdin.Fd()), unix.TIOCSPGRP, pgid)
}

// Foreground returns the controlling terminal's current foreground
// process group id.
func Foreground() (int, error) {
	return unix.IoctlGetInt(int(os.Stdin.Fd()), unix.TIOCGPGRP)
}

// ShellPGID returns the calling process's own process group id.
func ShellPGID() int {
	return unix.Getpgrp()
}
