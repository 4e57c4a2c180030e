// Package executor forks command processes, assembles pipes between
// them, places them in process groups, manages terminal foreground
// ownership, reaps children, and runs built-ins either in the shell
// process or, for pipeline/background stages, in a re-exec'd child.
package executor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/hanzlahmunir/gosh/internal/builtins"
	"github.com/hanzlahmunir/gosh/internal/jobs"
	"github.com/hanzlahmunir/gosh/internal/parser"
	"github.com/hanzlahmunir/gosh/internal/shellio"
	"github.com/hanzlahmunir/gosh/internal/signals"
	"github.com/hanzlahmunir/gosh/internal/termctl"
)

// BuiltinStageEnvKey/Value mark the environment of a re-exec'd child
// that should run exactly one builtin and exit with its status, instead
// of starting a new shell. cmd/gosh checks os.Getenv(BuiltinStageEnvKey)
// before doing anything else.
const (
	BuiltinStageEnvKey   = "GOSH_BUILTIN_STAGE"
	BuiltinStageEnvValue = "1"
	BuiltinStageEnv      = BuiltinStageEnvKey + "=" + BuiltinStageEnvValue
)

// Executor owns the shared state needed to run pipelines: the job
// table, the builtin registry (for the in-process fast path), the
// signal discipline (to hand off foreground-pgid tracking), and the
// shell's own pgid and path to itself (for re-exec'ing builtins that
// must run out of process).
type Executor struct {
	Jobs      *jobs.Table
	Builtins  *builtins.Registry
	Signals   *signals.Discipline
	ShellPGID int
	selfPath  string
}

// New creates an Executor. selfPath is the path used to re-exec this
// binary for built-ins that must run as a separate process (pipeline
// stages, or a backgrounded built-in); if empty, os.Executable() is
// used.
func New(table *jobs.Table, reg *builtins.Registry, sig *signals.Discipline, shellPGID int, selfPath string) *Executor {
	if selfPath == "" {
		if p, err := os.Executable(); err == nil {
			selfPath = p
		} else {
			selfPath = os.Args[0]
		}
	}
	return &Executor{Jobs: table, Builtins: reg, Signals: sig, ShellPGID: shellPGID, selfPath: selfPath}
}

// Execute runs pipeline, returning the exit status of the last command
// (0 immediately for a backgrounded pipeline, after registering the
// job). cmdLine is the original input line, used for job-table and
// history display.
func (e *Executor) Execute(pipeline *parser.Pipeline, cmdLine string) int {
	if pipeline == nil || len(pipeline.Commands) == 0 {
		return 0
	}

	cmds := pipeline.Commands
	if len(cmds) == 1 && !pipeline.Background && builtins.IsBuiltin(cmds[0].Argv[0]) {
		return e.runBuiltinInProcess(cmds[0])
	}
	if len(cmds) == 1 {
		return e.runSingle(cmds[0], pipeline.Background, cmdLine)
	}
	return e.runPipeline(cmds, pipeline.Background, cmdLine)
}

// runBuiltinInProcess honors redirections around a builtin executed
// synchronously in the shell's own process: it duplicates stdin/stdout
// to saved descriptors, applies redirections via open+dup2, runs the
// builtin, then restores from the saved descriptors.
func (e *Executor) runBuiltinInProcess(cmd parser.Command) int {
	savedStdin, err := unix.Dup(0)
	if err != nil {
		shellio.Errorf("dup: %v", err)
		return 1
	}
	savedStdout, err := unix.Dup(1)
	if err != nil {
		shellio.Errorf("dup: %v", err)
		unix.Close(savedStdin)
		return 1
	}
	defer func() {
		unix.Dup2(savedStdin, 0)
		unix.Dup2(savedStdout, 1)
		unix.Close(savedStdin)
		unix.Close(savedStdout)
	}()

	if cmd.Redir.InFile != "" {
		fd, err := unix.Open(cmd.Redir.InFile, unix.O_RDONLY, 0)
		if err != nil {
			shellio.Errorf("%s: %v", cmd.Redir.InFile, err)
			return 1
		}
		unix.Dup2(fd, 0)
		unix.Close(fd)
	}
	if cmd.Redir.OutFile != "" {
		flags := unix.O_WRONLY | unix.O_CREAT
		if cmd.Redir.Append {
			flags |= unix.O_APPEND
		} else {
			flags |= unix.O_TRUNC
		}
		fd, err := unix.Open(cmd.Redir.OutFile, flags, 0644)
		if err != nil {
			shellio.Errorf("%s: %v", cmd.Redir.OutFile, err)
			return 1
		}
		unix.Dup2(fd, 1)
		unix.Close(fd)
	}

	return e.Builtins.Execute(cmd.Argv)
}

// childSpec resolves how to launch one pipeline stage: either the
// named external binary, or (when the stage names a builtin) a
// re-exec of this binary in builtin-stage mode.
func (e *Executor) childSpec(cmd parser.Command) (path string, args []string, env []string) {
	if builtins.IsBuiltin(cmd.Argv[0]) {
		return e.selfPath, cmd.Argv, append(os.Environ(), BuiltinStageEnv)
	}
	return cmd.Argv[0], cmd.Argv[1:], nil
}

// runSingle runs one non-piped command, external or built-in. A
// foreground built-in that is also non-piped never reaches here (see
// Execute); a backgrounded built-in does, since it must run out of the
// shell's own process to avoid blocking the REPL.
func (e *Executor) runSingle(cmd parser.Command, background bool, cmdLine string) int {
	path, args, env := e.childSpec(cmd)
	execCmd := exec.Command(path, args...)
	execCmd.Env = env
	execCmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	var toClose []*os.File

	if cmd.Redir.InFile != "" {
		f, err := os.Open(cmd.Redir.InFile)
		if err != nil {
			shellio.Errorf("%s: %v", cmd.Redir.InFile, err)
			return 1
		}
		execCmd.Stdin = f
		toClose = append(toClose, f)
	} else if background {
		f, err := os.Open(os.DevNull)
		if err != nil {
			shellio.Errorf("%v", err)
			return 1
		}
		execCmd.Stdin = f
		toClose = append(toClose, f)
	} else {
		execCmd.Stdin = os.Stdin
	}

	if cmd.Redir.OutFile != "" {
		f, err := openOutFile(cmd.Redir.OutFile, cmd.Redir.Append)
		if err != nil {
			shellio.Errorf("%s: %v", cmd.Redir.OutFile, err)
			closeAll(toClose)
			return 1
		}
		execCmd.Stdout = f
		toClose = append(toClose, f)
	} else {
		execCmd.Stdout = os.Stdout
	}
	execCmd.Stderr = os.Stderr

	if err := execCmd.Start(); err != nil {
		shellio.Errorf("%s: %v", path, commandNotFoundOrErr(err))
		closeAll(toClose)
		return 1
	}
	closeAll(toClose)

	pid := execCmd.Process.Pid
	_ = unix.Setpgid(pid, pid) // defensive against the fork/setpgid race; idempotent
	pgid := pid

	if background {
		id, err := e.Jobs.Add(pgid, cmdLine, jobs.Running)
		if err != nil {
			shellio.Errorf("%v", err)
			return 1
		}
		fmt.Printf("[%d] %d\n", id, pgid)
		termctl.SetForeground(e.ShellPGID)
		return 0
	}

	termctl.SetForeground(pgid)
	e.Signals.SetForegroundPGID(pgid)
	status := e.waitForeground(pid, pgid, cmdLine)
	e.Signals.SetForegroundPGID(0)
	termctl.SetForeground(e.ShellPGID)
	return status
}

// runPipeline runs N>=2 commands connected by N-1 anonymous pipes,
// sharing one process group assigned at the first fork.
func (e *Executor) runPipeline(cmds []parser.Command, background bool, cmdLine string) int {
	n := len(cmds)
	pipeFiles := make([]*os.File, 0, 2*(n-1))
	readEnds := make([]*os.File, n-1)
	writeEnds := make([]*os.File, n-1)

	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			shellio.Errorf("pipe: %v", err)
			closeAll(pipeFiles)
			return -1
		}
		readEnds[i], writeEnds[i] = r, w
		pipeFiles = append(pipeFiles, r, w)
	}

	var toClose []*os.File
	var pids []int
	pgid := 0

	abort := func(reason string) int {
		for _, p := range pids {
			_ = unix.Kill(p, unix.SIGTERM)
		}
		closeAll(pipeFiles)
		closeAll(toClose)
		shellio.Errorf("%s", reason)
		return -1
	}

	for i, cmd := range cmds {
		path, args, env := e.childSpec(cmd)
		execCmd := exec.Command(path, args...)
		execCmd.Env = env
		if pgid == 0 {
			execCmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
		} else {
			execCmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true, Pgid: pgid}
		}

		if i == 0 {
			switch {
			case cmd.Redir.InFile != "":
				f, err := os.Open(cmd.Redir.InFile)
				if err != nil {
					return abort(fmt.Sprintf("%s: %v", cmd.Redir.InFile, err))
				}
				execCmd.Stdin = f
				toClose = append(toClose, f)
			case background:
				f, err := os.Open(os.DevNull)
				if err != nil {
					return abort(err.Error())
				}
				execCmd.Stdin = f
				toClose = append(toClose, f)
			default:
				execCmd.Stdin = os.Stdin
			}
		} else {
			execCmd.Stdin = readEnds[i-1]
		}

		if i == n-1 {
			if cmd.Redir.OutFile != "" {
				f, err := openOutFile(cmd.Redir.OutFile, cmd.Redir.Append)
				if err != nil {
					return abort(fmt.Sprintf("%s: %v", cmd.Redir.OutFile, err))
				}
				execCmd.Stdout = f
				toClose = append(toClose, f)
			} else {
				execCmd.Stdout = os.Stdout
			}
		} else {
			execCmd.Stdout = writeEnds[i]
		}
		execCmd.Stderr = os.Stderr

		if err := execCmd.Start(); err != nil {
			return abort(fmt.Sprintf("%s: %v", path, err))
		}

		pid := execCmd.Process.Pid
		if pgid == 0 {
			pgid = pid
		}
		_ = unix.Setpgid(pid, pgid) // defensive, idempotent

		pids = append(pids, pid)
	}

	closeAll(pipeFiles)
	closeAll(toClose)

	if background {
		id, err := e.Jobs.Add(pgid, cmdLine, jobs.Running)
		if err != nil {
			shellio.Errorf("%v", err)
			return 1
		}
		fmt.Printf("[%d] %d\n", id, pgid)
		termctl.SetForeground(e.ShellPGID)
		return 0
	}

	termctl.SetForeground(pgid)
	e.Signals.SetForegroundPGID(pgid)

	lastPid := pids[n-1]
	status := e.waitForeground(lastPid, pgid, cmdLine)

	for _, p := range pids[:n-1] {
		var ws unix.WaitStatus
		_, _ = unix.Wait4(p, &ws, unix.WNOHANG, nil)
	}

	e.Signals.SetForegroundPGID(0)
	termctl.SetForeground(e.ShellPGID)
	return status
}

// waitForeground blocks on pid with WUNTRACED, translating the result
// into a pipeline exit status. A stopped process is registered as a
// new Stopped job under pgid and 0 is returned to the REPL.
func (e *Executor) waitForeground(pid, pgid int, cmdLine string) int {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err != nil {
			return -1
		}
		switch {
		case ws.Stopped():
			id, addErr := e.Jobs.Add(pgid, cmdLine, jobs.Stopped)
			if addErr == nil {
				fmt.Printf("\n[%d]+  Stopped    %s\n", id, cmdLine)
			}
			return 0
		case ws.Signaled():
			return 128 + int(ws.Signal())
		case ws.Exited():
			return ws.ExitStatus()
		}
	}
}

func openOutFile(path string, append bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0644)
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func commandNotFoundOrErr(err error) error {
	if os.IsNotExist(err) || errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("command not found")
	}
	return err
}
