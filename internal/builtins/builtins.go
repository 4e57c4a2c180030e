// Package builtins recognizes and implements the shell's built-in
// commands: cd, pwd, exit, echo, mkdir, rmdir, touch, rm, cat, ls,
// jobs, fg, bg, history, export, unset.
//
// Execute runs a builtin synchronously in the calling process, writing
// to the process's current stdout/stderr. The executor is responsible
// for ensuring those descriptors already carry the right redirections
// (or pipe ends) before calling in; builtins never touch fd plumbing
// themselves.
package builtins

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"

	"github.com/hanzlahmunir/gosh/internal/history"
	"github.com/hanzlahmunir/gosh/internal/jobs"
	"github.com/hanzlahmunir/gosh/internal/shellio"
	"github.com/hanzlahmunir/gosh/internal/signals"
	"github.com/hanzlahmunir/gosh/internal/termctl"
)

// names is the fixed recognized set of builtin command names.
var names = map[string]bool{
	"cd": true, "pwd": true, "exit": true, "echo": true,
	"mkdir": true, "rmdir": true, "touch": true, "rm": true,
	"cat": true, "ls": true, "jobs": true, "fg": true, "bg": true,
	"history": true, "export": true, "unset": true,
}

// Registry holds the shared shell state builtins need: the job table
// (jobs, fg, bg), the history ring (history), and the signal
// discipline (fg, to hand it the new foreground pgid).
type Registry struct {
	Jobs    *jobs.Table
	History *history.Ring
	Signals *signals.Discipline
}

// New creates a builtin Registry over the given shared state.
func New(table *jobs.Table, hist *history.Ring, sig *signals.Discipline) *Registry {
	return &Registry{Jobs: table, History: hist, Signals: sig}
}

// IsBuiltin reports whether name is a recognized builtin.
func IsBuiltin(name string) bool {
	return names[name]
}

// Execute runs the builtin named by argv[0] and returns its exit
// status. Calling Execute with argv[0] == "exit" terminates the
// process directly and does not return.
func (r *Registry) Execute(argv []string) int {
	if len(argv) == 0 {
		return 0
	}

	switch argv[0] {
	case "cd":
		return r.cd(argv)
	case "pwd":
		return r.pwd(argv)
	case "exit":
		return r.exit(argv)
	case "echo":
		return r.echo(argv)
	case "mkdir":
		return r.mkdir(argv)
	case "rmdir":
		return r.rmdir(argv)
	case "touch":
		return r.touch(argv)
	case "rm":
		return r.rm(argv)
	case "cat":
		return r.cat(argv)
	case "ls":
		return r.ls(argv)
	case "jobs":
		return r.jobs(argv)
	case "fg":
		return r.fg(argv)
	case "bg":
		return r.bg(argv)
	case "history":
		return r.history(argv)
	case "export":
		return r.export(argv)
	case "unset":
		return r.unset(argv)
	default:
		shellio.CommandErrorf(argv[0], "not a builtin")
		return 1
	}
}

func (r *Registry) cd(argv []string) int {
	var dir string
	if len(argv) < 2 {
		dir = os.Getenv("HOME")
	} else {
		dir = argv[1]
	}
	if dir == "" {
		shellio.CommandErrorf("cd", "HOME not set")
		return 1
	}
	if err := os.Chdir(dir); err != nil {
		shellio.CommandErrorf("cd", "%v", err)
		return 1
	}
	return 0
}

func (r *Registry) pwd(argv []string) int {
	dir, err := os.Getwd()
	if err != nil {
		shellio.CommandErrorf("pwd", "%v", err)
		return 1
	}
	fmt.Println(dir)
	return 0
}

func (r *Registry) exit(argv []string) int {
	code := 0
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			code = n
		}
	}
	os.Exit(code)
	return code // unreachable
}

func (r *Registry) echo(argv []string) int {
	args := argv[1:]
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	fmt.Print(strings.Join(args, " "))
	if newline {
		fmt.Print("\n")
	}
	return 0
}

func (r *Registry) mkdir(argv []string) int {
	if len(argv) < 2 {
		shellio.CommandErrorf("mkdir", "missing operand")
		return 1
	}
	status := 0
	for _, dir := range argv[1:] {
		if err := os.Mkdir(dir, 0755); err != nil {
			shellio.CommandErrorf("mkdir", "%v", err)
			status = 1
		}
	}
	return status
}

func (r *Registry) touch(argv []string) int {
	if len(argv) < 2 {
		shellio.CommandErrorf("touch", "missing operand")
		return 1
	}
	status := 0
	for _, name := range argv[1:] {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			shellio.CommandErrorf("touch", "%v", err)
			status = 1
			continue
		}
		f.Close()
	}
	return status
}

func (r *Registry) rmdir(argv []string) int {
	if len(argv) < 2 {
		shellio.CommandErrorf("rmdir", "missing operand")
		return 1
	}
	status := 0
	for _, dir := range argv[1:] {
		if err := os.Remove(dir); err != nil {
			shellio.CommandErrorf("rmdir", "%v", err)
			status = 1
		}
	}
	return status
}

func (r *Registry) rm(argv []string) int {
	recursive, force := false, false
	args := argv[1:]
	i := 0
	for ; i < len(args) && strings.HasPrefix(args[i], "-") && args[i] != "-"; i++ {
		switch args[i] {
		case "-r", "-R":
			recursive = true
		case "-f":
			force = true
		case "-rf", "-fr":
			recursive, force = true, true
		default:
			shellio.CommandErrorf("rm", "invalid option -- '%s'", args[i])
			return 1
		}
	}
	targets := args[i:]
	if len(targets) == 0 {
		shellio.CommandErrorf("rm", "missing operand")
		return 1
	}

	status := 0
	for _, target := range targets {
		var err error
		if recursive {
			err = os.RemoveAll(target)
		} else {
			err = os.Remove(target)
		}
		if err != nil && !(force && os.IsNotExist(err)) {
			shellio.CommandErrorf("rm", "%v", err)
			status = 1
		}
	}
	return status
}

func (r *Registry) cat(argv []string) int {
	files := argv[1:]
	if len(files) == 0 {
		if _, err := io.Copy(os.Stdout, os.Stdin); err != nil {
			shellio.CommandErrorf("cat", "%v", err)
			return 1
		}
		return 0
	}

	status := 0
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			shellio.CommandErrorf("cat", "%s: %v", name, err)
			status = 1
			continue
		}
		if _, err := io.Copy(os.Stdout, f); err != nil {
			shellio.CommandErrorf("cat", "%s: %v", name, err)
			status = 1
		}
		f.Close()
	}
	return status
}

func (r *Registry) ls(argv []string) int {
	showAll := false
	i := 1
	for ; i < len(argv) && strings.HasPrefix(argv[i], "-"); i++ {
		switch argv[i] {
		case "-a":
			showAll = true
		default:
			shellio.CommandErrorf("ls", "invalid option -- '%s'", strings.TrimPrefix(argv[i], "-"))
			return 1
		}
	}

	dirs := argv[i:]
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	blue := color.New(color.FgBlue)
	status := 0

	for d, dir := range dirs {
		if len(dirs) > 1 {
			fmt.Printf("%s:\n", dir)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			shellio.CommandErrorf("ls", "cannot access '%s': %v", dir, err)
			status = 1
			continue
		}

		entryNames := make([]string, 0, len(entries))
		isDir := make(map[string]bool, len(entries))
		for _, e := range entries {
			if !showAll && strings.HasPrefix(e.Name(), ".") {
				continue
			}
			entryNames = append(entryNames, e.Name())
			isDir[e.Name()] = e.IsDir()
		}
		sort.Strings(entryNames)

		for _, name := range entryNames {
			if isDir[name] {
				blue.Println(name)
			} else {
				fmt.Println(name)
			}
		}

		if d < len(dirs)-1 {
			fmt.Println()
		}
	}
	return status
}

func (r *Registry) jobs(argv []string) int {
	for _, job := range r.Jobs.ListActive() {
		fmt.Printf("[%d] %s %s\n", job.ID, job.Status, job.Command)
	}
	return 0
}

func (r *Registry) fg(argv []string) int {
	if len(argv) < 2 {
		shellio.CommandErrorf("fg", "usage: fg job_id")
		return 1
	}
	id, err := strconv.Atoi(argv[1])
	if err != nil || id <= 0 {
		shellio.CommandErrorf("fg", "%s: no such job", argv[1])
		return 1
	}
	job, ok := r.Jobs.ByID(id)
	if !ok {
		shellio.CommandErrorf("fg", "%d: no such job", id)
		return 1
	}

	if job.Status == jobs.Stopped {
		if err := unix.Kill(-job.PGID, unix.SIGCONT); err != nil {
			shellio.CommandErrorf("fg", "%v", err)
			return 1
		}
		r.Jobs.UpdateStatusByID(id, jobs.Running)
	}

	termctl.SetForeground(job.PGID)
	if r.Signals != nil {
		r.Signals.SetForegroundPGID(job.PGID)
	}

	status := 0
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(-job.PGID, &ws, unix.WUNTRACED, nil)
		if err != nil {
			break
		}
		if ws.Stopped() {
			r.Jobs.UpdateStatusByPGID(job.PGID, jobs.Stopped)
			fmt.Printf("\n[%d]+  Stopped    %s\n", job.ID, job.Command)
			break
		}
		if ws.Exited() || ws.Signaled() {
			if ws.Signaled() {
				status = 128 + int(ws.Signal())
			} else {
				status = ws.ExitStatus()
			}
			r.Jobs.RemoveByID(id)
			break
		}
	}

	if r.Signals != nil {
		r.Signals.SetForegroundPGID(0)
	}
	termctl.SetForeground(termctl.ShellPGID())
	return status
}

func (r *Registry) bg(argv []string) int {
	if len(argv) < 2 {
		shellio.CommandErrorf("bg", "usage: bg job_id")
		return 1
	}
	id, err := strconv.Atoi(argv[1])
	if err != nil || id <= 0 {
		shellio.CommandErrorf("bg", "%s: no such job", argv[1])
		return 1
	}
	job, ok := r.Jobs.ByID(id)
	if !ok {
		shellio.CommandErrorf("bg", "%d: no such job", id)
		return 1
	}
	if job.Status != jobs.Stopped {
		shellio.CommandErrorf("bg", "job %d is not stopped", id)
		return 1
	}

	if err := unix.Kill(-job.PGID, unix.SIGCONT); err != nil {
		shellio.CommandErrorf("bg", "%v", err)
		return 1
	}
	r.Jobs.UpdateStatusByID(id, jobs.Running)
	fmt.Printf("[%d]+ %s &\n", id, job.Command)
	return 0
}

func (r *Registry) history(argv []string) int {
	entries, first := r.History.Entries()
	for i, cmd := range entries {
		fmt.Printf("%5d  %s\n", first+i, cmd)
	}
	return 0
}

func (r *Registry) export(argv []string) int {
	if len(argv) < 2 {
		for _, kv := range os.Environ() {
			fmt.Printf("declare -x %s\n", kv)
		}
		return 0
	}

	status := 0
	for _, arg := range argv[1:] {
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			name, value := arg[:eq], arg[eq+1:]
			if err := os.Setenv(name, value); err != nil {
				shellio.CommandErrorf("export", "%v", err)
				status = 1
			}
			continue
		}
		if _, ok := os.LookupEnv(arg); !ok {
			shellio.CommandErrorf("export", "%s: variable not set", arg)
			status = 1
		}
	}
	return status
}

func (r *Registry) unset(argv []string) int {
	if len(argv) < 2 {
		shellio.CommandErrorf("unset", "usage: unset name...")
		return 1
	}
	status := 0
	for _, name := range argv[1:] {
		if err := os.Unsetenv(name); err != nil {
			shellio.CommandErrorf("unset", "%v", err)
			status = 1
		}
	}
	return status
}
