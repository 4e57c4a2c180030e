package repl

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/hanzlahmunir/gosh/internal/builtins"
	"github.com/hanzlahmunir/gosh/internal/executor"
	"github.com/hanzlahmunir/gosh/internal/history"
	"github.com/hanzlahmunir/gosh/internal/jobs"
	"github.com/hanzlahmunir/gosh/internal/signals"
)

func newTestREPL(t *testing.T, in, out *bytes.Buffer) *REPL {
	t.Helper()
	table := jobs.NewTable(8)
	hist := history.NewRing(8)
	sig := signals.New(table, unix.Getpgrp())
	reg := builtins.New(table, hist, sig)
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	exec := executor.New(table, reg, sig, unix.Getpgrp(), self)
	return New(table, hist, exec, in, out)
}

func TestRunExecutesExternalCommand(t *testing.T) {
	if _, err := exec.LookPath("printf"); err != nil {
		t.Skip("printf not on PATH")
	}
	in := bytes.NewBufferString("printf hello\n")
	out := &bytes.Buffer{}
	r := newTestREPL(t, in, out)

	// The executor hands a spawned command os.Stdout, not the REPL's
	// injected writer, so capture it by swapping os.Stdout.
	rp, wp, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	saved := os.Stdout
	os.Stdout = wp

	status := r.Run()

	os.Stdout = saved
	wp.Close()
	buf := &bytes.Buffer{}
	buf.ReadFrom(rp)

	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("output = %q, want it to contain %q", buf.String(), "hello")
	}
	if !strings.Contains(out.String(), Prompt) {
		t.Fatalf("repl writer = %q, want it to contain the prompt", out.String())
	}
}

func TestRunRecordsHistoryBeforeParsing(t *testing.T) {
	in := bytes.NewBufferString("echo a\nbadtoken'\n")
	out := &bytes.Buffer{}
	r := newTestREPL(t, in, out)

	r.Run()

	entries, _ := r.History.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %v, want 2 (both lines recorded even though the second fails to lex)", entries)
	}
}

func TestRunSweepsDoneJobsBeforePrompt(t *testing.T) {
	in := bytes.NewBufferString("\n")
	out := &bytes.Buffer{}
	r := newTestREPL(t, in, out)

	id, _ := r.Jobs.Add(12345, "sleep 1", jobs.Done)
	r.Run()

	if _, ok := r.Jobs.ByID(id); ok {
		t.Fatalf("expected Done job to be swept before the prompt")
	}
}

func TestRunSkipsEmptyLines(t *testing.T) {
	in := bytes.NewBufferString("   \n\n")
	out := &bytes.Buffer{}
	r := newTestREPL(t, in, out)

	r.Run()

	if r.History.Len() != 0 {
		t.Fatalf("History.Len() = %d, want 0 for blank-only input", r.History.Len())
	}
}
