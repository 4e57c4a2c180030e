// Package repl implements the shell's top-level read-eval-print loop:
// read a line, record it to history, tokenize and parse it, and hand
// the resulting pipeline to the executor. Lexer and parser errors are
// reported and simply reprompt; the shell itself never exits except
// through the exit builtin or end-of-input.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hanzlahmunir/gosh/internal/executor"
	"github.com/hanzlahmunir/gosh/internal/history"
	"github.com/hanzlahmunir/gosh/internal/jobs"
	"github.com/hanzlahmunir/gosh/internal/lexer"
	"github.com/hanzlahmunir/gosh/internal/parser"
)

// Prompt is the fixed string printed before each line read.
const Prompt = "myshell> "

// REPL owns the shared state the loop threads through the
// lexer/parser/executor pipeline on every line.
type REPL struct {
	Jobs     *jobs.Table
	History  *history.Ring
	Executor *executor.Executor
	in       *bufio.Reader
	out      io.Writer
}

// New creates a REPL reading from in and printing prompts/output to out.
func New(table *jobs.Table, hist *history.Ring, exec *executor.Executor, in io.Reader, out io.Writer) *REPL {
	return &REPL{Jobs: table, History: hist, Executor: exec, in: bufio.NewReader(in), out: out}
}

// Run reads and executes lines until EOF. It returns the exit status of
// the last command run, for use as the process's own exit code if the
// loop ends via EOF rather than the exit builtin.
func (r *REPL) Run() int {
	status := 0
	for {
		r.Jobs.SweepDone()
		fmt.Fprint(r.out, Prompt)

		line, err := r.in.ReadString('\n')
		if err != nil {
			if len(line) == 0 {
				fmt.Fprintln(r.out)
				return status
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.History.Add(line)

		tokens, lexErr := lexer.Tokenize(line)
		if lexErr != nil {
			fmt.Fprintf(os.Stderr, "gosh: %v\n", lexErr)
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		pipeline, parseErr := parser.Parse(tokens)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "gosh: %v\n", parseErr)
			continue
		}

		status = r.Executor.Execute(pipeline, line)
	}
}
