// Package parser turns a lexer token stream into a Pipeline of
// Commands with redirections and background flags.
package parser

import "fmt"

// Redirection holds the at-most-one input and at-most-one output
// target for a single Command.
type Redirection struct {
	InFile  string
	OutFile string
	Append  bool
}

// Command is one stage of a Pipeline: its argument vector plus its
// redirections.
type Command struct {
	Argv  []string
	Redir Redirection
}

// Pipeline is a non-empty, ordered sequence of Commands connected
// stdin->stdout by N-1 anonymous pipes, plus a pipeline-wide background
// flag.
type Pipeline struct {
	Commands   []Command
	Background bool
}

// SyntaxError reports a malformed pipeline or redirection.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return "syntax error: " + e.Msg }

func syntaxErrorf(format string, args ...any) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

// Parse converts a token stream (as produced by lexer.Tokenize) into a
// Pipeline. An empty token slice yields a nil Pipeline and nil error;
// callers should treat that as "nothing to execute".
func Parse(tokens []string) (*Pipeline, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	background := false
	if tokens[len(tokens)-1] == "&" {
		background = true
		tokens = tokens[:len(tokens)-1]
	}

	segments, err := splitOnPipe(tokens)
	if err != nil {
		return nil, err
	}

	cmds := make([]Command, 0, len(segments))
	for _, seg := range segments {
		cmd, err := parseSegment(seg)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	return &Pipeline{Commands: cmds, Background: background}, nil
}

func splitOnPipe(tokens []string) ([][]string, error) {
	var segments [][]string
	var cur []string

	for _, tok := range tokens {
		if tok == "|" {
			if len(cur) == 0 {
				return nil, syntaxErrorf("unexpected token |")
			}
			segments = append(segments, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) == 0 {
		return nil, syntaxErrorf("unexpected token |")
	}
	segments = append(segments, cur)
	return segments, nil
}

func parseSegment(tokens []string) (Command, error) {
	var cmd Command
	hasIn, hasOut := false, false

	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "<":
			if hasIn {
				return cmd, syntaxErrorf("multiple input redirections")
			}
			if i+1 >= len(tokens) {
				return cmd, syntaxErrorf("missing file after <")
			}
			i++
			cmd.Redir.InFile = tokens[i]
			hasIn = true

		case ">":
			if hasOut {
				return cmd, syntaxErrorf("multiple output redirections")
			}
			if i+1 >= len(tokens) {
				return cmd, syntaxErrorf("missing file after >")
			}
			i++
			cmd.Redir.OutFile = tokens[i]
			cmd.Redir.Append = false
			hasOut = true

		case ">>":
			if hasOut {
				return cmd, syntaxErrorf("multiple output redirections")
			}
			if i+1 >= len(tokens) {
				return cmd, syntaxErrorf("missing file after >>")
			}
			i++
			cmd.Redir.OutFile = tokens[i]
			cmd.Redir.Append = true
			hasOut = true

		case "&":
			return cmd, syntaxErrorf("& must be at end")

		default:
			cmd.Argv = append(cmd.Argv, tokens[i])
		}
	}

	if len(cmd.Argv) == 0 {
		return cmd, syntaxErrorf("empty command")
	}
	return cmd, nil
}
