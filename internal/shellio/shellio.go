// Package shellio provides the shell's diagnostic-output conventions:
// every error reaching the user is prefixed "gosh: ".
package shellio

import (
	"fmt"
	"os"
)

// Errorf writes a formatted diagnostic to stderr, prefixed "gosh: ".
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gosh: "+format+"\n", args...)
}

// CommandErrorf writes a diagnostic attributed to a specific command
// name, e.g. "gosh: cd: no such file or directory".
func CommandErrorf(cmd, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gosh: %s: "+format+"\n", append([]any{cmd}, args...)...)
}
