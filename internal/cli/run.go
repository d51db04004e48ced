package cli

import (
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitFailure is returned when any pipeline stage fails.
	ExitFailure = 1
	// ExitConfig is returned for configuration errors detected before any
	// network call.
	ExitConfig = 2
)

// Handler runs the command line. The main package sets it in init so tests
// drive the CLI in-process.
var Handler func(args []string, stdout, stderr io.Writer) int

func Run(args []string, stdout, stderr io.Writer) int {
	if Handler == nil {
		fmt.Fprintln(stderr, "internal error: cli handler not configured")
		return ExitFailure
	}
	return Handler(args, stdout, stderr)
}
