// Package cli holds the small helpers shared by every spguardianc
// subcommand, grounded on the teacher's pkg/cli/cli.go.
package cli

import (
	"fmt"
	"os"
)

// exit codes, inspired by sysexits.h, matching the teacher's own constants.
const (
	ExitCodeGeneral   = 1
	ExitCodeNotFound  = 2
	ExitCodeCancelled = 3
	ExitCodeForbidden = 4
	ExitCodeUsage     = 64
)

// Die prints its arguments to stderr, then exits with the default error code.
func Die(args ...interface{}) {
	DieWithExitCode(ExitCodeGeneral, args...)
}

// DieWithError exits with ExitCodeGeneral after printing description and err.
func DieWithError(description string, err error) {
	DieWithExitCode(ExitCodeGeneral, description, err)
}

// DieWithExitCode prints its arguments to stderr, then exits with code.
func DieWithExitCode(code int, args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(code)
}
