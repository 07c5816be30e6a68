package build

import (
	"fmt"
	"os"
	"runtime/debug"
)

// Critical should be called when a consensus-critical invariant has been
// violated — conservation of funds, sequence uniqueness, or any other
// invariant from spec §8. It prints the message and a stack trace (except
// in testing releases) and panics in debug builds; in other builds it
// returns, and what happens next is up to the caller.
func Critical(v ...interface{}) {
	s := "Critical error: " + fmt.Sprintln(v...) + "this guardian must halt rather than commit an inconsistent state\n"
	if Release != "testing" {
		debug.PrintStack()
		os.Stderr.WriteString(s)
	}
	if DEBUG {
		panic(s)
	}
}

// Severe logs a significant but non-consensus-fatal problem, such as an
// oracle source repeatedly failing. It panics only in debug builds.
func Severe(v ...interface{}) {
	s := "Severe error: " + fmt.Sprintln(v...)
	if Release != "testing" {
		debug.PrintStack()
		os.Stderr.WriteString(s)
	}
	if DEBUG {
		panic(s)
	}
}
