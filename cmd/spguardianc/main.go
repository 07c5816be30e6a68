// Command spguardianc queries a stability pool guardian daemon's
// read-only API, grounded on the teacher's cmd/rivinec/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/threefoldtech/stabilitypool/pkg/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spguardianc exited with an error:", err)
		os.Exit(cli.ExitCodeUsage)
	}
}
