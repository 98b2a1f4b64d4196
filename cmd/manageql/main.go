// Command manageql serves and queries management objects as relational
// tables.
package main

import (
	"fmt"
	"os"

	"github.com/hugr-lab/manageql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
