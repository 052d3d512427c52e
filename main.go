// Command kelora streams, parses, filters, and reshapes logs from the
// command line. All of its behaviour lives in the cli package; this file
// only wires os.Args into it and maps the result to a process exit code,
// mirroring cmd/cidrx/main.go's thin entry point.
package main

import (
	"fmt"
	"os"

	"github.com/kelora-go/kelora/cli"
)

func main() {
	if err := cli.App.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
