// Command contentq compiles content query documents into canonical index
// queries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/contentq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
