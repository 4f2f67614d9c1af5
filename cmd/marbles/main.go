// Command marbles parses marble diagrams, runs marble scenarios and shows
// their run history.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/marbles/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
