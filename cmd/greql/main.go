// Command greql evaluates GReQL queries over typed graphs.
//
// Usage:
//
//	greql validate query.cue
//	greql eval --graph chain.yaml --bind a=@a query.cue
//	greql explain --graph chain.db query.cue
//	greql automaton --graph chain.yaml --node 3 --verify query.cue
//	greql test ./scenarios
//	greql import chain.yaml chain.db
package main

import (
	"fmt"
	"os"

	"github.com/roach88/greql/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own diagnostics; cobra errors (unknown flags,
		// bad arguments) are printed here.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
