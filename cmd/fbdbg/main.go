// Command fbdbg is the command-line debugger front-end from spec.md §1: a
// console that drives an external DAP adapter through the Debugger Session
// Core (internal/session).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
