// zjos simulates the environment subsystem of a small exokernel-style
// multiprocessor kernel as ordinary concurrent Go: one goroutine per
// simulated CPU, a big kernel lock serializing the syscall surface,
// and an in-memory refcounted frame table standing in for physical
// RAM.
//
// Commands:
//
//	run-scenario  - Boot the kernel and drive one demo scenario
//	envs          - List the environment table
//	destroy       - Destroy one environment by id
//	monitor       - Boot into the interactive diagnostic monitor
//	version       - Print version information
package main

import (
	"fmt"
	"os"

	"zjos-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "zjos: %v\n", err)
		os.Exit(1)
	}
}
