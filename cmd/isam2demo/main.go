// Command isam2demo drives the incremental ISAM2 solver through the
// pose-chain scenarios of spec.md 8, printing the resulting estimate and
// per-update statistics.
package main

import "os"

func main() {
	root := newRootCommand()
	root.AddCommand(newRunCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
