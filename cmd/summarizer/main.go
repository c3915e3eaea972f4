// Command summarizer builds recaps and final meeting minutes from transcript
// snapshots in object storage. Exit status 0 means the output was written.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
