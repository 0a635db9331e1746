// Command dredge serves and inspects pairwise differential-expression tests.
package main

import (
	"fmt"
	"os"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dredge:", err)
		exitFunc(1)
	}
}
