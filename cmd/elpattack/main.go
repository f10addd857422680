// Command elpattack is the adversarial counterpart of cmd/elpomega-server:
// it drives the five scenarios spec.md §8 names against a live server,
// using pkg/elpclient for the legitimate cases and deliberately corrupting
// its output for the others. Ported from demo_attack.py/demo_attack2.py.
package main

import (
	"fmt"
	"os"

	"github.com/Ap3pp3rs94/elpomega/cmd/elpattack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
