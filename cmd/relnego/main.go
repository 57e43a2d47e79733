// Command relnego hosts relation capability negotiation between provider and
// consumer applications.
package main

import (
	"fmt"
	"os"

	"github.com/balbirthomas/operator/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
