// Command geochunk validates, plans, runs and traces chunked dispatch jobs.
//
// Usage:
//
//	geochunk validate job.yaml
//	geochunk run job.yaml --trace-db ./trace.db
//	geochunk trace --db ./trace.db --graph <id-prefix>
package main

import (
	"fmt"
	"os"

	"github.com/roach88/geochunk/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "geochunk: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
