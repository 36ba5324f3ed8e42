// Command clawbernetes-gateway runs the Clawbernetes gateway control
// plane: node registration and scheduling on one listener, the submitter
// REST interface on another.
package main

import (
	"fmt"
	"os"

	"github.com/clawbernetes/gateway/cmd/clawbernetes-gateway/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
