// Command hubmapy runs a SPARQL query against the reasoned HuBMAP Human
// Reference Atlas ontology.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/hubmapy/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			// Already reported by the command.
			os.Exit(exitErr.Code)
		}
		// Flag parsing errors.
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Fprint(os.Stderr, cmd.UsageString())
		os.Exit(cli.ExitCommandError)
	}
}
