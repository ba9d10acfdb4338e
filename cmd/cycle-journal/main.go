// Command cycle-journal is a trade journal that relates trading results to
// the phases of the menstrual cycle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cycle-journal/internal/cli"
	"cycle-journal/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, logging.NewLogger()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
