// Command automation enriches CRM deals with PGFN tax-debt data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pgfnsync/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli.Version = version
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
