// Command pollhttp sends a batch of requests through a pollhttp client
// and drives them to completion from a single polling loop.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}
