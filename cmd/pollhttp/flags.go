package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/adamwoolhether/pollhttp/client"
)

// config is the parsed command line.
type config struct {
	Workers   int
	QueueSize int
	Method    string
	Headers   []string
	Data      string
	OutDir    string
	Interval  time.Duration
	Timeout   time.Duration
	UserAgent string
	RPS       int
	Burst     int
	Expect    int
	Verbose   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var cfg config

	cmd := &cobra.Command{
		Use:           "pollhttp [flags] URL...",
		Short:         "Send HTTP requests on a worker pool and poll them to completion",
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

			return fetch(cmd.Context(), cfg, args, stdout, logger)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	configureFlags(cmd.Flags(), &cfg)

	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet, cfg *config) {
	// Pool flags
	flags.IntVarP(&cfg.Workers, "workers", "w", 4, "Number of pool workers")
	flags.IntVar(&cfg.QueueSize, "queue", 0, "Pool queue size (0 means the client default)")

	// Request flags
	flags.StringVarP(&cfg.Method, "method", "X", "GET", "HTTP method: GET, POST, PUT or DELETE")
	flags.StringArrayVarP(&cfg.Headers, "header", "H", nil, "Request header in key=value form (repeatable)")
	flags.StringVarP(&cfg.Data, "data", "d", "", "Request body")
	flags.IntVar(&cfg.Expect, "expect", 0, "Fail responses whose status differs (0 accepts any)")

	// Transport flags
	flags.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Per-request timeout")
	flags.StringVar(&cfg.UserAgent, "user-agent", "pollhttp/1.0", "User-Agent header")
	flags.IntVar(&cfg.RPS, "rps", 0, "Requests per second limit (0 means unlimited)")
	flags.IntVar(&cfg.Burst, "burst", 1, "Burst size for --rps")

	// Output flags
	flags.StringVarP(&cfg.OutDir, "out-dir", "o", "", "Write each body to a file in this directory instead of stdout")
	flags.DurationVar(&cfg.Interval, "interval", 10*time.Millisecond, "Poll interval")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log client activity to stderr")
}

// clientOptions translates cfg into client options. Requests made by
// the client are abandoned once ctx is done.
func (cfg config) clientOptions(ctx context.Context, logger *slog.Logger) []client.Option {
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithTransport(abortTransport{ctx: ctx, base: http.DefaultTransport}),
		client.WithTimeout(cfg.Timeout),
		client.WithUserAgent(cfg.UserAgent),
	}
	if cfg.QueueSize > 0 {
		opts = append(opts, client.WithQueueSize(cfg.QueueSize))
	}
	if cfg.RPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.RPS, cfg.Burst))
	}

	return opts
}

// parseHeaders splits key=value pairs.
func parseHeaders(raw []string) ([][2]string, error) {
	out := make([][2]string, 0, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, "=")
		if !ok {
			key, value, ok = strings.Cut(h, ":")
		}
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("header %q must be in key=value form", h)
		}
		out = append(out, [2]string{key, strings.TrimSpace(value)})
	}

	return out, nil
}
