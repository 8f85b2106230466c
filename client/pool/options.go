package pool

import (
	"errors"
	"log/slog"
)

// DefaultQueueSize is used when WithQueueSize is not given.
const DefaultQueueSize = 1024

// Option defines optional settings for a [Pool].
type Option func(*options) error

type options struct {
	queueSize int
	logger    *slog.Logger
	metrics   *Metrics
}

// WithQueueSize bounds the number of tasks waiting for a worker.
func WithQueueSize(n int) Option {
	return func(opts *options) error {
		if n <= 0 {
			return errors.New("queue size must be greater than zero")
		}
		opts.queueSize = n
		return nil
	}
}

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = logger
		return nil
	}
}

// WithMetrics records queue depth and task outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(opts *options) error {
		opts.metrics = m
		return nil
	}
}
