package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/pollhttp/client/pool"
	"github.com/adamwoolhether/pollhttp/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	agent             Agent
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	queueSize         int
	tracer            trace.Tracer
	registerer        prometheus.Registerer
	metricsNamespace  string
	useJSONNumber     bool
}

// WithClient replaces the [http.Client] the default agent is built on.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithAgent replaces the default agent entirely. Transport related
// options are ignored when an agent is supplied.
func WithAgent(a Agent) Option {
	return func(c *options) error {
		if a == nil {
			return errors.New("agent must not be nil")
		}
		c.agent = a
		return nil
	}
}

// WithTimeout bounds each agent call, body read included. This is the
// only timeout applied to scheduled requests.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects prevents the default agent from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithQueueSize bounds how many tasks may wait for a worker. Scheduling
// beyond it fails with [ErrQueueFull]. Defaults to [pool.DefaultQueueSize].
func WithQueueSize(n int) Option {
	return func(c *options) error {
		c.queueSize = n
		return nil
	}
}

// WithTracer records a span for every agent call and body drain.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = tracer
		return nil
	}
}

// WithMetrics registers worker pool metrics under namespace with reg.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(c *options) error {
		if reg == nil {
			return errors.New("registerer must not be nil")
		}
		c.registerer = reg
		c.metricsNamespace = namespace
		return nil
	}
}

// WithJSONNumber decodes JSON numbers as [json.Number] instead of
// float64, preserving precision.
func WithJSONNumber() Option {
	return func(c *options) error {
		c.useJSONNumber = true
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

func (o options) settings(workers int) settings {
	queueSize := o.queueSize
	if queueSize == 0 {
		queueSize = pool.DefaultQueueSize
	}

	return settings{
		Workers:   workers,
		QueueSize: queueSize,
		UserAgent: o.userAgent,
	}
}
