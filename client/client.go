package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/pollhttp/client/pool"
	"github.com/adamwoolhether/pollhttp/client/throttle"
)

// Agent performs one blocking HTTP round trip. [*http.Client]
// satisfies it.
type Agent interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client schedules requests on a fixed-size worker pool and hands back
// Responses that are polled for completion. Handles returned by Clone
// share the pool and agent of the client they came from.
type Client struct {
	shared *shared
	closed atomic.Bool
}

// shared is the reference counted state behind every Client handle.
type shared struct {
	pool   *pool.Pool
	agent  Agent
	logger *slog.Logger
	tracer trace.Tracer
	json   jsoniter.API
	refs   atomic.Int64
}

// Build creates a Client with a pool of workers goroutines. The pool
// size is fixed for the lifetime of the client.
func Build(workers int, optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("%w: applying client option: %w", ErrConfig, err)
		}
	}

	s := opts.settings(workers)
	if err := check(s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}

	agent := opts.agent
	if agent == nil {
		a, err := buildAgent(opts, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		agent = a
	}

	poolOpts := []pool.Option{
		pool.WithQueueSize(s.QueueSize),
		pool.WithLogger(logger),
	}
	if opts.registerer != nil {
		m, err := pool.NewMetrics(opts.registerer, opts.metricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		poolOpts = append(poolOpts, pool.WithMetrics(m))
	}

	p, err := pool.New(s.Workers, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	sh := &shared{
		pool:   p,
		agent:  agent,
		logger: logger,
		tracer: tracer,
		json:   jsonAPI(opts.useJSONNumber),
	}
	sh.refs.Store(1)

	return &Client{shared: sh}, nil
}

// buildAgent assembles the default *http.Client. The transport chain is
// base, then User-Agent, then throttle.
func buildAgent(opts options, logger *slog.Logger) (*http.Client, error) {
	hc := &http.Client{}
	if opts.client != nil {
		cpy := *opts.client
		hc = &cpy
	}

	if opts.timeout != nil {
		hc.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case hc.Transport != nil:
		transport = hc.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	hc.Transport = transport

	return hc, nil
}

// Clone returns a new handle on the same pool and agent.
func (c *Client) Clone() *Client {
	c.shared.refs.Add(1)
	return &Client{shared: c.shared}
}

// Close releases this handle. Closing the last handle stops the pool
// and waits for queued requests and body streams to finish. Calling
// Close more than once on the same handle is a no-op.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	if c.shared.refs.Add(-1) == 0 {
		c.shared.pool.Close()
	}
}

// Workers returns the fixed pool size.
func (c *Client) Workers() int {
	return c.shared.pool.Workers()
}

// Queued returns the number of tasks waiting for a worker.
func (c *Client) Queued() int {
	return c.shared.pool.Queued()
}

// NewRequest starts a GET request to url bound to this client.
func (c *Client) NewRequest(url string) *RequestBuilder {
	return &RequestBuilder{
		client: c,
		spec: requestSpec{
			url:     url,
			method:  MethodGet,
			headers: make(map[string]string),
		},
	}
}

// schedule submits spec to the pool and returns its pending Response.
func (c *Client) schedule(spec requestSpec) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	r := newResponse(c.shared, spec)
	if err := c.shared.pool.Submit(func() { c.shared.execute(spec, r) }); err != nil {
		return nil, err
	}

	r.logger.Debug("request scheduled")

	return r, nil
}

// execute performs the agent call for spec and settles r. It runs on a
// pool worker and always leaves r ready or failed.
func (s *shared) execute(spec requestSpec, r *Response) {
	ctx, span := startSpan(context.Background(), s.tracer, "pollhttp.request",
		attribute.String("http.request.method", spec.method.String()),
		attribute.String("url.full", spec.url),
		attribute.String("pollhttp.request_id", r.id),
	)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: request task panicked: %v", ErrTransport, p)
			r.fail(err)
			endSpan(span, err)
			panic(p)
		}
	}()

	req, err := spec.httpRequest(ctx)
	if err != nil {
		err = fmt.Errorf("%w: building request: %w", ErrInvalidRequest, err)
		r.fail(err)
		endSpan(span, err)
		return
	}
	injectHeaders(ctx, req.Header)

	resp, err := s.agent.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %s %s: %w", ErrTransport, spec.method, spec.url, err)
		r.fail(err)
		endSpan(span, err)
		return
	}

	statusAttr := attribute.Int("http.response.status_code", resp.StatusCode)

	if spec.expectStatus != 0 && resp.StatusCode != spec.expectStatus {
		err := s.unexpectedStatus(resp)
		r.fail(err)
		endSpan(span, err, statusAttr)
		return
	}

	r.complete(resp)
	endSpan(span, nil, statusAttr)
}

// unexpectedStatus reads a bounded prefix of the body into an
// UnexpectedStatusError and closes it.
func (s *shared) unexpectedStatus(resp *http.Response) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("failed to close response body", "error", err)
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(b),
		Err:        ErrUnexpectedStatusCode,
	}
}
