package client

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/adamwoolhether/pollhttp/client/download"
)

// State is what Poll reports about a Response.
type State int

const (
	StatePending State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type cellState int

const (
	cellPending cellState = iota
	cellReady
	cellFailed
	cellTaken
)

// Response is the single-assignment result of a sent request. A worker
// settles it exactly once; the caller polls it and then consumes the
// body exactly once through one of the Body*, DecodeJSON,
// RedirectToFile or Discard methods.
type Response struct {
	id     string
	shared *shared
	logger *slog.Logger
	done   chan struct{}

	mu     sync.Mutex
	state  cellState
	resp   *http.Response
	status int
	header http.Header
	err    error
}

func newResponse(s *shared, spec requestSpec) *Response {
	id := uuid.NewString()

	return &Response{
		id:     id,
		shared: s,
		logger: s.logger.With("request_id", id, "method", spec.method.String(), "url", spec.url),
		done:   make(chan struct{}),
	}
}

// ID returns the identifier attached to this request in logs and spans.
func (r *Response) ID() string { return r.id }

// Poll reports the state without blocking. Once ready or failed it
// never changes; a consumed response stays ready.
func (r *Response) Poll() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case cellPending:
		return StatePending
	case cellFailed:
		return StateFailed
	default:
		return StateReady
	}
}

// Err returns the failure recorded by the worker, or nil.
func (r *Response) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// Done returns a channel closed once the response is ready or failed.
// Callers able to block may select on it instead of polling.
func (r *Response) Done() <-chan struct{} { return r.done }

// StatusCode returns the response status. It does not consume the body.
func (r *Response) StatusCode() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.settledLocked(); err != nil {
		return 0, err
	}
	return r.status, nil
}

// Header returns a copy of the response headers. It does not consume
// the body.
func (r *Response) Header() (http.Header, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.settledLocked(); err != nil {
		return nil, err
	}
	return r.header.Clone(), nil
}

func (r *Response) settledLocked() error {
	switch r.state {
	case cellPending:
		return newError(ErrNotReady, "request %s", r.id)
	case cellFailed:
		return r.err
	}
	return nil
}

// complete moves the cell from pending to ready.
func (r *Response) complete(resp *http.Response) {
	r.mu.Lock()
	if r.state != cellPending {
		r.mu.Unlock()
		r.logger.Error("response settled twice, dropping result")
		if err := resp.Body.Close(); err != nil {
			r.logger.Error("failed to close response body", "error", err)
		}
		return
	}
	r.resp = resp
	r.status = resp.StatusCode
	r.header = resp.Header
	r.state = cellReady
	r.mu.Unlock()

	close(r.done)
	r.logger.Debug("response ready", "status", resp.StatusCode)
}

// fail moves the cell from pending to failed.
func (r *Response) fail(err error) {
	r.mu.Lock()
	if r.state != cellPending {
		r.mu.Unlock()
		return
	}
	r.err = err
	r.state = cellFailed
	r.mu.Unlock()

	close(r.done)
	r.logger.Error("request failed", "error", err)
}

// take hands the body over to exactly one consumer.
func (r *Response) take() (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case cellPending:
		return nil, newError(ErrNotReady, "request %s", r.id)
	case cellFailed:
		return nil, r.err
	case cellTaken:
		return nil, newError(ErrAlreadyConsumed, "request %s", r.id)
	}

	resp := r.resp
	r.resp = nil
	r.state = cellTaken

	return resp, nil
}

// untake returns a body whose consumer could not be scheduled.
func (r *Response) untake(resp *http.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resp = resp
	r.state = cellReady
}

func (r *Response) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		r.logger.Error("failed to close response body", "error", err)
	}
}

// BodyBytes reads the whole body on the calling goroutine and blocks on
// body I/O. Callers that must not block use [Response.BodyStream].
func (r *Response) BodyBytes() ([]byte, error) {
	resp, err := r.take()
	if err != nil {
		return nil, err
	}
	defer r.closeBody(resp)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrIO, err)
	}

	return b, nil
}

// BodyString reads the whole body as UTF-8 text. Like BodyBytes it
// blocks until the body is read.
func (r *Response) BodyString() (string, error) {
	b, err := r.BodyBytes()
	if err != nil {
		return "", err
	}

	if !utf8.Valid(b) {
		return "", newError(ErrDecode, "body of request %s is not valid UTF-8", r.id)
	}

	return string(b), nil
}

// BodyJSON decodes the whole body into a generic JSON value.
func (r *Response) BodyJSON() (any, error) {
	var v any
	if err := r.DecodeJSON(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeJSON decodes the whole body into dst, which must be a pointer.
// It blocks on body I/O; see [Response.BodyStream] for polled decoding.
func (r *Response) DecodeJSON(dst any) error {
	b, err := r.BodyBytes()
	if err != nil {
		return err
	}

	return decodeJSON(r.shared.json, b, dst)
}

// Discard closes the body without reading it.
func (r *Response) Discard() error {
	resp, err := r.take()
	if err != nil {
		return err
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("%w: closing body: %w", ErrIO, err)
	}
	return nil
}

// BodyStream drains the body into memory on a pool worker. The
// returned stream is polled for chunks as they arrive.
func (r *Response) BodyStream() (*BodyStream, error) {
	resp, err := r.take()
	if err != nil {
		return nil, err
	}

	s := newBodyStream(r, ModeBuffered, "")
	if err := r.shared.pool.Submit(func() { s.drainBuffered(resp.Body) }); err != nil {
		r.untake(resp)
		return nil, fmt.Errorf("scheduling body stream: %w", err)
	}

	return s, nil
}

// RedirectToFile copies the body into the file at path on a pool
// worker. The file is created or truncated. The returned stream only
// reports completion; its buffer operations fail with [ErrModeMismatch].
//
// A response that is not ready reports that before the path or options
// are checked. A rejected path or option leaves the body unconsumed.
func (r *Response) RedirectToFile(path string, optFns ...download.Option) (*BodyStream, error) {
	resp, err := r.take()
	if err != nil {
		return nil, err
	}

	if path == "" {
		r.untake(resp)
		return nil, newError(ErrIO, "empty destination path")
	}
	if err := download.Validate(optFns...); err != nil {
		r.untake(resp)
		return nil, fmt.Errorf("redirect option: %w", err)
	}

	s := newBodyStream(r, ModeFile, path)
	task := func() { s.drainFile(resp.Body, resp.ContentLength, optFns) }
	if err := r.shared.pool.Submit(task); err != nil {
		r.untake(resp)
		return nil, fmt.Errorf("scheduling body redirect: %w", err)
	}

	return s, nil
}
