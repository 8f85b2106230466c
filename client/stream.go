package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/pollhttp/client/download"
)

// Mode selects where a BodyStream puts the bytes it drains.
type Mode int

const (
	// ModeBuffered keeps drained bytes in memory until polled.
	ModeBuffered Mode = iota
	// ModeFile writes drained bytes to a file.
	ModeFile
)

func (m Mode) String() string {
	switch m {
	case ModeBuffered:
		return "buffered"
	case ModeFile:
		return "file"
	default:
		return "unknown"
	}
}

// chunkSize is the read size of a buffered drain.
const chunkSize = 8 << 10

// BodyStream is a response body being drained by a pool worker. It is
// safe for concurrent use; the drain is its only writer.
type BodyStream struct {
	id     string
	mode   Mode
	path   string
	json   jsoniter.API
	logger *slog.Logger
	tracer trace.Tracer

	done   atomic.Bool
	doneCh chan struct{}
	read   atomic.Int64

	mu  sync.Mutex
	buf []byte
	err error
}

func newBodyStream(r *Response, mode Mode, path string) *BodyStream {
	logger := r.logger.With("mode", mode.String())
	if path != "" {
		logger = logger.With("path", path)
	}

	return &BodyStream{
		id:     r.id,
		mode:   mode,
		path:   path,
		json:   r.shared.json,
		logger: logger,
		tracer: r.shared.tracer,
		doneCh: make(chan struct{}),
	}
}

// finish records err and marks the stream done. done is set while the
// buffer lock is held so a caller that observes it has seen every chunk.
func (s *BodyStream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.done.Store(true)
	s.mu.Unlock()

	close(s.doneCh)

	if err != nil {
		s.logger.Error("body stream failed", "bytes", s.read.Load(), "error", err)
		return
	}
	s.logger.Debug("body stream complete", "bytes", s.read.Load())
}

// drainBuffered reads body in chunks, appending each to the buffer.
func (s *BodyStream) drainBuffered(body io.ReadCloser) {
	_, span := startSpan(context.Background(), s.tracer, "pollhttp.body.buffered",
		attribute.String("pollhttp.request_id", s.id),
	)

	var err error
	defer func() {
		if cerr := body.Close(); cerr != nil {
			s.logger.Error("failed to close response body", "error", cerr)
		}
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: body stream panicked: %v", ErrIO, p)
			s.finish(err)
			endSpan(span, err)
			panic(p)
		}
		s.finish(err)
		endSpan(span, err, attribute.Int64("pollhttp.body.bytes", s.read.Load()))
	}()

	chunk := make([]byte, chunkSize)
	for {
		n, rerr := body.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			s.mu.Unlock()
			s.read.Add(int64(n))
		}

		if errors.Is(rerr, io.EOF) {
			return
		}
		if rerr != nil {
			err = fmt.Errorf("%w: reading body: %w", ErrIO, rerr)
			return
		}
	}
}

// drainFile copies body into the stream's path.
func (s *BodyStream) drainFile(body io.ReadCloser, contentLength int64, optFns []download.Option) {
	ctx, span := startSpan(context.Background(), s.tracer, "pollhttp.body.file",
		attribute.String("pollhttp.request_id", s.id),
		attribute.String("pollhttp.body.path", s.path),
	)

	var err error
	defer func() {
		if cerr := body.Close(); cerr != nil {
			s.logger.Error("failed to close response body", "error", cerr)
		}
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: body redirect panicked: %v", ErrIO, p)
			s.finish(err)
			endSpan(span, err)
			panic(p)
		}
		s.finish(err)
		endSpan(span, err, attribute.Int64("pollhttp.body.bytes", s.read.Load()))
	}()

	counted := &countingReader{r: body, n: &s.read}
	if _, herr := download.Handle(ctx, counted, contentLength, s.path, s.logger, optFns...); herr != nil {
		err = fmt.Errorf("%w: redirecting body to %s: %w", ErrIO, s.path, herr)
	}
}

// countingReader adds every byte read to n.
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// ID returns the identifier of the response this stream drains.
func (s *BodyStream) ID() string { return s.id }

// Mode reports whether the stream buffers or writes to a file.
func (s *BodyStream) Mode() Mode { return s.mode }

// Path returns the destination file, or "" for a buffered stream.
func (s *BodyStream) Path() string { return s.path }

// IsDone reports whether the drain has finished, successfully or not.
func (s *BodyStream) IsDone() bool { return s.done.Load() }

// Done returns a channel closed when the drain finishes.
func (s *BodyStream) Done() <-chan struct{} { return s.doneCh }

// BytesRead returns how many body bytes the drain has consumed so far.
func (s *BodyStream) BytesRead() int64 { return s.read.Load() }

// Err returns the error that ended the drain, or nil. It is only
// meaningful once IsDone reports true.
func (s *BodyStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Wait blocks until the drain finishes or ctx ends.
func (s *BodyStream) Wait(ctx context.Context) error {
	select {
	case <-s.doneCh:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll removes and returns whatever bytes have been drained since the
// last call, possibly none, together with whether the drain is done.
// Once done is true every byte of the body has been returned. A failed
// drain is reported by the call that returns done.
func (s *BodyStream) Poll() ([]byte, bool, error) {
	if s.mode != ModeBuffered {
		return nil, s.done.Load(), newError(ErrModeMismatch, "poll on %s stream", s.mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunk := s.buf
	s.buf = nil
	done := s.done.Load()

	if done && s.err != nil {
		return chunk, true, s.err
	}
	return chunk, done, nil
}

// CollectString removes and returns the drained bytes as text. A
// trailing partial UTF-8 sequence is held back until the rest arrives.
// Invalid UTF-8 fails with [ErrDecode] and leaves the buffer untouched.
func (s *BodyStream) CollectString() (string, bool, error) {
	if s.mode != ModeBuffered {
		return "", s.done.Load(), newError(ErrModeMismatch, "collect on %s stream", s.mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	done := s.done.Load()

	ready, rest := s.buf, []byte(nil)
	if !done {
		ready, rest = splitIncompleteRune(s.buf)
	}

	if !utf8.Valid(ready) {
		return "", done, newError(ErrDecode, "body of request %s is not valid UTF-8", s.id)
	}

	text := string(ready)
	s.buf = bytes.Clone(rest)

	if done && s.err != nil {
		return text, true, s.err
	}
	return text, done, nil
}

// splitIncompleteRune splits b before a trailing UTF-8 sequence that
// is cut short.
func splitIncompleteRune(b []byte) ([]byte, []byte) {
	// A rune is at most utf8.UTFMax bytes, so only the tail needs a look.
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i], b[len(b)-i:]
		}
		break
	}
	return b, nil
}

// CollectJSON decodes the whole body into a generic JSON value. It
// returns nothing until the drain is done. A decode failure returns
// [ErrDecode] and keeps the buffer so the bytes can still be polled.
func (s *BodyStream) CollectJSON() (any, bool, error) {
	var v any
	done, err := s.DecodeJSON(&v)
	if err != nil || !done {
		return nil, done, err
	}
	return v, true, nil
}

// DecodeJSON decodes the whole body into dst once the drain is done.
// Before that it returns false and leaves dst alone.
func (s *BodyStream) DecodeJSON(dst any) (bool, error) {
	if s.mode != ModeBuffered {
		return s.done.Load(), newError(ErrModeMismatch, "decode on %s stream", s.mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.done.Load() {
		return false, nil
	}
	if s.err != nil {
		return true, s.err
	}

	if err := decodeJSON(s.json, s.buf, dst); err != nil {
		return true, err
	}
	s.buf = nil

	return true, nil
}
