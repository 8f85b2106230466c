package client

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/pollhttp/client/pool"
)

// maxErrBodySize caps the amount of response body read when
// building an error for an unexpected status code.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrConfig reports an invalid client configuration.
	ErrConfig = errors.New("invalid client configuration")
	// ErrUnsupportedVerb is returned by SetMethod for anything outside
	// GET, POST, PUT and DELETE.
	ErrUnsupportedVerb = errors.New("unsupported http verb")
	// ErrUseAfterSend is returned by every builder call after Send succeeded.
	ErrUseAfterSend = errors.New("request builder already sent")
	// ErrInvalidHeader reports an empty header name or one containing CR/LF.
	ErrInvalidHeader = errors.New("invalid header")
	// ErrInvalidRequest reports a request that cannot be scheduled, e.g. a bad URL.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTransport wraps failures of the agent call itself.
	ErrTransport = errors.New("transport failure")
	// ErrDecode reports a body that is not valid UTF-8 or not valid JSON.
	ErrDecode = errors.New("decoding body")
	// ErrNotReady is returned when a response is consumed before it is ready.
	ErrNotReady = errors.New("response not ready")
	// ErrAlreadyConsumed is returned when a response body is consumed twice.
	ErrAlreadyConsumed = errors.New("response already consumed")
	// ErrModeMismatch is returned by buffer operations on a file-redirected stream.
	ErrModeMismatch = errors.New("body stream mode mismatch")
	// ErrIO wraps failures reading a body or writing it to a file.
	ErrIO = errors.New("body i/o failure")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")

	// ErrQueueFull is returned by Send and the stream operations when the
	// worker pool cannot take more work.
	ErrQueueFull = pool.ErrQueueFull
	// ErrClosed is returned when scheduling on a closed client.
	ErrClosed = pool.ErrShutdown
)

// Error wraps one of the package sentinels with detail about the
// operation that failed.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(sentinel error, format string, args ...any) error {
	return &Error{Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}

// UnexpectedStatusError is recorded as a response failure when the
// status code does not match the value given to ExpectStatus.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}
