package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for [Handle].
type Option func(*options) error

type options struct {
	checksum   *checksumVerifier
	progress   bool
	bufferSize int
}

// defaultBufferSize matches the chunk size used by buffered body streams.
const defaultBufferSize = 8 << 10

// WithChecksum enables checksum validation of the written file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

// WithProgress enables periodic progress logging via the logger
// supplied to Handle.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithBufferSize sets the size of the write buffer in front of the file.
func WithBufferSize(n int) Option {
	return func(opts *options) error {
		if n <= 0 {
			return errors.New("buffer size must be greater than zero")
		}
		opts.bufferSize = n
		return nil
	}
}

// Validate applies optFns to a scratch configuration, reporting the
// first invalid option. Callers use it to fail fast before scheduling
// a download in the background.
func Validate(optFns ...Option) error {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return err
		}
	}
	return nil
}
