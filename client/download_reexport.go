package client

import (
	"hash"

	"github.com/adamwoolhether/pollhttp/client/download"
)

// DownloadError wraps a file redirect sentinel with detail.
type DownloadError = download.Error

// DownloadOption configures [Response.RedirectToFile].
type DownloadOption = download.Option

var (
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = download.ErrContentLengthMismatch

	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch
)

// WithChecksum verifies the redirected file against a hex-encoded
// digest. h must be a fresh [hash.Hash], e.g. sha256.New().
func WithChecksum(h hash.Hash, expected string) DownloadOption {
	return download.WithChecksum(h, expected)
}

// WithProgress enables periodic progress logging of a redirect.
func WithProgress() DownloadOption { return download.WithProgress() }

// WithBufferSize sets the write buffer in front of the redirect target.
func WithBufferSize(n int) DownloadOption { return download.WithBufferSize(n) }
