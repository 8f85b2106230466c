// Package download streams an HTTP response body into a file with
// optional checksum validation and progress reporting.
//
// [Handle] creates or truncates the destination and copies the body
// into it verbatim, without buffering the whole body in memory:
//
//	n, err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// Most callers reach it through Response.RedirectToFile in
// [github.com/adamwoolhether/pollhttp/client], which runs Handle on a
// pool worker and exposes completion through a polled BodyStream.
package download
