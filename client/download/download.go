package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Handle creates or truncates destPath and copies body into it.
// contentLength may be -1 when unknown; otherwise the number of bytes
// copied must match it. The returned count is the number of body bytes
// written, also on error.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) (int64, error) {
	opts := options{bufferSize: defaultBufferSize}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return 0, fmt.Errorf("applying option: %w", err)
		}
	}

	if destPath == "" {
		return 0, errors.New("destPath must not be empty")
	}

	if logger == nil {
		logger = slog.Default()
	}

	body = &contextReader{ctx: ctx, r: body}

	file, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening destination: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing destination", "path", destPath, "error", err)
		}
	}()

	bw := bufio.NewWriterSize(file, opts.bufferSize)

	var writer io.Writer = bw
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	if opts.progress {
		writer = &progressWriter{
			w:         writer,
			logger:    logger.With("path", destPath),
			total:     contentLength,
			startTime: time.Now(),
		}
	}

	n, err := io.Copy(writer, body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return n, fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}

		return n, fmt.Errorf("copying body: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flushing destination: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return n, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return n, err
	}

	if err := file.Close(); err != nil {
		return n, fmt.Errorf("closing destination: %w", err)
	}

	return n, nil
}

// contextReader stops a copy once ctx ends.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
