package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adamwoolhether/pollhttp/client"
)

// job tracks one URL from builder to drained body.
type job struct {
	n       int
	url     string
	builder *client.RequestBuilder
	resp    *client.Response
	stream  *client.BodyStream
	path    string
	status  int
	body    bytes.Buffer
	err     error
}

// fetch sends every URL and polls them all from this goroutine until
// each body is drained or has failed.
func fetch(ctx context.Context, cfg config, urls []string, out io.Writer, logger *slog.Logger) error {
	headers, err := parseHeaders(cfg.Headers)
	if err != nil {
		return err
	}

	if cfg.OutDir != "" {
		if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	c, err := client.Build(cfg.Workers, cfg.clientOptions(ctx, logger)...)
	if err != nil {
		return err
	}
	defer c.Close()

	jobs := make([]*job, 0, len(urls))
	for i, u := range urls {
		b, err := newBuilder(c, cfg, headers, u)
		if err != nil {
			return fmt.Errorf("request %s: %w", u, err)
		}
		jobs = append(jobs, &job{n: i, url: u, builder: b})
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failed int
	remaining := len(jobs)
	for {
		for _, j := range jobs {
			if j.builder == nil && j.resp == nil {
				continue
			}
			if !j.step(cfg.OutDir) {
				continue
			}

			remaining--
			if j.err != nil {
				failed++
			}
			j.report(out)
			j.builder, j.resp, j.stream = nil, nil, nil
		}

		if remaining == 0 {
			break
		}

		select {
		case <-ctx.Done():
			for _, j := range jobs {
				j.abandon()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}

	// Requests aborted by an interrupt count as the interrupt.
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(jobs))
	}
	return nil
}

func newBuilder(c *client.Client, cfg config, headers [][2]string, url string) (*client.RequestBuilder, error) {
	b := c.NewRequest(url)

	if err := b.SetMethod(cfg.Method); err != nil {
		return nil, err
	}
	for _, h := range headers {
		if err := b.SetHeader(h[0], h[1]); err != nil {
			return nil, err
		}
	}
	if cfg.Data != "" {
		if err := b.SetBody([]byte(cfg.Data)); err != nil {
			return nil, err
		}
	}
	if cfg.Expect != 0 {
		if err := b.ExpectStatus(cfg.Expect); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// step advances j without blocking and reports whether it finished.
// A full pool queue leaves j where it is until the next tick.
func (j *job) step(outDir string) bool {
	if j.resp == nil {
		r, err := j.builder.Send()
		if errors.Is(err, client.ErrQueueFull) {
			return false
		}
		if err != nil {
			j.err = err
			return true
		}
		j.resp = r
	}

	if j.stream == nil {
		switch j.resp.Poll() {
		case client.StatePending:
			return false
		case client.StateFailed:
			j.err = j.resp.Err()
			return true
		}

		j.status, _ = j.resp.StatusCode()

		var err error
		if outDir != "" {
			j.path = filepath.Join(outDir, fmt.Sprintf("%03d.body", j.n))
			j.stream, err = j.resp.RedirectToFile(j.path)
		} else {
			j.stream, err = j.resp.BodyStream()
		}
		if errors.Is(err, client.ErrQueueFull) {
			return false
		}
		if err != nil {
			j.err = err
			return true
		}
	}

	if j.stream.Mode() == client.ModeBuffered {
		chunk, done, err := j.stream.Poll()
		j.body.Write(chunk)
		if done {
			j.err = err
		}
		return done
	}

	if !j.stream.IsDone() {
		return false
	}
	j.err = j.stream.Err()
	return true
}

// abandon closes a ready body nobody has picked up yet. Streams already
// draining stop on their own once the transport aborts.
func (j *job) abandon() {
	if j.resp == nil || j.stream != nil {
		return
	}
	if j.resp.Poll() == client.StateReady {
		_ = j.resp.Discard()
	}
}

func (j *job) report(out io.Writer) {
	if j.err != nil {
		fmt.Fprintf(out, "==> %s failed: %v\n", j.url, j.err)
		return
	}

	if j.path != "" {
		fmt.Fprintf(out, "==> %s %d -> %s (%d bytes)\n", j.url, j.status, j.path, j.stream.BytesRead())
		return
	}

	fmt.Fprintf(out, "==> %s %d (%d bytes)\n", j.url, j.status, j.body.Len())
	_, _ = out.Write(j.body.Bytes())
	if j.body.Len() > 0 && !bytes.HasSuffix(j.body.Bytes(), []byte("\n")) {
		fmt.Fprintln(out)
	}
}
