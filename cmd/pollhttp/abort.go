package main

import (
	"context"
	"io"
	"net/http"
)

// abortTransport ties every request and its body to ctx, so an interrupt
// fails queued requests and stops in-flight ones instead of waiting for
// the per-request timeout.
type abortTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t abortTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(t.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}

	resp, err := t.base.RoundTrip(r.WithContext(ctx))
	if err != nil {
		release()
		return nil, err
	}

	resp.Body = &releaseBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

// releaseBody drops the request's cancel hook once the body is closed.
type releaseBody struct {
	io.ReadCloser
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
