package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// requestSpec is everything a scheduled task needs to perform one call.
type requestSpec struct {
	url          string
	method       Method
	headers      map[string]string
	body         []byte
	expectStatus int
}

func (s requestSpec) httpRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(s.body) > 0 {
		body = bytes.NewReader(s.body)
	}

	req, err := http.NewRequestWithContext(ctx, s.method.String(), s.url, body)
	if err != nil {
		return nil, err
	}

	for name, value := range s.headers {
		req.Header.Set(name, value)
	}

	return req, nil
}

// RequestBuilder describes one request bound to a Client. It is
// consumed by a successful Send: every later call fails with
// [ErrUseAfterSend]. A RequestBuilder is not safe for concurrent use.
type RequestBuilder struct {
	client *Client
	spec   requestSpec
	sent   bool
}

// SetMethod sets the HTTP verb. name is matched case-insensitively
// against get, post, put and delete.
func (b *RequestBuilder) SetMethod(name string) error {
	if b.sent {
		return ErrUseAfterSend
	}

	m, err := ParseMethod(name)
	if err != nil {
		return err
	}
	b.spec.method = m

	return nil
}

// SetHeader sets name to value, replacing any earlier value for the
// same canonical name.
func (b *RequestBuilder) SetHeader(name, value string) error {
	if b.sent {
		return ErrUseAfterSend
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.ContainsAny(trimmed, "\r\n") {
		return newError(ErrInvalidHeader, "name %q", name)
	}
	if strings.ContainsAny(value, "\r\n") {
		return newError(ErrInvalidHeader, "value for %s", trimmed)
	}

	b.spec.headers[http.CanonicalHeaderKey(trimmed)] = value

	return nil
}

// SetBody replaces the request body with a copy of body.
func (b *RequestBuilder) SetBody(body []byte) error {
	if b.sent {
		return ErrUseAfterSend
	}

	b.spec.body = bytes.Clone(body)

	return nil
}

// SetBodyJSON replaces the request body with the JSON encoding of v.
// Content-Type defaults to `application/json` unless already set.
func (b *RequestBuilder) SetBodyJSON(v any) error {
	if b.sent {
		return ErrUseAfterSend
	}

	data, err := b.client.shared.json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding request payload: %w", err)
	}
	b.spec.body = data

	if _, ok := b.spec.headers["Content-Type"]; !ok {
		b.spec.headers["Content-Type"] = "application/json"
	}

	return nil
}

// ExpectStatus makes any other status code fail the response with an
// [UnexpectedStatusError].
func (b *RequestBuilder) ExpectStatus(code int) error {
	if b.sent {
		return ErrUseAfterSend
	}

	if code < 100 || code > 599 {
		return newError(ErrInvalidRequest, "status code %d out of range", code)
	}
	b.spec.expectStatus = code

	return nil
}

// Method returns the verb the request will be sent with.
func (b *RequestBuilder) Method() Method {
	return b.spec.method
}

// Send schedules the request and returns its pending Response without
// waiting for the call. Validation and scheduling errors are returned
// immediately and leave the builder usable; after a successful Send the
// builder is spent.
func (b *RequestBuilder) Send() (*Response, error) {
	if b.sent {
		return nil, ErrUseAfterSend
	}

	if err := check(target{URL: b.spec.url}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	r, err := b.client.schedule(b.spec)
	if err != nil {
		return nil, fmt.Errorf("scheduling request: %w", err)
	}

	b.sent = true
	b.spec = requestSpec{}

	return r, nil
}
