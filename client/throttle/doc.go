// Package throttle provides an [http.RoundTripper] that rate-limits
// outbound HTTP requests using a token-bucket algorithm from
// [golang.org/x/time/rate].
//
// The default agent of [github.com/adamwoolhether/pollhttp/client]
// installs it when the client is built with WithThrottle:
//
//	rt, err := throttle.NewRoundTripper(
//		throttle.Config{RPS: 10, Burst: 5},
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// When the bucket is empty, the calling worker blocks until a token
// becomes available or the request context ends. Queued work behind
// it waits in the pool queue.
package throttle
