// Package client runs HTTP requests on a fixed-size worker pool and
// exposes their progress through non-blocking polls. It serves callers
// that cannot block their own goroutine or thread, such as a render
// loop or a foreign-language binding that ticks.
//
// # Building a Client
//
// Use [Build] with the pool size and functional options:
//
//	c, err := client.Build(4,
//		client.WithTimeout(10*time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//	defer c.Close()
//
// [Client.Clone] returns another handle on the same pool. The pool stops
// when the last handle is closed.
//
// # Sending Requests
//
// A [RequestBuilder] is spent by its first successful Send:
//
//	b := c.NewRequest("https://api.example.com/v1/items")
//	_ = b.SetMethod("post")
//	_ = b.SetBodyJSON(item)
//	r, err := b.Send()
//
// Send never waits for the network. The returned [Response] is polled:
//
//	switch r.Poll() {
//	case client.StatePending:
//		// try again next tick
//	case client.StateFailed:
//		log.Println(r.Err())
//	case client.StateReady:
//		text, err := r.BodyString()
//	}
//
// A response body is consumed once, by one of [Response.BodyString],
// [Response.BodyJSON], [Response.DecodeJSON], [Response.BodyStream],
// [Response.RedirectToFile] or [Response.Discard].
//
// # Streaming Bodies
//
// [Response.BodyStream] drains the body into memory on a worker; each
// [BodyStream.Poll] hands over what arrived since the previous call:
//
//	s, err := r.BodyStream()
//	for {
//		chunk, done, err := s.Poll()
//		// use chunk
//		if done {
//			break
//		}
//	}
//
// [Response.RedirectToFile] writes the body to disk instead, with
// optional checksum verification and progress logging. See the
// [github.com/adamwoolhether/pollhttp/client/download] package.
package client
