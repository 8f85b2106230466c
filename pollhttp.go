// Package pollhttp exposes the client builder.
package pollhttp

import (
	"github.com/adamwoolhether/pollhttp/client"
)

// NewClient instantiates a new *client.Client backed by a pool of
// workers goroutines. If not specified, the default http.Client and
// http.Transport are used.
func NewClient(workers int, opts ...client.Option) (*client.Client, error) {
	return client.Build(workers, opts...)
}
