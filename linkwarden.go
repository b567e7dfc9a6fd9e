// Package linkwarden is the library embedding surface: a one-shot Check
// convenience function plus the re-exported ClientBuilder for embedders
// that want to check many URIs against one configured Client without
// going through the CLI or the full pipeline.
package linkwarden

import (
	"context"

	"github.com/tariktz/linkwarden/internal/client"
	"github.com/tariktz/linkwarden/internal/uri"
)

// Response is the outcome of checking one URI.
type Response = client.Response

// Options configures a Client the way the CLI's network flags do.
type Options = client.Options

// ClientBuilder builds a configured Client from max redirects, user agent,
// TLS/auth settings, custom headers, method, timeout, and accepted status
// codes. It takes no include/exclude patterns: URI filtering is not part
// of the Client.
type ClientBuilder = client.Builder

// NewClientBuilder seeds a ClientBuilder with opts, filling in defaults.
func NewClientBuilder(opts Options) *ClientBuilder {
	return client.NewBuilder(opts)
}

// Client checks URIs against the network.
type Client = client.Client

// Check is a one-shot convenience wrapper: build a default-configured
// client, check a single raw URI string, and close it. Embedders that
// need to check many URIs should build a Client once via NewClientBuilder
// and reuse it instead, since Check pays the client-construction cost
// every call.
func Check(ctx context.Context, rawURI string) (Response, error) {
	u, err := uri.Parse(rawURI, nil)
	if err != nil {
		return Response{}, err
	}

	c, err := NewClientBuilder(Options{}).Build()
	if err != nil {
		return Response{}, err
	}
	defer c.Close()

	return c.Check(ctx, u), nil
}
