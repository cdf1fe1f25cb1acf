package httpclient

import (
	// Packages
	client "github.com/mutablelogic/go-client"
	chunker "github.com/mutablelogic/go-chunker"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is an upload HTTP client that wraps the base HTTP client
// and provides typed methods for interacting with the upload API.
type Client struct {
	*client.Client
}

var _ chunker.Coordinator = (*Client)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new upload HTTP client with the given base URL and options.
func New(url string, opts ...client.ClientOpt) (*Client, error) {
	c := new(Client)
	cl, err := client.New(append(opts, client.OptEndpoint(url))...)
	if err != nil {
		return nil, err
	}
	c.Client = cl
	return c, nil
}
