package httpclient

import (
	"context"
	"net/http"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListSessions returns uploads in progress and failed uploads.
func (c *Client) ListSessions(ctx context.Context) (*schema.SessionList, error) {
	var response schema.SessionList
	if err := c.DoWithContext(ctx, client.NewRequest(), &response,
		client.OptPath("upload"),
	); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetSession returns the state of an upload.
func (c *Client) GetSession(ctx context.Context, id string) (*schema.Session, error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return nil, err
	}
	var response schema.Session
	if err := c.DoWithContext(ctx, client.NewRequest(), &response,
		client.OptPath("upload", id),
	); err != nil {
		return nil, err
	}
	return &response, nil
}

// CancelUpload cancels an upload, deleting the chunks received so far.
func (c *Client) CancelUpload(ctx context.Context, id string) (*schema.CancelResponse, error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return nil, err
	}
	var response schema.CancelResponse
	if err := c.DoWithContext(ctx,
		client.NewRequestEx(http.MethodDelete, types.ContentTypeJSON),
		&response,
		client.OptPath("upload", id),
	); err != nil {
		return nil, err
	}
	return &response, nil
}
