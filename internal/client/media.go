package client

import (
	"context"
	"io"
	"net/http"
)

// Put uploads an object. The server chooses the folder from the caller's
// identity, so folder is ignored. Put satisfies media.Storage.
func (c *Client) Put(ctx context.Context, folder, contentType string, r io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/media", nil), r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	var out struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
