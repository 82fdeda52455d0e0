package client

import (
	"context"
	"net/http"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

const opPerform = "performFiles"

// PerformFiles submits an encoded operation tree in one request, with the
// batch timeout, and returns the hub's response text.
func (c *Client) PerformFiles(ctx context.Context, body []byte) (string, error) {
	s, err := c.Session(ctx)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, request{
		op:          opPerform,
		method:      http.MethodPost,
		url:         performURL(s),
		body:        body,
		contentType: protocol.ContentTypeJSON,
		token:       s.AuthToken,
		endpoint:    gaiaerr.EndpointBatch,
		batch:       true,
	})
	if err != nil {
		return "", err
	}
	return string(resp.body), nil
}
