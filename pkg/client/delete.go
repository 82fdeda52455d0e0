package client

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

// DeleteOptions controls a delete.
type DeleteOptions struct {
	// WasSigned also removes the "<path>.sig" sibling.
	WasSigned bool
}

const opDelete = "deleteFile"

// DeleteFile removes path from the hub. A missing object is reported as
// ItemNotFound; whether that is acceptable is up to the caller.
func (c *Client) DeleteFile(ctx context.Context, path string, opts DeleteOptions) error {
	if _, storagePath, ok := c.localFiles.Resolve(path); ok {
		path = storagePath
	}
	s, err := c.Session(ctx)
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Debug("delete file",
		zap.String("path", path),
		zap.Bool("was_signed", opts.WasSigned))

	paths := []string{path}
	if opts.WasSigned {
		paths = append(paths, path+protocol.SignatureSuffix)
	}

	// Independent objects: neither delete cancels the other.
	var g errgroup.Group
	for _, p := range paths {
		g.Go(func() error {
			_, err := c.do(ctx, request{
				op:       opDelete,
				method:   http.MethodDelete,
				url:      deleteURL(s, p),
				token:    s.AuthToken,
				endpoint: gaiaerr.EndpointDelete,
			})
			return err
		})
	}
	return g.Wait()
}
