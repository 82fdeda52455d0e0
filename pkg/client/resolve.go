package client

import (
	"context"

	"github.com/stxapps/gaia-go/pkg/models"
)

// ResolveBucketURL returns the bucket URL another user's app writes to.
// Results are cached for the life of the client.
func (c *Client) ResolveBucketURL(ctx context.Context, target models.MultiplayerTarget) (string, error) {
	key := target.Username + "|" + target.AppOrigin

	c.mu.Lock()
	bucket, ok := c.buckets[key]
	c.mu.Unlock()
	if ok {
		return bucket, nil
	}

	bucket, err := c.resolver.ResolveBucketURL(ctx, target)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.buckets[key] = bucket
	c.mu.Unlock()
	return bucket, nil
}
