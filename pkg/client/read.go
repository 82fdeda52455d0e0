package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/metrics"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/naming"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

// GetOptions selects the read mode.
type GetOptions struct {
	Decrypt bool
	Verify  bool
	// Target reads another user's bucket instead of our own.
	Target *models.MultiplayerTarget
}

const opGet = "getFile"

// GetFile reads path. With Verify the signature is checked against the
// expected signer address; with Decrypt the content is opened with the
// identity key. Local file references are served from disk when present.
func (c *Client) GetFile(ctx context.Context, path string, opts GetOptions) (*models.Content, error) {
	if local, storagePath, ok := c.localFiles.Resolve(path); ok {
		if data, ok := readLocal(local); ok {
			return &models.Content{Data: data, Decrypted: opts.Decrypt}, nil
		}
		path = storagePath
	}

	if opts.Decrypt && c.privateKey == "" {
		return nil, gaiaerr.New(gaiaerr.KindNotAuthenticated, opGet, "no identity key to decrypt with")
	}

	base, err := c.readBase(ctx, opts.Target)
	if err != nil {
		return nil, err
	}
	fileURL := base + EscapePath(path)

	logger.WithContext(ctx).Debug("get file",
		zap.String("path", path),
		zap.Bool("decrypt", opts.Decrypt),
		zap.Bool("verify", opts.Verify),
		zap.Bool("multiplayer", opts.Target != nil))

	switch {
	case !opts.Decrypt && !opts.Verify:
		resp, err := c.fetch(ctx, fileURL)
		if err != nil {
			return nil, err
		}
		return plainContent(resp), nil
	case opts.Verify && !opts.Decrypt:
		return c.getVerified(ctx, fileURL, base)
	case opts.Decrypt && !opts.Verify:
		resp, err := c.fetch(ctx, fileURL)
		if err != nil {
			return nil, err
		}
		return c.decryptBody(resp.body)
	default:
		return c.getSignedEncrypted(ctx, fileURL, base)
	}
}

// readBase returns the bucket URL (with trailing "/") the path is appended to.
func (c *Client) readBase(ctx context.Context, target *models.MultiplayerTarget) (string, error) {
	if target != nil {
		return c.ResolveBucketURL(ctx, *target)
	}
	s, err := c.Session(ctx)
	if err != nil {
		return "", err
	}
	return s.ReadURLPrefix + s.StorageAddress + "/", nil
}

func (c *Client) fetch(ctx context.Context, fileURL string) (*response, error) {
	return c.do(ctx, request{
		op:       opGet,
		method:   http.MethodGet,
		url:      fileURL,
		endpoint: gaiaerr.EndpointRead,
	})
}

// getVerified fetches content and signature concurrently. The signer must be
// the address ending base: our own storage address, or the one in a resolved
// multiplayer bucket URL.
func (c *Client) getVerified(ctx context.Context, fileURL, base string) (*models.Content, error) {
	signer, err := naming.AddressFromBucketURL(base)
	if err != nil {
		return nil, err
	}

	var content, sig *response
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = c.fetch(gctx, fileURL)
		return err
	})
	g.Go(func() error {
		var err error
		sig, err = c.fetch(gctx, fileURL+protocol.SignatureSuffix)
		if errors.Is(err, gaiaerr.ErrItemNotFound) {
			return &gaiaerr.Error{Kind: gaiaerr.KindSignatureVerification, Op: opGet,
				Msg: "no signature file for " + fileURL, Err: err}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var env protocol.SignatureEnvelope
	if err := json.Unmarshal(sig.body, &env); err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindSignatureVerification, opGet, fmt.Errorf("parse signature file: %w", err))
	}
	if err := c.checkSignature(content.body, &env, signer); err != nil {
		return nil, err
	}
	return plainContent(content), nil
}

// getSignedEncrypted reads a single envelope with embedded ciphertext.
func (c *Client) getSignedEncrypted(ctx context.Context, fileURL, base string) (*models.Content, error) {
	resp, err := c.fetch(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	signer, err := naming.AddressFromBucketURL(base)
	if err != nil {
		return nil, err
	}

	var env protocol.SignatureEnvelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindSignatureVerification, opGet, fmt.Errorf("parse signed content: %w", err))
	}
	if env.CipherText == "" {
		return nil, gaiaerr.New(gaiaerr.KindSignatureVerification, opGet, "signed content has no ciphertext")
	}
	if err := c.checkSignature([]byte(env.CipherText), &env, signer); err != nil {
		return nil, err
	}
	return c.decryptBody([]byte(env.CipherText))
}

func (c *Client) checkSignature(content []byte, env *protocol.SignatureEnvelope, signer string) error {
	if env.Signature == "" || env.PublicKey == "" {
		metrics.RecordSignatureCheck(false)
		return gaiaerr.New(gaiaerr.KindSignatureVerification, opGet, "signature envelope is incomplete")
	}
	addr, err := c.crypto.Address(env.PublicKey)
	if err != nil {
		metrics.RecordSignatureCheck(false)
		return gaiaerr.Wrap(gaiaerr.KindSignatureVerification, opGet, err)
	}
	if addr != signer {
		metrics.RecordSignatureCheck(false)
		return gaiaerr.New(gaiaerr.KindSignatureVerification, opGet,
			fmt.Sprintf("signer %s does not match expected %s", addr, signer))
	}
	if !c.crypto.Verify(content, env.PublicKey, env.Signature) {
		metrics.RecordSignatureCheck(false)
		return gaiaerr.New(gaiaerr.KindSignatureVerification, opGet, "signature does not verify")
	}
	metrics.RecordSignatureCheck(true)
	return nil
}

func (c *Client) decryptBody(body []byte) (*models.Content, error) {
	var obj protocol.CipherObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindInvalidResponse, opGet, fmt.Errorf("parse cipher object: %w", err))
	}
	plain, err := c.crypto.Decrypt(c.privateKey, &obj)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindInvalidResponse, opGet, fmt.Errorf("decrypt: %w", err))
	}
	return &models.Content{Data: plain, IsText: obj.WasString, Decrypted: true}, nil
}

func plainContent(resp *response) *models.Content {
	return &models.Content{Data: resp.body, IsText: !isBinary(resp.header.Get("Content-Type"))}
}

func isBinary(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == protocol.ContentTypeBinary
}
