package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

// PutOptions selects the write mode.
type PutOptions struct {
	Encrypt bool
	// EncryptionKey is the recipient public key. Defaults to our own.
	EncryptionKey string

	Sign bool
	// SigningKey is the private key to sign with. Defaults to our own.
	SigningKey string

	// ContentType overrides the type sent for unencrypted uploads.
	ContentType string
	// IsText marks plain data as text; it decides the default content type
	// and is carried through encryption so readers get text back.
	IsText bool
}

const opPut = "putFile"

// upload is one object to store.
type upload struct {
	path        string
	body        []byte
	contentType string
}

// PutFile writes data at path and returns its public URL. All cryptographic
// work is done before the first request, so key problems never reach the hub.
func (c *Client) PutFile(ctx context.Context, path string, data []byte, opts PutOptions) (string, error) {
	if local, storagePath, ok := c.localFiles.Resolve(path); ok {
		b, ok := readLocal(local)
		if !ok {
			return "", gaiaerr.New(gaiaerr.KindConfiguration, opPut, "cannot read local file "+local)
		}
		data, path = b, storagePath
	}

	uploads, err := c.prepareUploads(path, data, opts)
	if err != nil {
		return "", err
	}

	s, err := c.Session(ctx)
	if err != nil {
		return "", err
	}

	logger.WithContext(ctx).Debug("put file",
		zap.String("path", path),
		zap.Int("size", len(data)),
		zap.Bool("encrypt", opts.Encrypt),
		zap.Bool("sign", opts.Sign))

	// Content first, then its signature; the returned URL is the content's.
	var publicURL string
	for i, u := range uploads {
		got, err := c.store(ctx, s, u)
		if err != nil {
			return "", err
		}
		if i == 0 {
			publicURL = got
		}
	}
	return publicURL, nil
}

// prepareUploads builds the one or two objects a write stores.
func (c *Client) prepareUploads(path string, data []byte, opts PutOptions) ([]upload, error) {
	if opts.Encrypt {
		cipherJSON, err := c.encrypt(data, opts)
		if err != nil {
			return nil, err
		}
		if !opts.Sign {
			return []upload{{path: path, body: cipherJSON, contentType: protocol.ContentTypeJSON}}, nil
		}
		env, err := c.sign(cipherJSON, opts.SigningKey)
		if err != nil {
			return nil, err
		}
		env.CipherText = string(cipherJSON)
		body, err := json.Marshal(env)
		if err != nil {
			return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, opPut, err)
		}
		return []upload{{path: path, body: body, contentType: protocol.ContentTypeJSON}}, nil
	}

	plain := upload{path: path, body: data, contentType: contentTypeFor(opts)}
	if !opts.Sign {
		return []upload{plain}, nil
	}
	env, err := c.sign(data, opts.SigningKey)
	if err != nil {
		return nil, err
	}
	sig, err := json.Marshal(env)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, opPut, err)
	}
	return []upload{
		plain,
		{path: path + protocol.SignatureSuffix, body: sig, contentType: protocol.ContentTypeJSON},
	}, nil
}

func (c *Client) encrypt(data []byte, opts PutOptions) ([]byte, error) {
	pub := opts.EncryptionKey
	if pub == "" {
		var err error
		if pub, err = c.PublicKey(); err != nil {
			return nil, err
		}
	}
	obj, err := c.crypto.Encrypt(pub, data, opts.IsText)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, opPut, fmt.Errorf("encrypt: %w", err))
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, opPut, err)
	}
	return b, nil
}

func (c *Client) sign(data []byte, key string) (*protocol.SignatureEnvelope, error) {
	if key == "" {
		key = c.privateKey
	}
	if key == "" {
		return nil, gaiaerr.New(gaiaerr.KindNotAuthenticated, opPut, "no identity key to sign with")
	}
	env, err := c.crypto.Sign(key, data)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, opPut, fmt.Errorf("sign: %w", err))
	}
	return env, nil
}

func contentTypeFor(opts PutOptions) string {
	switch {
	case opts.ContentType != "":
		return opts.ContentType
	case opts.IsText:
		return protocol.ContentTypeText
	default:
		return protocol.ContentTypeBinary
	}
}

// store uploads one object and returns its public URL.
func (c *Client) store(ctx context.Context, s *models.Session, u upload) (string, error) {
	resp, err := c.do(ctx, request{
		op:          opPut,
		method:      http.MethodPost,
		url:         storeURL(s, u.path),
		body:        u.body,
		contentType: u.contentType,
		token:       s.AuthToken,
		endpoint:    gaiaerr.EndpointWrite,
	})
	if err != nil {
		return "", err
	}
	var sr protocol.StoreResponse
	if err := json.Unmarshal(resp.body, &sr); err != nil {
		return "", gaiaerr.Wrap(gaiaerr.KindInvalidResponse, opPut, fmt.Errorf("parse store response: %w", err))
	}
	if sr.PublicURL == "" {
		return "", gaiaerr.New(gaiaerr.KindInvalidResponse, opPut, "store response has no publicURL")
	}
	return sr.PublicURL, nil
}
