package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/stxapps/gaia-go/pkg/client"
	"github.com/stxapps/gaia-go/pkg/crypto"
	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
)

const (
	opTransform = "transform"
	opPerform   = "performFiles"
)

// Hub submits an encoded tree. *client.Client implements it.
type Hub interface {
	PublicKey() (string, error)
	PerformFiles(ctx context.Context, body []byte) (string, error)
}

// Processor transforms and submits operation trees.
type Processor struct {
	hub        Hub
	crypto     crypto.Facade
	localFiles client.LocalFiles
}

// Config holds processor configuration.
type Config struct {
	Hub        Hub
	Crypto     crypto.Facade
	LocalFiles client.LocalFiles
}

// New creates a processor.
func New(cfg Config) *Processor {
	if cfg.Crypto == nil {
		cfg.Crypto = crypto.Secp256k1{}
	}
	if cfg.LocalFiles == nil {
		cfg.LocalFiles = client.FileRefs{}
	}
	return &Processor{hub: cfg.Hub, crypto: cfg.Crypto, localFiles: cfg.LocalFiles}
}

// ForClient creates a processor sharing c's crypto and local file handling.
func ForClient(c *client.Client) *Processor {
	return New(Config{Hub: c, Crypto: c.Crypto(), LocalFiles: c.LocalFiles()})
}

// LeafKind classifies a leaf for transformation.
type LeafKind int

const (
	LeafPassThrough LeafKind = iota // unknown type, forwarded unchanged
	LeafPutFile
	LeafDeleteFile
	LeafMalformed // missing id, type or path
)

// Classify reports how Transform treats l.
func Classify(l *Leaf) LeafKind {
	switch {
	case l.Type == TypePutFile:
		return LeafPutFile
	case l.Malformed():
		return LeafMalformed
	case l.Type == TypeDeleteFile:
		return LeafDeleteFile
	default:
		return LeafPassThrough
	}
}

// Transform returns a copy of the tree with every putFile leaf encrypted to
// recipientPublicKey. Group order and flags are kept. It makes no network
// calls. A leaf that cannot be transformed is left as it was and its error
// is joined into the returned error; the other leaves are still transformed.
func (p *Processor) Transform(n Node, recipientPublicKey string) (Node, error) {
	switch n := n.(type) {
	case *Group:
		out := n.shell()
		var errs []error
		for _, child := range n.Values {
			t, err := p.Transform(child, recipientPublicKey)
			if err != nil {
				errs = append(errs, err)
			}
			out.Values = append(out.Values, t)
		}
		return out, errors.Join(errs...)
	case *Leaf:
		return p.transformLeaf(n, recipientPublicKey)
	case nil:
		return nil, gaiaerr.New(gaiaerr.KindConfiguration, opTransform, "nil node")
	default:
		return n, gaiaerr.New(gaiaerr.KindConfiguration, opTransform, fmt.Sprintf("unknown node %T", n))
	}
}

func (p *Processor) transformLeaf(l *Leaf, recipientPublicKey string) (Node, error) {
	switch Classify(l) {
	case LeafPutFile:
		return p.encryptLeaf(l, recipientPublicKey)
	case LeafDeleteFile:
		return l.clone(), nil
	case LeafMalformed:
		logger.Warn("malformed batch leaf",
			zap.String("id", l.ID),
			zap.String("type", l.Type),
			zap.String("path", l.Path))
		return l.clone(), nil
	default:
		logger.Debug("passing through batch leaf", zap.String("id", l.ID), zap.String("type", l.Type))
		return l.clone(), nil
	}
}

func (p *Processor) encryptLeaf(l *Leaf, recipientPublicKey string) (Node, error) {
	if l.Malformed() {
		logger.Warn("malformed putFile leaf", zap.String("id", l.ID), zap.String("path", l.Path))
	}

	var (
		data      []byte
		wasString bool
		path      = l.Path
	)
	if local, storagePath, ok := p.localFiles.Resolve(l.Path); ok {
		b, err := os.ReadFile(local)
		if err == nil {
			data, path = b, storagePath
		} else if s, ok := l.TextContent(); ok {
			data, wasString, path = []byte(s), true, storagePath
		} else {
			return l.clone(), &gaiaerr.Error{Kind: gaiaerr.KindConfiguration, Op: opTransform,
				Msg: fmt.Sprintf("leaf %q: cannot read %s", l.ID, local), Err: err}
		}
	} else if s, ok := l.TextContent(); ok {
		data, wasString = []byte(s), true
	} else {
		return l.clone(), gaiaerr.New(gaiaerr.KindConfiguration, opTransform,
			fmt.Sprintf("leaf %q: putFile has no content", l.ID))
	}

	obj, err := p.crypto.Encrypt(recipientPublicKey, data, wasString)
	if err != nil {
		return l.clone(), &gaiaerr.Error{Kind: gaiaerr.KindConfiguration, Op: opTransform,
			Msg: fmt.Sprintf("leaf %q: encrypt", l.ID), Err: err}
	}
	content, err := json.Marshal(obj)
	if err != nil {
		return l.clone(), gaiaerr.Wrap(gaiaerr.KindConfiguration, opTransform, err)
	}

	out := l.clone()
	out.Path = path
	out.Content = content
	return out, nil
}

// Perform encrypts the tree to the identity's own key and submits it. The
// tree is not sent if any leaf fails to transform.
func (p *Processor) Perform(ctx context.Context, n Node) (string, error) {
	if p.hub == nil {
		return "", gaiaerr.New(gaiaerr.KindConfiguration, opPerform, "no hub configured")
	}
	pub, err := p.hub.PublicKey()
	if err != nil {
		return "", err
	}
	t, err := p.Transform(n, pub)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(t)
	if err != nil {
		return "", gaiaerr.Wrap(gaiaerr.KindConfiguration, opPerform, err)
	}

	logger.WithContext(ctx).Debug("perform batch",
		zap.Int("leaves", CountLeaves(t)),
		zap.Int("size", len(body)))
	return p.hub.PerformFiles(ctx, body)
}
