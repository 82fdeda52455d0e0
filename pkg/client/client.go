// Package client is the storage session: it reads, writes, deletes and lists
// objects on a Gaia hub, layering encryption, signing and signature
// verification over plain object storage.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stxapps/gaia-go/pkg/crypto"
	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/metrics"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/naming"
)

// SessionProvider yields the active session. session.Cache implements it.
type SessionProvider interface {
	GetOrCreate(ctx context.Context) (*models.Session, error)
}

// StaticSession is a SessionProvider for an already established session.
type StaticSession struct {
	Session *models.Session
}

// GetOrCreate returns the wrapped session.
func (s StaticSession) GetOrCreate(context.Context) (*models.Session, error) {
	return s.Session, nil
}

// Client is a storage session bound to one identity.
type Client struct {
	sessions   SessionProvider
	privateKey string
	crypto     crypto.Facade
	resolver   naming.Resolver
	localFiles LocalFiles

	httpClient  *http.Client
	batchClient *http.Client

	mu      sync.Mutex
	buckets map[string]string
}

// Config holds client configuration.
type Config struct {
	Sessions SessionProvider
	// PrivateKey is the identity's app private key. It is the default key
	// for decryption, signing and (via its public key) encryption.
	PrivateKey string

	Crypto     crypto.Facade
	Resolver   naming.Resolver
	LocalFiles LocalFiles

	HTTPClient   *http.Client
	Timeout      time.Duration
	BatchTimeout time.Duration
}

// DefaultBatchTimeout is the per-request timeout for batch submissions.
const DefaultBatchTimeout = 10 * time.Minute

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.Crypto == nil {
		cfg.Crypto = crypto.Secp256k1{}
	}
	if cfg.LocalFiles == nil {
		cfg.LocalFiles = FileRefs{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	// Same transport, longer deadline.
	batchClient := *httpClient
	batchClient.Timeout = cfg.BatchTimeout

	if cfg.Resolver == nil {
		cfg.Resolver = naming.NewHTTPResolver(httpClient)
	}

	return &Client{
		sessions:    cfg.Sessions,
		privateKey:  cfg.PrivateKey,
		crypto:      cfg.Crypto,
		resolver:    cfg.Resolver,
		localFiles:  cfg.LocalFiles,
		httpClient:  httpClient,
		batchClient: &batchClient,
		buckets:     make(map[string]string),
	}
}

// Crypto returns the facade the client uses.
func (c *Client) Crypto() crypto.Facade {
	return c.crypto
}

// LocalFiles returns the local file reference resolver.
func (c *Client) LocalFiles() LocalFiles {
	return c.localFiles
}

// PublicKey returns the identity's public key.
func (c *Client) PublicKey() (string, error) {
	if c.privateKey == "" {
		return "", gaiaerr.New(gaiaerr.KindNotAuthenticated, "publicKey", "no identity key")
	}
	pub, err := c.crypto.PublicKey(c.privateKey)
	if err != nil {
		return "", gaiaerr.Wrap(gaiaerr.KindConfiguration, "publicKey", err)
	}
	return pub, nil
}

// Session returns the active session, validated.
func (c *Client) Session(ctx context.Context) (*models.Session, error) {
	if c.sessions == nil {
		return nil, gaiaerr.New(gaiaerr.KindConfiguration, "session", "no session provider")
	}
	s, err := c.sessions.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// request describes one hub call.
type request struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
	token       string // bearer token, empty for anonymous reads
	endpoint    gaiaerr.Endpoint
	batch       bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do performs a request and maps its outcome onto the error taxonomy.
// Transport failures are RequestErrors; non-2xx go through FromStatus.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	start := time.Now()
	requestID := uuid.NewString()
	ctx = logger.WithRequestID(ctx, requestID)
	log := logger.WithContext(ctx)

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, r.op, err)
	}
	req.Header.Set("X-Request-ID", requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "bearer "+r.token)
	}

	hc := c.httpClient
	if r.batch {
		hc = c.batchClient
	}

	resp, err := hc.Do(req)
	if err != nil {
		metrics.RecordRequest(r.op, 0, time.Since(start))
		log.Debug("hub request failed",
			zap.String("op", r.op),
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err))
		return nil, gaiaerr.Wrap(gaiaerr.KindRequest, r.op, err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	metrics.RecordRequest(r.op, resp.StatusCode, time.Since(start))
	log.Debug("hub request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("url", r.url),
		zap.Int("status", resp.StatusCode),
		zap.Int("size", len(data)),
		zap.Duration("duration", time.Since(start)))

	if err := gaiaerr.FromStatus(r.op, resp.StatusCode, r.endpoint); err != nil {
		if e, ok := gaiaerr.As(err); ok && len(data) > 0 {
			e.Msg = truncate(string(data), 200)
		}
		return nil, err
	}
	if readErr != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindRequest, r.op, fmt.Errorf("read body: %w", readErr))
	}

	if r.method == http.MethodGet {
		metrics.RecordDownload(len(data))
	}
	if r.body != nil {
		metrics.RecordUpload(len(r.body))
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
