// Package hub performs the Gaia hub handshake that turns a hub URL and an
// identity key into a models.Session.
package hub

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stxapps/gaia-go/pkg/crypto"
	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/metrics"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

// DefaultHubURL is used when an identity has no hub configured.
const DefaultHubURL = "https://hub.blockstack.org"

// TokenVersionPrefix marks the auth token scheme.
const TokenVersionPrefix = "v1:"

const saltSize = 16

// Connector performs hub handshakes.
type Connector struct {
	httpClient *http.Client
	crypto     crypto.Facade
}

// Config holds connector configuration.
type Config struct {
	HTTPClient *http.Client
	Crypto     crypto.Facade
	Timeout    time.Duration
}

// New creates a new connector.
func New(cfg Config) *Connector {
	if cfg.Crypto == nil {
		cfg.Crypto = crypto.Secp256k1{}
	}
	if cfg.HTTPClient == nil {
		if cfg.Timeout == 0 {
			cfg.Timeout = 30 * time.Second
		}
		cfg.HTTPClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Connector{httpClient: cfg.HTTPClient, crypto: cfg.Crypto}
}

// Connect fetches hub_info from hubURL and signs an auth token for
// privateKey. No step is retried.
func (c *Connector) Connect(ctx context.Context, hubURL, privateKey, associationToken string) (*models.Session, error) {
	hubURL = strings.TrimRight(hubURL, "/")
	if hubURL == "" {
		return nil, gaiaerr.New(gaiaerr.KindConfiguration, "connect", "hub url is required")
	}
	if privateKey == "" {
		return nil, gaiaerr.New(gaiaerr.KindNotAuthenticated, "connect", "no identity key")
	}

	info, err := c.FetchHubInfo(ctx, hubURL)
	if err != nil {
		metrics.RecordHandshake(false)
		return nil, err
	}

	session, err := c.sessionFor(info, hubURL, privateKey, associationToken)
	if err != nil {
		metrics.RecordHandshake(false)
		return nil, err
	}

	metrics.RecordHandshake(true)
	logger.WithContext(ctx).Info("connected to hub",
		zap.String("hub", hubURL),
		zap.String("address", session.StorageAddress))
	return session, nil
}

// FetchHubInfo retrieves GET <hubURL>/hub_info. Any failure is a
// ConnectionError.
func (c *Connector) FetchHubInfo(ctx context.Context, hubURL string) (*protocol.HubInfo, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hubURL+"/hub_info", nil)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConnection, "hubInfo", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRequest("hubInfo", 0, time.Since(start))
		return nil, gaiaerr.Wrap(gaiaerr.KindConnection, "hubInfo", err)
	}
	defer resp.Body.Close()
	metrics.RecordRequest("hubInfo", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &gaiaerr.Error{Kind: gaiaerr.KindConnection, Op: "hubInfo", Status: resp.StatusCode}
	}

	var info protocol.HubInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConnection, "hubInfo", fmt.Errorf("decode hub info: %w", err))
	}
	return &info, nil
}

func (c *Connector) sessionFor(info *protocol.HubInfo, hubURL, privateKey, associationToken string) (*models.Session, error) {
	if info.ChallengeText == "" || info.LatestAuthVersion == "" || info.ReadURLPrefix == "" {
		return nil, gaiaerr.New(gaiaerr.KindConfiguration, "connect", "hub info is missing required fields")
	}
	if _, err := ParseAuthVersion(info.LatestAuthVersion); err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, "connect", err)
	}

	publicKey, err := c.crypto.PublicKey(privateKey)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, "connect", err)
	}
	address, err := c.crypto.Address(publicKey)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, "connect", err)
	}
	salt, err := c.crypto.RandomBytes(saltSize)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, "connect", err)
	}

	claims, err := protocol.AuthPayload{
		GaiaChallenge:        info.ChallengeText,
		HubURL:               hubURL,
		Iss:                  publicKey,
		Salt:                 hex.EncodeToString(salt),
		GaiaAssociationToken: associationToken,
	}.Claims()
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, "connect", err)
	}

	token, err := c.crypto.SignToken(claims, privateKey)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindConfiguration, "connect", err)
	}

	return &models.Session{
		ReadURLPrefix:  info.ReadURLPrefix,
		StorageAddress: address,
		AuthToken:      TokenVersionPrefix + token,
		HubBaseURL:     hubURL,
	}, nil
}

// ParseAuthVersion parses a "v<N>" auth version and requires N >= 1.
func ParseAuthVersion(v string) (int, error) {
	if !strings.HasPrefix(v, "v") {
		return 0, fmt.Errorf("unsupported auth version %q", v)
	}
	n, err := strconv.Atoi(v[1:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unsupported auth version %q", v)
	}
	return n, nil
}
