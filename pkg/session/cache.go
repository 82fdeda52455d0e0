// Package session keeps the hub session for one identity and persists it
// across processes.
//
// A Cache is an explicit handle: callers create one per identity and pass it
// to the storage client. Nothing is held in package state.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/hub"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/models"
)

// DefaultKey is the store key used when none is configured.
const DefaultKey = "gaia.session"

// Connector performs the hub handshake. *hub.Connector implements it.
type Connector interface {
	Connect(ctx context.Context, hubURL, privateKey, associationToken string) (*models.Session, error)
}

// Profile is the identity a cache connects as.
type Profile struct {
	PrivateKey       string
	HubURL           string
	AssociationToken string
}

// Config holds cache configuration.
type Config struct {
	Profile   Profile
	Connector Connector
	// Store persists the session. Nil keeps it in memory only.
	Store Store
	Key   string
}

// Cache holds the active session for one identity.
type Cache struct {
	profile   Profile
	connector Connector
	store     Store
	key       string

	mu      sync.Mutex
	current *models.Session
}

// New creates a cache.
func New(cfg Config) *Cache {
	if cfg.Profile.HubURL == "" {
		cfg.Profile.HubURL = hub.DefaultHubURL
	}
	if cfg.Connector == nil {
		cfg.Connector = hub.New(hub.Config{})
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	return &Cache{
		profile:   cfg.Profile,
		connector: cfg.Connector,
		store:     cfg.Store,
		key:       cfg.Key,
	}
}

// GetOrCreate returns the cached session, the persisted one, or the result
// of a new handshake, in that order. Concurrent callers share one handshake.
func (c *Cache) GetOrCreate(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return c.current, nil
	}

	if s := c.loadPersisted(ctx); s != nil {
		c.current = s
		return s, nil
	}

	if c.profile.PrivateKey == "" {
		return nil, gaiaerr.New(gaiaerr.KindNotAuthenticated, "session", "no identity key to connect with")
	}
	s, err := c.connector.Connect(ctx, c.profile.HubURL, c.profile.PrivateKey, c.profile.AssociationToken)
	if err != nil {
		return nil, err
	}
	// A failed save is logged; the session is still usable.
	_ = c.replace(ctx, s)
	return s, nil
}

// loadPersisted returns a usable stored session for this hub, or nil.
func (c *Cache) loadPersisted(ctx context.Context) *models.Session {
	s, err := c.store.Load(ctx, c.key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		logger.Warn("session store load failed", zap.String("key", c.key), zap.Error(err))
		return nil
	}
	if err := s.Validate(); err != nil {
		logger.Warn("ignoring invalid stored session", zap.String("key", c.key), zap.Error(err))
		return nil
	}
	if s.HubBaseURL != strings.TrimRight(c.profile.HubURL, "/") {
		logger.Debug("stored session is for another hub",
			zap.String("stored", s.HubBaseURL),
			zap.String("profile", c.profile.HubURL))
		return nil
	}
	logger.Debug("restored session", zap.String("key", c.key), zap.String("address", s.StorageAddress))
	return s
}

// Set replaces the active session and persists it.
func (c *Cache) Set(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replace(ctx, s)
}

// replace must be called with mu held. Requests already holding the previous
// session keep using it.
func (c *Cache) replace(ctx context.Context, s *models.Session) error {
	c.current = s
	if err := c.store.Save(ctx, c.key, s); err != nil {
		logger.Warn("session store save failed", zap.String("key", c.key), zap.Error(err))
		return err
	}
	return nil
}

// Current returns the in-memory session without connecting, or nil.
func (c *Cache) Current() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Invalidate drops the session from memory and from the store.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	return c.store.Delete(ctx, c.key)
}
