package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/models"
)

type fakeConnector struct {
	calls atomic.Int32
	err   error
}

func (f *fakeConnector) Connect(_ context.Context, hubURL, privateKey, _ string) (*models.Session, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Session{
		ReadURLPrefix:  "https://gaia.example.com/hub/",
		StorageAddress: "1Addr",
		AuthToken:      "v1:token-" + string(rune('0'+n)),
		HubBaseURL:     hubURL,
	}, nil
}

func newTestCache(conn Connector, store Store) *Cache {
	return New(Config{
		Profile:   Profile{PrivateKey: "key", HubURL: "https://hub.example.com"},
		Connector: conn,
		Store:     store,
	})
}

func TestGetOrCreate_ConnectsOnce(t *testing.T) {
	conn := &fakeConnector{}
	store := NewMemoryStore()
	c := newTestCache(conn, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	sessions := make([]*models.Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.GetOrCreate(ctx)
			if err != nil {
				t.Errorf("get: %v", err)
			}
			sessions[i] = s
		}()
	}
	wg.Wait()

	if n := conn.calls.Load(); n != 1 {
		t.Fatalf("expected 1 handshake, got %d", n)
	}
	for _, s := range sessions {
		if s != sessions[0] {
			t.Fatal("callers got different sessions")
		}
	}
	if c.Current() != sessions[0] {
		t.Error("Current does not return the cached session")
	}
	if stored, err := store.Load(ctx, DefaultKey); err != nil || stored.AuthToken != sessions[0].AuthToken {
		t.Errorf("session not persisted: %v %v", stored, err)
	}
}

func TestGetOrCreate_RestoresFromStore(t *testing.T) {
	store := NewMemoryStore()
	store.Save(context.Background(), DefaultKey, &models.Session{
		ReadURLPrefix: "p/", StorageAddress: "1Stored", AuthToken: "v1:stored", HubBaseURL: "https://hub.example.com",
	})
	conn := &fakeConnector{}
	c := newTestCache(conn, store)

	s, err := c.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.AuthToken != "v1:stored" {
		t.Errorf("expected stored session, got %+v", s)
	}
	if n := conn.calls.Load(); n != 0 {
		t.Errorf("expected no handshake, got %d", n)
	}
}

func TestGetOrCreate_IgnoresStaleStoredSession(t *testing.T) {
	tests := map[string]*models.Session{
		"other hub":  {ReadURLPrefix: "p/", StorageAddress: "1A", AuthToken: "t", HubBaseURL: "https://other.example.com"},
		"incomplete": {StorageAddress: "1A", HubBaseURL: "https://hub.example.com"},
	}
	for name, stored := range tests {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryStore()
			store.Save(context.Background(), DefaultKey, stored)
			conn := &fakeConnector{}

			s, err := newTestCache(conn, store).GetOrCreate(context.Background())
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if conn.calls.Load() != 1 || s.StorageAddress != "1Addr" {
				t.Errorf("expected a fresh handshake, got %+v", s)
			}
		})
	}
}

func TestGetOrCreate_HandshakeError(t *testing.T) {
	conn := &fakeConnector{err: gaiaerr.New(gaiaerr.KindConnection, "hubInfo", "down")}
	c := newTestCache(conn, nil)

	if _, err := c.GetOrCreate(context.Background()); !errors.Is(err, gaiaerr.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if c.Current() != nil {
		t.Error("failed handshake must not cache a session")
	}
}

func TestGetOrCreate_NoKey(t *testing.T) {
	c := New(Config{Connector: &fakeConnector{}})
	if _, err := c.GetOrCreate(context.Background()); !errors.Is(err, gaiaerr.ErrNotAuthenticated) {
		t.Errorf("expected not authenticated, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	conn := &fakeConnector{}
	store := NewMemoryStore()
	c := newTestCache(conn, store)
	ctx := context.Background()

	first, _ := c.GetOrCreate(ctx)
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if c.Current() != nil {
		t.Error("session still cached after invalidate")
	}
	if _, err := store.Load(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("session still persisted: %v", err)
	}

	second, err := c.GetOrCreate(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second == first || conn.calls.Load() != 2 {
		t.Error("expected a new handshake after invalidate")
	}
	// The old session is still intact for requests that hold it.
	if first.AuthToken == "" {
		t.Error("previous session was mutated")
	}
}

func TestSet(t *testing.T) {
	store := NewMemoryStore()
	c := newTestCache(&fakeConnector{}, store)
	ctx := context.Background()

	if err := c.Set(ctx, &models.Session{}); !errors.Is(err, gaiaerr.ErrConfiguration) {
		t.Errorf("expected configuration error for empty session, got %v", err)
	}

	s := &models.Session{ReadURLPrefix: "p/", StorageAddress: "1A", AuthToken: "t", HubBaseURL: "h"}
	if err := c.Set(ctx, s); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.Current() != s {
		t.Error("Set did not replace the session")
	}
}
