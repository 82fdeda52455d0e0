// Package naming resolves another user's identity to the storage bucket an
// app writes to, for read-only multiplayer access.
//
// Resolution follows the name-service chain: name record, zone file URI
// record, signed profile token, then the profile's apps map.
package naming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stxapps/gaia-go/pkg/crypto"
	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/metrics"
	"github.com/stxapps/gaia-go/pkg/models"
)

// DefaultLookupURL is the name-service API used when a target has none.
const DefaultLookupURL = "https://core.blockstack.org"

// Resolver maps a multiplayer target to its bucket URL.
type Resolver interface {
	ResolveBucketURL(ctx context.Context, target models.MultiplayerTarget) (string, error)
}

// NameRecord is returned by GET /v1/names/{name}.
type NameRecord struct {
	Address  string `json:"address"`
	Zonefile string `json:"zonefile"`
	Status   string `json:"status,omitempty"`
}

// ProfileTokenFile is the JSON document a zone file URI points at.
type ProfileTokenFile []struct {
	Token string `json:"token"`
}

var uriRecord = regexp.MustCompile(`(?m)^\s*\S*\s+(?:IN\s+)?URI\s+\d+\s+\d+\s+"([^"]+)"`)

// HTTPResolver resolves targets over HTTP.
type HTTPResolver struct {
	httpClient *http.Client
}

// NewHTTPResolver creates a resolver. A nil client gets a 30s timeout.
func NewHTTPResolver(httpClient *http.Client) *HTTPResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPResolver{httpClient: httpClient}
}

// ResolveBucketURL returns the app bucket URL, always ending in "/".
func (r *HTTPResolver) ResolveBucketURL(ctx context.Context, target models.MultiplayerTarget) (string, error) {
	if target.Username == "" || target.AppOrigin == "" {
		return "", gaiaerr.New(gaiaerr.KindConfiguration, "resolve", "username and app origin are required")
	}
	lookup := strings.TrimRight(target.ZoneFileLookupURL, "/")
	if lookup == "" {
		lookup = DefaultLookupURL
	}

	var rec NameRecord
	if err := r.getJSON(ctx, "lookupName", lookup+"/v1/names/"+url.PathEscape(target.Username), &rec); err != nil {
		return "", err
	}

	profileURL, err := ProfileURLFromZonefile(rec.Zonefile)
	if err != nil {
		return "", err
	}

	var tokens ProfileTokenFile
	if err := r.getJSON(ctx, "fetchProfile", profileURL, &tokens); err != nil {
		return "", err
	}
	if len(tokens) == 0 || tokens[0].Token == "" {
		return "", gaiaerr.New(gaiaerr.KindInvalidResponse, "fetchProfile", "profile has no tokens")
	}

	apps, err := r.appsFromToken(tokens[0].Token)
	if err != nil {
		return "", err
	}
	bucket, ok := apps[target.AppOrigin].(string)
	if !ok || bucket == "" {
		return "", gaiaerr.New(gaiaerr.KindItemNotFound, "resolve",
			fmt.Sprintf("%s has no bucket for %s", target.Username, target.AppOrigin))
	}
	if !strings.HasSuffix(bucket, "/") {
		bucket += "/"
	}

	logger.Debug("resolved multiplayer bucket",
		zap.String("username", target.Username),
		zap.String("app", target.AppOrigin),
		zap.String("bucket", bucket))
	return bucket, nil
}

// appsFromToken decodes the profile claims. If the token names its issuer
// key, the signature must verify against it.
func (r *HTTPResolver) appsFromToken(token string) (map[string]any, error) {
	claims, err := crypto.DecodeToken(token)
	if err != nil {
		return nil, gaiaerr.Wrap(gaiaerr.KindInvalidResponse, "fetchProfile", err)
	}
	if issuer, ok := claims["issuer"].(map[string]any); ok {
		if pub, ok := issuer["publicKey"].(string); ok && pub != "" {
			if _, err := crypto.VerifyToken(token, pub); err != nil {
				return nil, gaiaerr.Wrap(gaiaerr.KindSignatureVerification, "fetchProfile", err)
			}
		}
	}
	claim, _ := claims["claim"].(map[string]any)
	apps, _ := claim["apps"].(map[string]any)
	return apps, nil
}

func (r *HTTPResolver) getJSON(ctx context.Context, op, rawURL string, v any) error {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return gaiaerr.Wrap(gaiaerr.KindConfiguration, op, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		metrics.RecordRequest(op, 0, time.Since(start))
		return gaiaerr.Wrap(gaiaerr.KindRequest, op, err)
	}
	defer resp.Body.Close()
	metrics.RecordRequest(op, resp.StatusCode, time.Since(start))

	if err := gaiaerr.FromStatus(op, resp.StatusCode, gaiaerr.EndpointRead); err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gaiaerr.Wrap(gaiaerr.KindRequest, op, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return gaiaerr.Wrap(gaiaerr.KindInvalidResponse, op, err)
	}
	return nil
}

// ProfileURLFromZonefile extracts the first URI record target.
func ProfileURLFromZonefile(zonefile string) (string, error) {
	m := uriRecord.FindStringSubmatch(zonefile)
	if m == nil {
		return "", gaiaerr.New(gaiaerr.KindInvalidResponse, "lookupName", "zone file has no URI record")
	}
	return m[1], nil
}

// AddressFromBucketURL returns the storage address that ends a bucket URL,
// e.g. "https://gaia.example.com/hub/1Abc/" yields "1Abc".
func AddressFromBucketURL(bucket string) (string, error) {
	u, err := url.Parse(bucket)
	if err != nil {
		return "", gaiaerr.Wrap(gaiaerr.KindInvalidResponse, "resolve", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	addr := parts[len(parts)-1]
	if addr == "" {
		return "", gaiaerr.New(gaiaerr.KindInvalidResponse, "resolve", "bucket url has no address: "+bucket)
	}
	return addr, nil
}
