// Package models holds the data types shared by the hub client packages.
package models

import (
	"strings"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
)

// Session is the result of a hub handshake. It is never mutated after
// construction; a new handshake produces a new Session.
type Session struct {
	ReadURLPrefix  string `json:"url_prefix"`
	StorageAddress string `json:"address"`
	AuthToken      string `json:"token"`
	HubBaseURL     string `json:"server"`
}

// Validate reports a ConfigurationError if any field is missing.
func (s *Session) Validate() error {
	if s == nil {
		return gaiaerr.New(gaiaerr.KindConfiguration, "session", "no session")
	}
	var missing []string
	if s.ReadURLPrefix == "" {
		missing = append(missing, "url_prefix")
	}
	if s.StorageAddress == "" {
		missing = append(missing, "address")
	}
	if s.AuthToken == "" {
		missing = append(missing, "token")
	}
	if s.HubBaseURL == "" {
		missing = append(missing, "server")
	}
	if len(missing) > 0 {
		return gaiaerr.New(gaiaerr.KindConfiguration, "session", "missing "+strings.Join(missing, ", "))
	}
	return nil
}

// MultiplayerTarget names another user's app storage for read-only access.
type MultiplayerTarget struct {
	Username          string
	AppOrigin         string
	ZoneFileLookupURL string
}

// Content is the result of a read. Decrypted is set when the data passed
// through decryption (or was a local file read with decryption requested).
type Content struct {
	Data      []byte
	IsText    bool
	Decrypted bool
}

// String returns the data as text.
func (c *Content) String() string {
	return string(c.Data)
}
