// Package protocol defines the hub wire types.
package protocol

import "encoding/json"

// HubInfo is returned by GET /hub_info.
type HubInfo struct {
	ChallengeText     string `json:"challenge_text"`
	ReadURLPrefix     string `json:"read_url_prefix"`
	LatestAuthVersion string `json:"latest_auth_version"`
}

// AuthPayload is the claim set signed during the hub handshake.
type AuthPayload struct {
	GaiaChallenge        string `json:"gaiaChallenge"`
	HubURL               string `json:"hubUrl"`
	Iss                  string `json:"iss"`
	Salt                 string `json:"salt"`
	GaiaAssociationToken string `json:"associationToken,omitempty"`
}

// Claims returns the payload as JWT claims, keyed by its JSON names.
func (p AuthPayload) Claims() (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var claims map[string]any
	if err := json.Unmarshal(b, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// StoreResponse is returned by POST /store/{address}/{path}.
type StoreResponse struct {
	PublicURL string `json:"publicURL"`
}

// ListFilesRequest is the body for POST /list-files/{address}.
// Page is serialized as null on the first request.
type ListFilesRequest struct {
	Page *string `json:"page"`
}

// ListFilesResponse is returned by POST /list-files/{address}. Both keys must
// be present; RawMessage lets the client tell a null page from a missing one.
type ListFilesResponse struct {
	Entries json.RawMessage `json:"entries"`
	Page    json.RawMessage `json:"page"`
}

// SignatureEnvelope proves authorship of a stored object. It is stored as the
// sibling "<path>.sig" object, or as the whole object with CipherText set.
type SignatureEnvelope struct {
	Signature  string `json:"signature"`
	PublicKey  string `json:"publicKey"`
	CipherText string `json:"cipherText,omitempty"`
}

// CipherObject is the ECIES output stored in place of encrypted content.
type CipherObject struct {
	IV          string `json:"iv"`
	EphemeralPK string `json:"ephemeralPK"`
	CipherText  string `json:"cipherText"`
	MAC         string `json:"mac"`
	WasString   bool   `json:"wasString"`
}

// Content types sent on upload.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeText   = "text/plain"
	ContentTypeBinary = "application/octet-stream"
)

// SignatureSuffix is appended to a path to locate its signature sibling.
const SignatureSuffix = ".sig"
