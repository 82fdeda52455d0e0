// Package crypto provides the key, signature and encryption operations the
// hub client consumes. Facade is the seam; Secp256k1 is the default
// implementation, compatible with the keys and formats Gaia hubs expect.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // address format requires RIPEMD-160

	"github.com/stxapps/gaia-go/pkg/protocol"
)

// Facade is the set of cryptographic operations used by the client.
// Keys are hex strings: private keys 32 bytes (optionally with a trailing
// 0x01 compression marker), public keys 33-byte compressed points.
type Facade interface {
	PublicKey(privateKey string) (string, error)
	Address(publicKey string) (string, error)
	RandomBytes(n int) ([]byte, error)

	Encrypt(publicKey string, content []byte, wasString bool) (*protocol.CipherObject, error)
	Decrypt(privateKey string, obj *protocol.CipherObject) ([]byte, error)

	// Sign returns an envelope with Signature and PublicKey set.
	Sign(privateKey string, content []byte) (*protocol.SignatureEnvelope, error)
	Verify(content []byte, publicKey, signature string) bool

	// SignToken signs claims as a compact ES256K JWT.
	SignToken(claims map[string]any, privateKey string) (string, error)
}

// Secp256k1 implements Facade over the secp256k1 curve.
type Secp256k1 struct{}

var _ Facade = Secp256k1{}

// PublicKey derives the compressed public key for privateKey.
func (Secp256k1) PublicKey(privateKey string) (string, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(priv.PubKey().SerializeCompressed()), nil
}

// Address derives the base58check address (version 0) of publicKey.
func (Secp256k1) Address(publicKey string) (string, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return addressOf(pub), nil
}

// RandomBytes returns n bytes from crypto/rand.
func (Secp256k1) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// AddressFromPrivateKey is a convenience for deriving the storage address.
func AddressFromPrivateKey(f Facade, privateKey string) (string, error) {
	pub, err := f.PublicKey(privateKey)
	if err != nil {
		return "", err
	}
	return f.Address(pub)
}

// GeneratePrivateKey returns a new random private key as hex.
func GeneratePrivateKey() (string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(priv.Serialize()), nil
}

func addressOf(pub *btcec.PublicKey) string {
	sha := sha256.Sum256(pub.SerializeCompressed())
	h := ripemd160.New()
	h.Write(sha[:])
	return base58.CheckEncode(h.Sum(nil), 0x00)
}

func parsePrivateKey(s string) (*btcec.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if len(s) == 66 && strings.HasSuffix(s, "01") {
		s = s[:64]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid private key length: %d", len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}

func parsePublicKey(s string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}
