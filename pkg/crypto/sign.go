package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/stxapps/gaia-go/pkg/protocol"
)

// Sign produces a DER-encoded ECDSA signature over SHA-256(content).
func (Secp256k1) Sign(privateKey string, content []byte) (*protocol.SignatureEnvelope, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(content)
	sig := ecdsa.Sign(priv, hash[:])
	return &protocol.SignatureEnvelope{
		Signature: hex.EncodeToString(sig.Serialize()),
		PublicKey: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}, nil
}

// Verify checks a signature produced by Sign.
func (Secp256k1) Verify(content []byte, publicKey, signature string) bool {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return false
	}
	der, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	hash := sha256.Sum256(content)
	return sig.Verify(hash[:], pub)
}
