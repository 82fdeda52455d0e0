package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/stxapps/gaia-go/pkg/protocol"
)

// ErrMACMismatch is returned when a cipher object fails authentication.
var ErrMACMismatch = errors.New("ecies: mac mismatch")

// Encrypt seals content to publicKey with ECIES: an ephemeral ECDH secret is
// stretched with SHA-512 into an AES-256-CBC key and an HMAC-SHA256 key.
func (Secp256k1) Encrypt(publicKey string, content []byte, wasString bool) (*protocol.CipherObject, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	eph, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("ephemeral key: %w", err)
	}
	encKey, macKey := sharedKeys(btcec.GenerateSharedSecret(eph, pub))

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("read iv: %w", err)
	}
	ct, err := aesCBCEncrypt(encKey, iv, content)
	if err != nil {
		return nil, err
	}
	ephPK := eph.PubKey().SerializeCompressed()

	return &protocol.CipherObject{
		IV:          hex.EncodeToString(iv),
		EphemeralPK: hex.EncodeToString(ephPK),
		CipherText:  hex.EncodeToString(ct),
		MAC:         hex.EncodeToString(macOf(macKey, iv, ephPK, ct)),
		WasString:   wasString,
	}, nil
}

// Decrypt opens a cipher object produced by Encrypt.
func (Secp256k1) Decrypt(privateKey string, obj *protocol.CipherObject) ([]byte, error) {
	if obj == nil {
		return nil, errors.New("ecies: nil cipher object")
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(obj.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	ephPK, err := hex.DecodeString(obj.EphemeralPK)
	if err != nil {
		return nil, fmt.Errorf("decode ephemeral key: %w", err)
	}
	ct, err := hex.DecodeString(obj.CipherText)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(obj.MAC)
	if err != nil {
		return nil, fmt.Errorf("decode mac: %w", err)
	}
	eph, err := btcec.ParsePubKey(ephPK)
	if err != nil {
		return nil, fmt.Errorf("parse ephemeral key: %w", err)
	}

	encKey, macKey := sharedKeys(btcec.GenerateSharedSecret(priv, eph))
	if !hmac.Equal(mac, macOf(macKey, iv, ephPK, ct)) {
		return nil, ErrMACMismatch
	}
	return aesCBCDecrypt(encKey, iv, ct)
}

func sharedKeys(secret []byte) (encKey, macKey []byte) {
	sum := sha512.Sum512(secret)
	return sum[:32], sum[32:]
}

func macOf(key, iv, ephPK, ct []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(iv)
	m.Write(ephPK)
	m.Write(ct)
	return m.Sum(nil)
}

func aesCBCEncrypt(key, iv, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, buf)
	return out, nil
}

func aesCBCDecrypt(key, iv, ct []byte) ([]byte, error) {
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("ecies: ciphertext is not a multiple of the block size")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("ecies: invalid iv length")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("ecies: invalid padding")
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, errors.New("ecies: invalid padding")
		}
	}
	return out[:len(out)-pad], nil
}
