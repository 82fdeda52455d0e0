package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// Well-known test vector: private key 1 maps to generator point G.
const (
	testPrivateKey = "0000000000000000000000000000000000000000000000000000000000000001"
	testPublicKey  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	testAddress    = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
)

func TestPublicKeyAndAddress(t *testing.T) {
	f := Secp256k1{}

	pub, err := f.PublicKey(testPrivateKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub != testPublicKey {
		t.Errorf("expected %s, got %s", testPublicKey, pub)
	}

	// Compression marker suffix is accepted.
	pub2, err := f.PublicKey(testPrivateKey + "01")
	if err != nil || pub2 != pub {
		t.Errorf("expected same key with 01 suffix, got %s (%v)", pub2, err)
	}

	addr, err := f.Address(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != testAddress {
		t.Errorf("expected %s, got %s", testAddress, addr)
	}

	if _, err := f.PublicKey("zz"); err == nil {
		t.Error("expected error for bad hex")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	f := Secp256k1{}
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, _ := f.PublicKey(priv)

	for _, plain := range [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{0xff, 0x00}, 100)} {
		obj, err := f.Encrypt(pub, plain, true)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if !obj.WasString {
			t.Error("expected wasString to be preserved")
		}
		got, err := f.Decrypt(priv, obj)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("expected %x, got %x", plain, got)
		}
	}
}

func TestDecryptRejectsTamperedMAC(t *testing.T) {
	f := Secp256k1{}
	priv, _ := GeneratePrivateKey()
	pub, _ := f.PublicKey(priv)

	obj, err := f.Encrypt(pub, []byte("secret"), true)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	obj.CipherText = strings.Repeat("0", len(obj.CipherText))

	if _, err := f.Decrypt(priv, obj); !errors.Is(err, ErrMACMismatch) {
		t.Errorf("expected ErrMACMismatch, got %v", err)
	}

	other, _ := GeneratePrivateKey()
	obj2, _ := f.Encrypt(pub, []byte("secret"), true)
	if _, err := f.Decrypt(other, obj2); err == nil {
		t.Error("expected decrypt with wrong key to fail")
	}
}

func TestSignVerify(t *testing.T) {
	f := Secp256k1{}
	env, err := f.Sign(testPrivateKey, []byte("hello"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if env.PublicKey != testPublicKey {
		t.Errorf("expected public key %s, got %s", testPublicKey, env.PublicKey)
	}
	if !f.Verify([]byte("hello"), env.PublicKey, env.Signature) {
		t.Error("expected signature to verify")
	}
	if f.Verify([]byte("hellO"), env.PublicKey, env.Signature) {
		t.Error("expected signature over different content to fail")
	}
	if f.Verify([]byte("hello"), env.PublicKey, "00") {
		t.Error("expected malformed signature to fail")
	}
}

func TestSignTokenVerify(t *testing.T) {
	f := Secp256k1{}
	token, err := f.SignToken(map[string]any{"iss": testPublicKey, "salt": "abc"}, testPrivateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWT, got %q", token)
	}
	// R and S only; the recovery byte is not part of a JWS signature.
	if sig, err := base64.RawURLEncoding.DecodeString(parts[2]); err != nil || len(sig) != 64 {
		t.Errorf("expected a 64-byte signature, got %d bytes (%v)", len(sig), err)
	}

	claims, err := VerifyToken(token, testPublicKey)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims["salt"] != "abc" {
		t.Errorf("expected salt abc, got %v", claims["salt"])
	}

	otherPriv, _ := GeneratePrivateKey()
	otherPub, _ := f.PublicKey(otherPriv)
	if _, err := VerifyToken(token, otherPub); err == nil {
		t.Error("expected verification with a different key to fail")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["iss"] != testPublicKey {
		t.Errorf("expected iss %s, got %v", testPublicKey, decoded["iss"])
	}
}
