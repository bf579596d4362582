package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
)

// KeyPair is an Ed25519 signing keypair for the token engine. Private key
// material never leaves the process except as opaque bytes the operator
// chooses to persist; the public key is meant for wide distribution.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// GenerateKeyPair produces a fresh random Ed25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, errMalformed("key generation failed: " + err.Error())
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// PrivateKeyFromHex parses a hex-encoded Ed25519 private key, as read from
// the BISCUIT_PRIVATE_KEY environment variable or an operator-managed key
// file.
func PrivateKeyFromHex(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errMalformed("invalid private key hex: " + err.Error())
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errMalformed("private key has wrong length")
	}
	return ed25519.PrivateKey(raw), nil
}

// PublicKeyFromHex parses a hex-encoded Ed25519 public key, as read from the
// BISCUIT_PUBLIC_KEY environment variable.
func PublicKeyFromHex(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errMalformed("invalid public key hex: " + err.Error())
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errMalformed("public key has wrong length")
	}
	return ed25519.PublicKey(raw), nil
}

// PrivateKeyHex returns the hex encoding of the private key, suitable for
// writing to a key file.
func (k KeyPair) PrivateKeyHex() string { return hex.EncodeToString(k.Private) }

// PublicKeyHex returns the hex encoding of the public key.
func (k KeyPair) PublicKeyHex() string { return hex.EncodeToString(k.Public) }
